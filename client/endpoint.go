package client

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultLocalPort 经本机（例如 SSH 隧道）访问时使用的服务端口
const DefaultLocalPort = "8000"

// ResolveEndpoint 计算实际连接地址
// originHost 为本机回环地址时改连 ws://localhost:<port>：
// 配置为 ws:// 时沿用其端口（缺省 8000），否则固定 8000；其余情况原样使用配置地址
func ResolveEndpoint(configured, originHost string) (string, error) {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return "", fmt.Errorf("server url is empty")
	}
	u, err := url.Parse(configured)
	if err != nil {
		return "", fmt.Errorf("parse server url %q: %w", configured, err)
	}
	if !isLoopbackHost(originHost) {
		return configured, nil
	}
	port := DefaultLocalPort
	if u.Scheme == "ws" && u.Port() != "" {
		port = u.Port()
	}
	return "ws://" + net.JoinHostPort("localhost", port), nil
}

func isLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if host == "" {
		return false
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
