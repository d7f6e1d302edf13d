package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// 环境变量名，可写在 .env 中
const (
	EnvServerURL        = "BALLCLIENT_SERVER_URL"
	EnvOriginHost       = "BALLCLIENT_ORIGIN_HOST"
	EnvPlayerName       = "BALLCLIENT_PLAYER_NAME"
	EnvAutoJoin         = "BALLCLIENT_AUTO_JOIN"
	EnvLogFile          = "BALLCLIENT_LOG_FILE"
	EnvDebug            = "BALLCLIENT_DEBUG"
	EnvAdminAddr        = "BALLCLIENT_ADMIN_ADDR"
	EnvRejectStaleTicks = "BALLCLIENT_REJECT_STALE_TICKS"
	EnvMaxLogLines      = "BALLCLIENT_MAX_LOG_LINES"
)

// Config 客户端配置：默认值 < .env/环境变量 < 命令行参数
type Config struct {
	ServerURL        string
	OriginHost       string // 操作者访问客户端所经由的主机；回环地址触发本地端口替换
	PlayerName       string
	AutoJoin         bool
	LogFile          string
	Debug            bool
	AdminAddr        string // 为空则不启动管理接口
	RejectStaleTicks bool
	MaxLogLines      int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		ServerURL:   "ws://127.0.0.1:8000",
		PlayerName:  DefaultPlayerName,
		LogFile:     "ballclient.log",
		MaxLogLines: 200,
	}
}

// LoadConfig 读取 .env（不存在则忽略）并用环境变量覆盖默认值
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv 从给定的查找函数构建配置，便于测试
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}

	str(EnvServerURL, &cfg.ServerURL)
	str(EnvOriginHost, &cfg.OriginHost)
	str(EnvPlayerName, &cfg.PlayerName)
	str(EnvLogFile, &cfg.LogFile)
	str(EnvAdminAddr, &cfg.AdminAddr)
	for key, dst := range map[string]*bool{
		EnvAutoJoin:         &cfg.AutoJoin,
		EnvDebug:            &cfg.Debug,
		EnvRejectStaleTicks: &cfg.RejectStaleTicks,
	} {
		if err := boolean(key, dst); err != nil {
			return Config{}, err
		}
	}
	if v, ok := lookup(EnvMaxLogLines); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvMaxLogLines, err)
		}
		cfg.MaxLogLines = n
	}
	return cfg, nil
}

// Endpoint 应用回环地址替换规则后的连接地址
func (c Config) Endpoint() (string, error) {
	return ResolveEndpoint(c.ServerURL, c.OriginHost)
}
