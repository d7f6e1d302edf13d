package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 单次写超时
	writeWait = 10 * time.Second

	// 读超时；收到 pong 或任何消息后顺延
	pongWait = 60 * time.Second

	// 发送 ping 的周期，必须小于 pongWait
	pingPeriod = (pongWait * 9) / 10

	// 单条入站消息上限
	maxMessageSize = 1 << 20

	// 发送队列长度
	sendQueueSize = 64
)

var (
	errTransportClosed = errors.New("transport closed")
	errSendQueueFull   = errors.New("send queue full")
)

// WSDialer 基于 gorilla/websocket 的传输工厂
type WSDialer struct {
	Dialer *websocket.Dialer // 为空时使用 websocket.DefaultDialer
}

// Dial 后台建立连接并立即返回；生命周期事件经 emit 投递
func (d WSDialer) Dial(url string, emit func(Event)) Transport {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		cancel: cancel,
		emit:   emit,
	}
	go c.run(ctx, dialer, url)
	return c
}

// wsConn 单条 WebSocket 连接：读写各一个协程，写操作全部经由 writePump
type wsConn struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
	emit      func(Event)
}

// Send 将消息压入发送队列（非阻塞，满则报错）
func (c *wsConn) Send(data []byte) error {
	if c.closed() {
		return errTransportClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errSendQueueFull
	}
}

// Close 幂等；连接建立前调用会取消拨号
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
	return nil
}

func (c *wsConn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *wsConn) run(ctx context.Context, dialer *websocket.Dialer, url string) {
	defer c.cancel()
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if c.closed() {
			// 调用方主动取消，不算连接失败
			c.emit(Event{Kind: EventClose})
			return
		}
		c.emit(Event{Kind: EventError, Err: err})
		c.emit(Event{Kind: EventClose, Err: err})
		return
	}
	if c.closed() {
		_ = ws.Close()
		c.emit(Event{Kind: EventClose})
		return
	}

	c.emit(Event{Kind: EventOpen})
	go c.writePump(ws)
	c.readPump(ws)
}

// readPump 读取服务端消息并按到达顺序投递；退出时总会投递一次 EventClose
func (c *wsConn) readPump(ws *websocket.Conn) {
	defer c.Close()
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error { ws.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		mt, payload, err := ws.ReadMessage()
		if err != nil {
			if c.closed() {
				c.emit(Event{Kind: EventClose})
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.emit(Event{Kind: EventError, Err: err})
			}
			c.emit(Event{Kind: EventClose, Err: err})
			return
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		if mt != websocket.TextMessage {
			continue
		}
		c.emit(Event{Kind: EventMessage, Data: payload})
	}
}

// writePump 独立协程，负责从 send 队列写出、定时 ping 以及关闭握手
func (c *wsConn) writePump(ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
			return
		}
	}
}
