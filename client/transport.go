package client

// EventKind 传输层生命周期事件类型
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventError
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event 传输层投递给会话状态机的事件
type Event struct {
	Kind EventKind
	Data []byte // EventMessage 的载荷
	Err  error  // EventError / EventClose 的原因

	// Conn 产生事件的连接代号，由会话在 Dial 时打上；旧连接的事件会被丢弃
	Conn uint64
}

// Transport 单条消息型长连接；Send 为即发即忘，不等待服务端确认
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Dialer 创建传输；Dial 立即返回，open/message/error/close 通过 emit 异步投递
// 每条连接最终必须投递且只投递一次 EventClose
type Dialer interface {
	Dial(url string, emit func(Event)) Transport
}
