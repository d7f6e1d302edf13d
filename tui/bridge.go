package tui

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"ballclient/client"
)

// LogKind 日志条目类别
type LogKind int

const (
	LogInfo LogKind = iota
	LogSent
	LogReceived
	LogError
)

// LogMsg 追加一条消息日志
type LogMsg struct {
	Kind LogKind
	Text string
}

// StatusMsg 连接状态变化
type StatusMsg struct {
	State  client.State
	Detail string
}

// ViewMsg 最新投影视图
type ViewMsg client.View

// Bridge 实现 client.Observer：把会话回调按顺序转交给 tea.Program
// 回调方不会被界面阻塞，消息在内部队列中排队
type Bridge struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

var _ client.Observer = (*Bridge)(nil)

func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1)}
}

// Forward 持续把排队消息发送到 program，直到 ctx 结束
func (b *Bridge) Forward(ctx context.Context, p *tea.Program) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
		for _, msg := range b.drain() {
			p.Send(msg)
		}
	}
}

func (b *Bridge) StatusChanged(state client.State, detail string) {
	b.push(StatusMsg{State: state, Detail: capitalize(detail)})
}

func (b *Bridge) MessageSent(_ client.Intent, raw []byte) {
	b.push(LogMsg{Kind: LogSent, Text: "📤 " + string(raw)})
}

func (b *Bridge) MessageReceived(msg client.Message, raw []byte) {
	b.push(LogMsg{Kind: LogReceived, Text: "📥 " + string(raw)})
	switch m := msg.(type) {
	case client.Welcome:
		b.push(LogMsg{Kind: LogReceived, Text: fmt.Sprintf("🎉 Welcome! Your Player ID: %d", m.PlayerID)})
	case client.Bye:
		b.push(LogMsg{Kind: LogReceived, Text: "👋 Server said bye: " + m.Reason})
	}
}

func (b *Bridge) ErrorReported(err error) {
	b.push(LogMsg{Kind: LogError, Text: err.Error()})
}

func (b *Bridge) ViewUpdated(v client.View) {
	b.push(ViewMsg(v))
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queue
	b.queue = nil
	return q
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
