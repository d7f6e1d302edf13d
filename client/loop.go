package client

import (
	"context"
	"sync/atomic"
)

const (
	// 传输事件缓冲：足够缓冲，避免网络读阻塞
	eventQueueSize = 256
	// 用户意图缓冲
	commandQueueSize = 64
)

// RunnerOptions 运行循环配置
type RunnerOptions struct {
	Session SessionOptions
	// AutoJoin 非空时，每次连接建立后自动以该名字 Join
	AutoJoin string
}

// Runner 单线程事件循环：传输事件与用户意图在同一协程内依次处理，每个处理函数运行至完成
type Runner struct {
	session  *Session
	autoJoin string

	events chan Event
	cmds   chan func(*Session)
	done   chan struct{}

	status atomic.Pointer[Status]
}

// NewRunner 创建运行循环；会话的事件投递被接管为入队
func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		autoJoin: opts.AutoJoin,
		events:   make(chan Event, eventQueueSize),
		cmds:     make(chan func(*Session), commandQueueSize),
		done:     make(chan struct{}),
	}
	sopts := opts.Session
	sopts.Post = r.post
	r.session = NewSession(sopts)
	r.publish()
	return r
}

// Run 核心循环：取一个事件或意图 → 驱动状态机 → 发布摘要；ctx 取消时立即关闭传输并返回
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.done)
	for {
		prev := r.session.State()
		select {
		case <-ctx.Done():
			r.session.Shutdown()
			r.publish()
			return ctx.Err()
		case ev := <-r.events:
			r.session.HandleEvent(ev)
		case cmd := <-r.cmds:
			cmd(r.session)
		}
		if r.autoJoin != "" && prev != Connected && r.session.State() == Connected {
			_ = r.session.Join(r.autoJoin)
		}
		r.publish()
	}
}

// Status 最近一次发布的会话摘要，可并发调用
func (r *Runner) Status() Status { return *r.status.Load() }

// Metrics 会话指标
func (r *Runner) Metrics() *SessionMetrics { return r.session.Metrics() }

// 以下意图方法不阻塞等待执行结果；错误由会话上报给 Observer

func (r *Runner) Connect(url string) { r.do(func(s *Session) { _ = s.Connect(url) }) }
func (r *Runner) Disconnect() { r.do(func(s *Session) { _ = s.Disconnect() }) }
func (r *Runner) Join(name string) { r.do(func(s *Session) { _ = s.Join(name) }) }
func (r *Runner) Move(dx, dy int) { r.do(func(s *Session) { _ = s.Move(dx, dy) }) }
func (r *Runner) Step(dx, dy int, distance float64) {
	r.do(func(s *Session) { _ = s.Step(dx, dy, distance) })
}
func (r *Runner) Stop() { r.do(func(s *Session) { _ = s.Stop() }) }
func (r *Runner) Quit() { r.do(func(s *Session) { _ = s.Quit() }) }
func (r *Runner) Ready() { r.do(func(s *Session) { _ = s.Ready() }) }

func (r *Runner) do(fn func(*Session)) {
	select {
	case r.cmds <- fn:
	case <-r.done:
	}
}

// post 传输协程调用；循环退出后直接丢弃
func (r *Runner) post(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Runner) publish() {
	st := r.session.Status()
	r.status.Store(&st)
}
