package client

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultPlayerName Join 未提供名字时使用
const DefaultPlayerName = "TestPlayer"

// State 连接状态
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MarshalText 使状态在 JSON 中以名字输出
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status 会话只读摘要，供管理接口并发读取
type Status struct {
	State        State     `json:"state"`
	SessionID    string    `json:"session_id,omitempty"`
	URL          string    `json:"url,omitempty"`
	SelfID       *PlayerID `json:"self_id,omitempty"`
	LastSequence uint64    `json:"last_sequence"`
	Tick         uint64    `json:"tick"`
	Players      int       `json:"players"`
	Dots         int       `json:"dots"`
}

// SessionOptions 会话依赖
type SessionOptions struct {
	Dialer           Dialer
	Observer         Observer
	Metrics          *SessionMetrics
	RejectStaleTicks bool
	// Post 把传输事件送回会话所在线程；为空时在投递方线程上直接处理
	Post func(Event)
}

// Session 连接生命周期状态机：Disconnected → Connecting → Connected → Disconnected
// 独占传输句柄、本地玩家 ID、序列号与投影器；非并发安全，由单一逻辑线程驱动
type Session struct {
	dialer  Dialer
	obs     Observer
	metrics *SessionMetrics
	post    func(Event)
	log     *zap.SugaredLogger

	state     State
	transport Transport
	url       string
	gen       uint64 // 连接代号，每次 Connect 递增
	id        string
	self      *PlayerID
	seq       Sequencer
	projector *Projector
}

// NewSession 创建处于 Disconnected 状态的会话
func NewSession(opts SessionOptions) *Session {
	s := &Session{
		dialer:    opts.Dialer,
		obs:       opts.Observer,
		metrics:   opts.Metrics,
		post:      opts.Post,
		log:       Log,
		projector: NewProjector(opts.RejectStaleTicks),
	}
	if s.obs == nil {
		s.obs = NopObserver{}
	}
	if s.metrics == nil {
		s.metrics = &SessionMetrics{}
	}
	if s.post == nil {
		s.post = s.HandleEvent
	}
	return s
}

func (s *Session) State() State { return s.state }

// SelfID 本地玩家 ID；收到 Welcome 之前为空
func (s *Session) SelfID() (PlayerID, bool) {
	if s.self == nil {
		return 0, false
	}
	return *s.self, true
}

// ID 当前会话的关联 ID，用于日志
func (s *Session) ID() string { return s.id }

func (s *Session) View() View { return s.projector.View() }

func (s *Session) Metrics() *SessionMetrics { return s.metrics }

// Status 生成当前摘要
func (s *Session) Status() Status {
	v := s.projector.View()
	st := Status{
		State:        s.state,
		SessionID:    s.id,
		URL:          s.url,
		LastSequence: s.seq.Last(),
		Tick:         v.Tick,
		Players:      v.PlayerCount,
		Dots:         v.DotCount,
	}
	if s.self != nil {
		id := *s.self
		st.SelfID = &id
	}
	return st
}

// Connect 仅在 Disconnected 下有效：开启新的会话生命周期并创建传输
func (s *Session) Connect(url string) error {
	if s.state != Disconnected {
		err := &TransitionError{Op: "connect", From: s.state}
		s.report(err)
		return err
	}

	s.gen++
	gen := s.gen
	s.id = uuid.NewString()
	s.log = Log.With("session", s.id)
	s.url = url
	// 新会话：序列号从 1 重新开始，身份与快照清空
	s.seq = Sequencer{}
	s.self = nil
	s.projector.Reset()
	s.setState(Connecting, "connecting to "+url)

	t := s.dialer.Dial(url, func(ev Event) {
		ev.Conn = gen
		s.post(ev)
	})
	// 同步投递的失败事件可能已让会话回到 Disconnected
	if s.gen == gen && s.state != Disconnected {
		s.transport = t
	}
	return nil
}

// Disconnect 在 Connecting/Connected 下关闭传输；状态迁移由随后的 close 事件驱动
func (s *Session) Disconnect() error {
	if s.state == Disconnected {
		err := &TransitionError{Op: "disconnect", From: s.state}
		s.report(err)
		return err
	}
	if s.transport == nil {
		s.teardown("disconnected", false)
		return nil
	}
	s.log.Infow("closing transport", "state", s.state)
	if err := s.transport.Close(); err != nil {
		s.log.Debugw("transport close", "err", err)
	}
	return nil
}

// HandleEvent 状态机迁移函数：处理一条传输事件直至完成
func (s *Session) HandleEvent(ev Event) {
	if ev.Conn != s.gen {
		s.log.Debugw("dropping event from superseded connection", "kind", ev.Kind, "conn", ev.Conn)
		return
	}

	switch ev.Kind {
	case EventOpen:
		if s.state != Connecting {
			return
		}
		s.self = nil
		s.projector.SetSelf(nil)
		s.setState(Connected, "connected")

	case EventMessage:
		if s.state != Connected {
			s.log.Debugw("dropping inbound payload while not connected", "state", s.state)
			return
		}
		s.dispatch(ev.Data)

	case EventError:
		s.metrics.IncConnectionFailures()
		s.report(&ConnectionError{URL: s.url, Err: ev.Err})
		if s.state == Connecting {
			s.teardown("connection failed", true)
		}

	case EventClose:
		if s.state == Disconnected {
			return
		}
		detail := "connection closed"
		if ev.Err != nil {
			detail = fmt.Sprintf("connection closed: %v", ev.Err)
		}
		s.teardown(detail, false)
	}
}

// Send 仅在 Connected 下编码并写入传输；否则返回 NotConnectedError，不触达传输
func (s *Session) Send(in Intent) error {
	if s.state != Connected {
		return s.rejectNotConnected("send " + in.Tag())
	}
	raw := Encode(in)
	if err := s.transport.Send(raw); err != nil {
		cerr := &ConnectionError{URL: s.url, Err: err}
		s.metrics.IncConnectionFailures()
		s.report(cerr)
		return cerr
	}
	s.metrics.IncSent()
	s.log.Debugw("sent", "tag", in.Tag(), "payload", string(raw))
	s.obs.MessageSent(in, raw)
	return nil
}

// Join 不消耗序列号
func (s *Session) Join(name string) error {
	if name == "" {
		name = DefaultPlayerName
	}
	return s.Send(Join{Name: name})
}

// Move 每次成功发送消耗一个新的序列号；未连接、方向非法或写入失败时不消耗
func (s *Session) Move(dx, dy int) error {
	if !validAxis(dx) || !validAxis(dy) {
		err := fmt.Errorf("move (%d,%d): %w", dx, dy, ErrInvalidDirection)
		s.report(err)
		return err
	}
	if s.state != Connected {
		return s.rejectNotConnected("send " + TagInput)
	}
	// 写入传输成功后才提交序列号，发送失败不留空洞
	seq := s.seq.Peek()
	if err := s.Send(Input{DX: dx, DY: dy, Seq: seq}); err != nil {
		return err
	}
	s.seq.Commit(seq)
	return nil
}

// Step 离散移动，不消耗序列号
func (s *Session) Step(dx, dy int, distance float64) error {
	if !validAxis(dx) || !validAxis(dy) {
		err := fmt.Errorf("step (%d,%d): %w", dx, dy, ErrInvalidDirection)
		s.report(err)
		return err
	}
	return s.Send(Step{DX: dx, DY: dy, Distance: distance})
}

// Stop 等价于 Move(0, 0)
func (s *Session) Stop() error { return s.Move(0, 0) }

func (s *Session) Quit() error { return s.Send(Quit{}) }

func (s *Session) Ready() error { return s.Send(Ready{}) }

// Shutdown 关闭传输并立即回到 Disconnected，不等待 close 事件
func (s *Session) Shutdown() {
	if s.state == Disconnected {
		return
	}
	s.teardown("shutdown", true)
}

func (s *Session) dispatch(data []byte) {
	msg, err := Decode(data)
	if err != nil {
		s.metrics.IncDecodeErrors()
		s.report(err)
		return
	}
	s.metrics.IncReceived()
	s.log.Debugw("received", "tag", msg.Tag(), "payload", string(data))
	s.obs.MessageReceived(msg, data)

	switch m := msg.(type) {
	case Welcome:
		if s.self != nil {
			if *s.self != m.PlayerID {
				s.log.Warnw("ignoring repeated welcome", "self", *s.self, "got", m.PlayerID)
			}
			return
		}
		id := m.PlayerID
		s.self = &id
		s.projector.SetConstants(m.Constants)
		s.log.Infow("welcome", "player_id", id)
		s.obs.ViewUpdated(s.projector.SetSelf(&id))

	case StateUpdate:
		v, err := s.projector.Apply(m.Snapshot)
		if err != nil {
			s.metrics.IncStaleSnapshots()
			s.report(err)
			return
		}
		s.metrics.IncSnapshotsApplied()
		s.obs.ViewUpdated(v)

	case Bye:
		s.log.Infow("server said bye", "reason", m.Reason)

	case Unhandled:
		s.metrics.IncUnknownTags()
		s.report(&UnknownTagWarning{Tag: m.Name})
	}
}

// teardown 进入终态 Disconnected 并清除本地玩家 ID
func (s *Session) teardown(detail string, closeTransport bool) {
	t := s.transport
	s.transport = nil
	if closeTransport && t != nil {
		_ = t.Close()
	}
	hadSelf := s.self != nil
	s.self = nil
	v := s.projector.SetSelf(nil)
	s.setState(Disconnected, detail)
	if hadSelf {
		s.obs.ViewUpdated(v)
	}
}

func (s *Session) rejectNotConnected(op string) error {
	err := &NotConnectedError{Op: op, State: s.state}
	s.metrics.IncNotConnected()
	s.report(err)
	return err
}

func (s *Session) setState(st State, detail string) {
	s.state = st
	s.log.Infow("session state", "state", st, "detail", detail)
	s.obs.StatusChanged(st, detail)
}

// report 错误在发现处处理：记录并推送给展示层，不向外展开
func (s *Session) report(err error) {
	s.log.Warnw("session error", "err", err)
	s.obs.ErrorReported(err)
}
