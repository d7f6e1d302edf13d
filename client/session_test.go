package client

import (
	"encoding/json"
	"errors"
	"testing"
)

type fakeTransport struct {
	sent    [][]byte
	closed  bool
	sendErr error
}

func (t *fakeTransport) Send(b []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, b)
	return nil
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

type fakeDialer struct {
	urls      []string
	emit      func(Event)
	transport *fakeTransport
}

func (d *fakeDialer) Dial(url string, emit func(Event)) Transport {
	d.urls = append(d.urls, url)
	d.emit = emit
	d.transport = &fakeTransport{}
	return d.transport
}

type recordingObserver struct {
	states []State
	sent   []Intent
	recv   []Message
	errs   []error
	views  []View
}

func (o *recordingObserver) StatusChanged(s State, _ string) { o.states = append(o.states, s) }
func (o *recordingObserver) MessageSent(in Intent, _ []byte) { o.sent = append(o.sent, in) }
func (o *recordingObserver) MessageReceived(m Message, _ []byte) { o.recv = append(o.recv, m) }
func (o *recordingObserver) ErrorReported(err error) { o.errs = append(o.errs, err) }
func (o *recordingObserver) ViewUpdated(v View) { o.views = append(o.views, v) }

func newTestSession(t *testing.T) (*Session, *fakeDialer, *recordingObserver) {
	t.Helper()
	d := &fakeDialer{}
	obs := &recordingObserver{}
	s := NewSession(SessionOptions{Dialer: d, Observer: obs})
	return s, d, obs
}

func connectSession(t *testing.T, s *Session, d *fakeDialer) {
	t.Helper()
	if err := s.Connect("ws://arena.test"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if s.State() != Connecting {
		t.Fatalf("expected Connecting after Connect, got %s", s.State())
	}
	d.emit(Event{Kind: EventOpen})
	if s.State() != Connected {
		t.Fatalf("expected Connected after open event, got %s", s.State())
	}
}

func sentSequence(t *testing.T, raw []byte) uint64 {
	t.Helper()
	var env struct {
		Input struct {
			Input struct {
				SequenceNumber uint64 `json:"sequence_number"`
			} `json:"input"`
		} `json:"Input"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("failed to decode sent payload %s: %v", raw, err)
	}
	return env.Input.Input.SequenceNumber
}

func TestSessionJoinWelcomeMoveAndSnapshot(t *testing.T) {
	s, d, obs := newTestSession(t)
	connectSession(t, s, d)

	if err := s.Join("Alice"); err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if got := string(d.transport.sent[0]); got != `{"Join":{"name":"Alice"}}` {
		t.Errorf("unexpected join payload: %s", got)
	}

	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Welcome":{"player_id":7}}`)})
	if id, ok := s.SelfID(); !ok || id != 7 {
		t.Fatalf("expected self id 7, got %d (set=%v)", id, ok)
	}

	if err := s.Move(0, -1); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if err := s.Move(1, 0); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if seq := sentSequence(t, d.transport.sent[1]); seq != 1 {
		t.Errorf("expected first move sequence 1, got %d", seq)
	}
	if seq := sentSequence(t, d.transport.sent[2]); seq != 2 {
		t.Errorf("expected second move sequence 2, got %d", seq)
	}

	d.emit(Event{Kind: EventMessage, Data: []byte(
		`{"StateUpdate":{"snapshot":{"tick":42,"players":[{"id":7,"name":"Alice","x":10,"y":20,"radius":5,"score":3}],"dots":[]}}}`)})

	v := s.View()
	if len(v.Roster) != 1 {
		t.Fatalf("expected 1 roster entry, got %d", len(v.Roster))
	}
	if score, ok := v.SelfScore(); !ok || score != 3 {
		t.Errorf("expected self score 3, got %d (present=%v)", score, ok)
	}
	if v.DotCount != 0 {
		t.Errorf("expected 0 dots, got %d", v.DotCount)
	}
	if v.Tick != 42 {
		t.Errorf("expected tick 42, got %d", v.Tick)
	}
	if len(obs.sent) != 3 {
		t.Errorf("expected 3 sends reported, got %d", len(obs.sent))
	}
	if len(obs.recv) != 2 {
		t.Errorf("expected 2 dispatched messages reported, got %d", len(obs.recv))
	}
}

func TestSessionUnexpectedCloseClearsIdentity(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)
	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Welcome":{"player_id":7}}`)})

	d.emit(Event{Kind: EventClose, Err: errors.New("EOF")})

	if s.State() != Disconnected {
		t.Fatalf("expected Disconnected after close, got %s", s.State())
	}
	if _, ok := s.SelfID(); ok {
		t.Error("self id should be cleared after close")
	}

	err := s.Join("Alice")
	var nce *NotConnectedError
	if !errors.As(err, &nce) {
		t.Fatalf("expected NotConnectedError after close, got %v", err)
	}
	if err := s.Move(1, 0); !errors.As(err, &nce) {
		t.Fatalf("expected NotConnectedError for move after close, got %v", err)
	}
	if len(d.transport.sent) != 0 {
		t.Errorf("no payload should reach the transport, got %d", len(d.transport.sent))
	}
}

func TestSessionSendOutsideConnectedNeverReachesTransport(t *testing.T) {
	s, d, obs := newTestSession(t)

	var nce *NotConnectedError
	if err := s.Send(Quit{}); !errors.As(err, &nce) || nce.State != Disconnected {
		t.Fatalf("expected NotConnectedError in Disconnected, got %v", err)
	}

	if err := s.Connect("ws://arena.test"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := s.Move(0, 1); !errors.As(err, &nce) || nce.State != Connecting {
		t.Fatalf("expected NotConnectedError in Connecting, got %v", err)
	}
	if len(d.transport.sent) != 0 {
		t.Fatalf("transport received %d payloads while connecting", len(d.transport.sent))
	}

	// 被拒绝的移动不消耗序列号
	d.emit(Event{Kind: EventOpen})
	if err := s.Move(0, 1); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if seq := sentSequence(t, d.transport.sent[0]); seq != 1 {
		t.Errorf("expected sequence 1 after rejected moves, got %d", seq)
	}
	if got := s.Metrics().NotConnected; got != 2 {
		t.Errorf("expected 2 not-connected rejections, got %d", got)
	}
	if len(obs.errs) != 2 {
		t.Errorf("expected 2 reported errors, got %d", len(obs.errs))
	}
}

func TestSessionErrorWhileConnecting(t *testing.T) {
	s, d, obs := newTestSession(t)
	if err := s.Connect("ws://arena.test"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	tr := d.transport

	d.emit(Event{Kind: EventError, Err: errors.New("connection refused")})

	if s.State() != Disconnected {
		t.Fatalf("expected Disconnected after connect error, got %s", s.State())
	}
	if !tr.closed {
		t.Error("transport should be closed after a failed connect")
	}
	var cerr *ConnectionError
	if len(obs.errs) != 1 || !errors.As(obs.errs[0], &cerr) {
		t.Fatalf("expected one ConnectionError, got %v", obs.errs)
	}
	if cerr.URL != "ws://arena.test" {
		t.Errorf("unexpected url in error: %q", cerr.URL)
	}

	// 随后的 close 事件不再产生迁移
	before := len(obs.states)
	d.emit(Event{Kind: EventClose})
	if len(obs.states) != before {
		t.Errorf("close after failed connect should not change state, got %v", obs.states[before:])
	}
}

func TestSessionDisconnectWaitsForCloseEvent(t *testing.T) {
	s, d, obs := newTestSession(t)
	connectSession(t, s, d)

	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error: %v", err)
	}
	if !d.transport.closed {
		t.Fatal("Disconnect should close the transport")
	}
	if s.State() != Connected {
		t.Fatalf("state should change only on the close event, got %s", s.State())
	}

	d.emit(Event{Kind: EventClose})
	if s.State() != Disconnected {
		t.Fatalf("expected Disconnected, got %s", s.State())
	}

	want := []State{Connecting, Connected, Disconnected}
	if len(obs.states) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, obs.states)
	}
	for i := range want {
		if obs.states[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], obs.states[i])
		}
	}
}

func TestSessionInvalidTransitions(t *testing.T) {
	s, d, _ := newTestSession(t)

	var terr *TransitionError
	if err := s.Disconnect(); !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError disconnecting while disconnected, got %v", err)
	}

	connectSession(t, s, d)
	if err := s.Connect("ws://other.test"); !errors.As(err, &terr) || terr.From != Connected {
		t.Fatalf("expected TransitionError connecting while connected, got %v", err)
	}
	if len(d.urls) != 1 {
		t.Errorf("expected a single dial, got %d", len(d.urls))
	}
}

func TestSessionDropsInboundWhileNotConnected(t *testing.T) {
	s, d, obs := newTestSession(t)
	if err := s.Connect("ws://arena.test"); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Welcome":{"player_id":3}}`)})

	if _, ok := s.SelfID(); ok {
		t.Error("welcome delivered while connecting must not be dispatched")
	}
	if len(obs.recv) != 0 {
		t.Errorf("expected no dispatched messages, got %d", len(obs.recv))
	}
}

func TestSessionDecodeErrorKeepsConnection(t *testing.T) {
	s, d, obs := newTestSession(t)
	connectSession(t, s, d)

	d.emit(Event{Kind: EventMessage, Data: []byte(`{not json`)})

	if s.State() != Connected {
		t.Fatalf("decode error must not end the session, got %s", s.State())
	}
	var derr *DecodeError
	if len(obs.errs) != 1 || !errors.As(obs.errs[0], &derr) {
		t.Fatalf("expected one DecodeError, got %v", obs.errs)
	}
	if s.Metrics().DecodeErrors != 1 {
		t.Errorf("expected decode error counter 1, got %d", s.Metrics().DecodeErrors)
	}
}

func TestSessionUnknownTagIsWarningOnly(t *testing.T) {
	s, d, obs := newTestSession(t)
	connectSession(t, s, d)

	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Leaderboard":{"top":[]}}`)})

	var warn *UnknownTagWarning
	if len(obs.errs) != 1 || !errors.As(obs.errs[0], &warn) || warn.Tag != "Leaderboard" {
		t.Fatalf("expected UnknownTagWarning for Leaderboard, got %v", obs.errs)
	}
	if s.State() != Connected {
		t.Errorf("unknown tag must not change state, got %s", s.State())
	}
	if s.View().HasSnapshot {
		t.Error("unknown tag must not touch the projector")
	}
}

func TestSessionIgnoresEventsFromSupersededConnection(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)
	oldEmit := d.emit

	d.emit(Event{Kind: EventClose})
	if err := s.Connect("ws://arena.test"); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}

	oldEmit(Event{Kind: EventOpen})
	if s.State() != Connecting {
		t.Fatalf("open from the old connection must be ignored, got %s", s.State())
	}
	oldEmit(Event{Kind: EventClose})
	if s.State() != Connecting {
		t.Fatalf("close from the old connection must be ignored, got %s", s.State())
	}
}

func TestSessionReconnectStartsFreshSequence(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)
	for i := 0; i < 3; i++ {
		if err := s.Stop(); err != nil {
			t.Fatalf("Stop() error: %v", err)
		}
	}
	firstID := s.ID()
	d.emit(Event{Kind: EventClose})

	connectSession(t, s, d)
	if s.ID() == firstID {
		t.Error("a new session should get a new correlation id")
	}
	if err := s.Move(-1, 0); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if seq := sentSequence(t, d.transport.sent[0]); seq != 1 {
		t.Errorf("expected sequence to restart at 1, got %d", seq)
	}
}

func TestSessionRepeatedWelcomeKeepsFirstIdentity(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)

	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Welcome":{"player_id":7}}`)})
	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Welcome":{"player_id":9}}`)})

	if id, _ := s.SelfID(); id != 7 {
		t.Errorf("expected self id to stay 7, got %d", id)
	}
}

func TestSessionWelcomeAfterSnapshotMarksSelf(t *testing.T) {
	s, d, obs := newTestSession(t)
	connectSession(t, s, d)

	d.emit(Event{Kind: EventMessage, Data: []byte(
		`{"StateUpdate":{"snapshot":{"tick":1,"players":[{"id":4,"name":"Bob","x":0,"y":0,"radius":5,"score":11}],"dots":[{"id":1,"x":1,"y":1,"radius":2,"color":[255,0,0],"score":2}]}}}`)})
	if _, ok := s.View().SelfScore(); ok {
		t.Fatal("self score must be absent before welcome")
	}

	d.emit(Event{Kind: EventMessage, Data: []byte(`{"Welcome":{"player_id":4}}`)})
	last := obs.views[len(obs.views)-1]
	if score, ok := last.SelfScore(); !ok || score != 11 {
		t.Errorf("expected pushed view with self score 11, got %d (present=%v)", score, ok)
	}
	if !last.Roster[0].IsSelf {
		t.Error("roster entry should be marked as self")
	}
}

func TestSessionMoveRejectsInvalidDirection(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)

	if err := s.Move(2, 0); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
	if err := s.Move(1, 1); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	if seq := sentSequence(t, d.transport.sent[0]); seq != 1 {
		t.Errorf("invalid move must not consume a sequence number, got %d", seq)
	}
}

func TestSessionSendFailureIsConnectionError(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)
	d.transport.sendErr = errSendQueueFull

	var cerr *ConnectionError
	if err := s.Join(""); !errors.As(err, &cerr) || !errors.Is(err, errSendQueueFull) {
		t.Fatalf("expected ConnectionError wrapping queue full, got %v", err)
	}
	if s.State() != Connected {
		t.Errorf("send failure alone must not end the session, got %s", s.State())
	}
}

func TestSessionFailedMoveLeavesNoSequenceGap(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)

	if err := s.Move(1, 0); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	d.transport.sendErr = errSendQueueFull
	if err := s.Move(0, 1); !errors.Is(err, errSendQueueFull) {
		t.Fatalf("expected queue full failure, got %v", err)
	}
	if got := s.Status().LastSequence; got != 1 {
		t.Errorf("failed move must not advance the sequence, LastSequence = %d", got)
	}
	d.transport.sendErr = nil
	if err := s.Move(-1, 0); err != nil {
		t.Fatalf("Move() error: %v", err)
	}

	var delivered []uint64
	for _, raw := range d.transport.sent {
		delivered = append(delivered, sentSequence(t, raw))
	}
	if len(delivered) != 2 || delivered[0] != 1 || delivered[1] != 2 {
		t.Errorf("delivered sequence numbers = %v, want [1 2]", delivered)
	}
	if got := s.Status().LastSequence; got != 2 {
		t.Errorf("LastSequence = %d, want 2", got)
	}
}

func TestSessionStepUsesNoSequenceNumber(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)

	if err := s.Step(0, -1, 25); err != nil {
		t.Fatalf("Step() error: %v", err)
	}
	if err := s.Step(3, 0, 25); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
	if err := s.Move(0, -1); err != nil {
		t.Fatalf("Move() error: %v", err)
	}

	if got := string(d.transport.sent[0]); got != `{"Move":{"dx":0,"dy":-1,"distance":25}}` {
		t.Errorf("unexpected step payload: %s", got)
	}
	if seq := sentSequence(t, d.transport.sent[1]); seq != 1 {
		t.Errorf("step must not consume a sequence number, first move got %d", seq)
	}
}

func TestSessionJoinDefaultsName(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)

	if err := s.Join(""); err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	if got := string(d.transport.sent[0]); got != `{"Join":{"name":"TestPlayer"}}` {
		t.Errorf("unexpected join payload: %s", got)
	}
}

func TestSessionShutdownClosesImmediately(t *testing.T) {
	s, d, _ := newTestSession(t)
	connectSession(t, s, d)

	s.Shutdown()

	if s.State() != Disconnected {
		t.Fatalf("expected Disconnected after shutdown, got %s", s.State())
	}
	if !d.transport.closed {
		t.Error("shutdown should close the transport")
	}
	st := s.Status()
	if st.SelfID != nil || st.State != Disconnected {
		t.Errorf("unexpected status after shutdown: %+v", st)
	}
}
