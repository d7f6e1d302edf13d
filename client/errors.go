package client

import (
	"errors"
	"fmt"
)

// ErrInvalidDirection 移动分量超出 -1/0/1
var ErrInvalidDirection = errors.New("direction components must be -1, 0 or 1")

// ConnectionError 传输层打开失败或会话中途出错；会话回到 Disconnected，不致命
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("connection error: %v", e.Err)
	}
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DecodeError 入站载荷无法解析；该条消息被丢弃，会话保持连接
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d-byte payload: %v", len(e.Payload), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NotConnectedError 非 Connected 状态下尝试发送；意图被丢弃，不排队不重试
type NotConnectedError struct {
	Op    string
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("%s: not connected (state %s)", e.Op, e.State)
}

// UnknownTagWarning 形状合法但标签未知的消息；仅记录，不改变状态
type UnknownTagWarning struct {
	Tag string
}

func (e *UnknownTagWarning) Error() string {
	return fmt.Sprintf("unhandled message tag %q", e.Tag)
}

// TransitionError 在不允许的状态下请求 connect/disconnect
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from state %s", e.Op, e.From)
}

// StaleSnapshotWarning 启用拒绝旧快照时，tick 回退的快照被丢弃
type StaleSnapshotWarning struct {
	Tick     uint64
	Retained uint64
}

func (e *StaleSnapshotWarning) Error() string {
	return fmt.Sprintf("dropped stale snapshot tick %d (retained %d)", e.Tick, e.Retained)
}
