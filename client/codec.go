package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Message 服务端下发的消息（封闭的标签联合，未知标签落入 Unhandled）
type Message interface {
	Tag() string
	message()
}

// Welcome 连接被接受后下发，携带本地玩家 ID
type Welcome struct {
	PlayerID  PlayerID
	Constants *GameConstants
}

// StateUpdate 每 tick 广播的完整世界快照
type StateUpdate struct {
	Snapshot Snapshot
}

// Bye 服务端要求客户端退出
type Bye struct {
	Reason string
}

// Unhandled 形状合法但标签未知的消息，只记录不报错
type Unhandled struct {
	Name    string
	Payload json.RawMessage
}

func (Welcome) Tag() string { return TagWelcome }
func (StateUpdate) Tag() string { return TagStateUpdate }
func (Bye) Tag() string { return TagBye }
func (u Unhandled) Tag() string { return u.Name }

func (Welcome) message() {}
func (StateUpdate) message() {}
func (Bye) message() {}
func (Unhandled) message() {}

var errEnvelope = errors.New("expected an object with exactly one tag key")

// 线上载荷结构：外层单键对象即标签
type (
	joinWire struct {
		Name string `json:"name"`
	}
	inputWire struct {
		DX             int    `json:"dx"`
		DY             int    `json:"dy"`
		SequenceNumber uint64 `json:"sequence_number"`
	}
	stepWire struct {
		DX       int     `json:"dx"`
		DY       int     `json:"dy"`
		Distance float64 `json:"distance"`
	}
	inputEnvelope struct {
		Input inputWire `json:"input"`
	}
	welcomeWire struct {
		PlayerID  *PlayerID      `json:"player_id"`
		Constants *GameConstants `json:"constants,omitempty"`
	}
	stateUpdateWire struct {
		Snapshot *Snapshot `json:"snapshot"`
	}
	byeWire struct {
		Reason string `json:"reason"`
	}
)

// Encode 将意图编码为线上格式；意图集合封闭，不存在失败路径
func Encode(in Intent) []byte {
	var body any
	switch v := in.(type) {
	case Join:
		body = joinWire{Name: v.Name}
	case Input:
		body = inputEnvelope{Input: inputWire{DX: v.DX, DY: v.DY, SequenceNumber: v.Seq}}
	case Step:
		body = stepWire{DX: v.DX, DY: v.DY, Distance: v.Distance}
	case Quit, Ready:
		body = nil
	}
	b, _ := json.Marshal(map[string]any{in.Tag(): body})
	return b
}

// Decode 解析服务端载荷并按外层键分派；不做数值修正
func Decode(data []byte) (Message, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Payload: data, Err: err}
	}
	if len(env) != 1 {
		return nil, &DecodeError{Payload: data, Err: errEnvelope}
	}

	var (
		tag string
		raw json.RawMessage
	)
	for k, v := range env {
		tag, raw = k, v
	}

	switch tag {
	case TagWelcome:
		var w welcomeWire
		if err := unmarshalBody(raw, &w); err != nil {
			return nil, &DecodeError{Payload: data, Err: fmt.Errorf("welcome: %w", err)}
		}
		if w.PlayerID == nil {
			return nil, &DecodeError{Payload: data, Err: errors.New("welcome: missing player_id")}
		}
		return Welcome{PlayerID: *w.PlayerID, Constants: w.Constants}, nil

	case TagStateUpdate:
		var su stateUpdateWire
		if err := unmarshalBody(raw, &su); err != nil {
			return nil, &DecodeError{Payload: data, Err: fmt.Errorf("state update: %w", err)}
		}
		if su.Snapshot == nil {
			return nil, &DecodeError{Payload: data, Err: errors.New("state update: missing snapshot")}
		}
		return StateUpdate{Snapshot: *su.Snapshot}, nil

	case TagBye:
		var b byeWire
		if err := unmarshalBody(raw, &b); err != nil {
			return nil, &DecodeError{Payload: data, Err: fmt.Errorf("bye: %w", err)}
		}
		return Bye{Reason: b.Reason}, nil

	default:
		return Unhandled{Name: tag, Payload: raw}, nil
	}
}

// unmarshalBody 已知标签的载荷必须是对象，null 视为格式错误
func unmarshalBody(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errors.New("empty payload")
	}
	return json.Unmarshal(raw, v)
}
