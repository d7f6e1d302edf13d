package client

import (
	"encoding/json"
	"strconv"
)

// PlayerID 服务端分配的玩家标识
type PlayerID uint64

func (id PlayerID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Direction 移动方向（客户端意图，服务端权威解释）
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

// Vector 返回方向对应的 (dx, dy)，屏幕坐标系 y 轴向下
func (d Direction) Vector() (dx, dy int) {
	switch d {
	case DirUp:
		return 0, -1
	case DirDown:
		return 0, 1
	case DirLeft:
		return -1, 0
	case DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// Player 快照中的玩家状态，随每个快照整体替换
type Player struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Radius float64  `json:"radius"`
	Score  int64    `json:"score"`
}

// Dot 地图上可被吃掉的点，只计数不跨快照跟踪
// 只宽松解析用得到的字段；形状异常的点原样保留在 Raw 中，不影响整帧快照
type Dot struct {
	ID     string // 数字或字符串标识的原文
	X      float64
	Y      float64
	Radius float64
	Raw    json.RawMessage
}

func (d *Dot) UnmarshalJSON(b []byte) error {
	*d = Dot{Raw: append(json.RawMessage(nil), b...)}
	var fields map[string]json.RawMessage
	if json.Unmarshal(b, &fields) != nil {
		return nil
	}
	d.ID = rawID(fields["id"])
	for key, dst := range map[string]*float64{"x": &d.X, "y": &d.Y, "radius": &d.Radius} {
		if raw, ok := fields[key]; ok {
			_ = json.Unmarshal(raw, dst)
		}
	}
	return nil
}

func rawID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// GameConstants 服务端下发的游戏常量
type GameConstants struct {
	TickIntervalMs      uint64  `json:"tick_interval_ms"`
	CollideSizeFraction float64 `json:"collide_size_fraction"`
	MoveSpeedBase       float64 `json:"move_speed_base"`
	DotRadius           float64 `json:"dot_radius"`
}

// Snapshot 某一 tick 的权威世界状态
type Snapshot struct {
	Tick      uint64         `json:"tick"`
	Players   []Player       `json:"players"`
	Dots      []Dot          `json:"dots"`
	Constants *GameConstants `json:"constants,omitempty"`
}
