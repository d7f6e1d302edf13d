package client

// RosterEntry 用于展示的玩家条目
type RosterEntry struct {
	Player
	IsSelf bool
}

// View 由最新快照派生的只读视图，供展示层轮询或推送
type View struct {
	HasSnapshot bool
	Tick        uint64
	PlayerCount int
	DotCount    int
	Self        *Player // 当前快照中不存在本地玩家时为 nil
	Roster      []RosterEntry
	Constants   *GameConstants
}

// SelfScore 本地玩家分数；玩家不在当前快照中时返回 false，而不是旧值
func (v View) SelfScore() (int64, bool) {
	if v.Self == nil {
		return 0, false
	}
	return v.Self.Score, true
}

// Projector 持有最新快照并计算派生视图；快照整体替换，不做合并
type Projector struct {
	rejectStale bool

	snapshot *Snapshot
	self     *PlayerID
	// Welcome 下发的常量，快照未携带时沿用
	constants *GameConstants
	view      View
}

// NewProjector rejectStale 为 true 时丢弃 tick 回退的快照，否则最后写入者胜出
func NewProjector(rejectStale bool) *Projector {
	return &Projector{rejectStale: rejectStale}
}

// Apply 用新快照替换当前快照并重算视图
func (p *Projector) Apply(s Snapshot) (View, error) {
	if p.rejectStale && p.snapshot != nil && s.Tick < p.snapshot.Tick {
		return p.view, &StaleSnapshotWarning{Tick: s.Tick, Retained: p.snapshot.Tick}
	}
	p.snapshot = &s
	if s.Constants != nil {
		p.constants = s.Constants
	}
	p.recompute()
	return p.view, nil
}

// SetSelf 设置或清除本地玩家 ID，并重算视图
func (p *Projector) SetSelf(id *PlayerID) View {
	p.self = id
	p.recompute()
	return p.view
}

// SetConstants 记录 Welcome 携带的游戏常量
func (p *Projector) SetConstants(c *GameConstants) {
	if c == nil {
		return
	}
	p.constants = c
	p.view.Constants = c
}

// Reset 清空快照与身份，新会话开始时调用
func (p *Projector) Reset() {
	p.snapshot = nil
	p.self = nil
	p.constants = nil
	p.view = View{}
}

// View 返回当前视图
func (p *Projector) View() View { return p.view }

func (p *Projector) recompute() {
	v := View{Constants: p.constants}
	if p.snapshot == nil {
		p.view = v
		return
	}
	s := p.snapshot
	v.HasSnapshot = true
	v.Tick = s.Tick
	v.PlayerCount = len(s.Players)
	v.DotCount = len(s.Dots)
	v.Roster = make([]RosterEntry, 0, len(s.Players))
	for _, pl := range s.Players {
		isSelf := p.self != nil && pl.ID == *p.self
		if isSelf && v.Self == nil {
			self := pl
			v.Self = &self
		}
		v.Roster = append(v.Roster, RosterEntry{Player: pl, IsSelf: isSelf})
	}
	p.view = v
}
