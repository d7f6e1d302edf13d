package client

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics 记录会话运行期的关键指标（用于监控与调试）
type SessionMetrics struct {
	MessagesSent       int64 // 成功写入传输的意图数
	MessagesReceived   int64 // 成功分派的入站消息数
	DecodeErrors       int64 // 无法解析而被丢弃的入站载荷数
	NotConnected       int64 // 因未连接被拒绝的发送数
	UnknownTags        int64 // 未知标签消息数
	ConnectionFailures int64 // 连接失败或中途出错次数
	SnapshotsApplied   int64 // 已应用的快照数
	StaleSnapshots     int64 // 因 tick 回退被丢弃的快照数
}

func (m *SessionMetrics) IncSent() { atomic.AddInt64(&m.MessagesSent, 1) }
func (m *SessionMetrics) IncReceived() { atomic.AddInt64(&m.MessagesReceived, 1) }
func (m *SessionMetrics) IncDecodeErrors() { atomic.AddInt64(&m.DecodeErrors, 1) }
func (m *SessionMetrics) IncNotConnected() { atomic.AddInt64(&m.NotConnected, 1) }
func (m *SessionMetrics) IncUnknownTags() { atomic.AddInt64(&m.UnknownTags, 1) }
func (m *SessionMetrics) IncConnectionFailures() { atomic.AddInt64(&m.ConnectionFailures, 1) }
func (m *SessionMetrics) IncSnapshotsApplied() { atomic.AddInt64(&m.SnapshotsApplied, 1) }
func (m *SessionMetrics) IncStaleSnapshots() { atomic.AddInt64(&m.StaleSnapshots, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *SessionMetrics) Snapshot() map[string]any {
	return map[string]any{
		"messages_sent":       atomic.LoadInt64(&m.MessagesSent),
		"messages_received":   atomic.LoadInt64(&m.MessagesReceived),
		"decode_errors":       atomic.LoadInt64(&m.DecodeErrors),
		"not_connected":       atomic.LoadInt64(&m.NotConnected),
		"unknown_tags":        atomic.LoadInt64(&m.UnknownTags),
		"connection_failures": atomic.LoadInt64(&m.ConnectionFailures),
		"snapshots_applied":   atomic.LoadInt64(&m.SnapshotsApplied),
		"stale_snapshots":     atomic.LoadInt64(&m.StaleSnapshots),
	}
}

// Register 以 CounterFunc 形式导出到 Prometheus，命名空间 ballclient
func (m *SessionMetrics) Register(reg prometheus.Registerer) {
	factory := promauto.With(reg)
	counter := func(name, help string, v *int64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "ballclient",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(atomic.LoadInt64(v)) })
	}
	counter("messages_sent_total", "Intents written to the transport", &m.MessagesSent)
	counter("messages_received_total", "Inbound messages dispatched", &m.MessagesReceived)
	counter("decode_errors_total", "Inbound payloads dropped as unparseable", &m.DecodeErrors)
	counter("not_connected_total", "Sends rejected outside the connected state", &m.NotConnected)
	counter("unknown_tags_total", "Inbound messages with an unrecognised tag", &m.UnknownTags)
	counter("connection_failures_total", "Transport open failures and mid-session errors", &m.ConnectionFailures)
	counter("snapshots_applied_total", "State snapshots applied to the projector", &m.SnapshotsApplied)
	counter("stale_snapshots_total", "State snapshots dropped for a lower tick", &m.StaleSnapshots)
}
