package client

// Sequencer 为移动输入分配严格递增、无空洞的序列号，首个为 1
// 只属于一个会话生命周期；新会话使用新的 Sequencer
type Sequencer struct {
	last uint64
}

// Next 分配下一个序列号
func (s *Sequencer) Next() uint64 {
	s.last++
	return s.last
}

// Peek 下一个将要分配的序列号，不消耗
func (s *Sequencer) Peek() uint64 { return s.last + 1 }

// Commit 确认 n 已送达传输；只接受 Peek 返回的值
func (s *Sequencer) Commit(n uint64) {
	if n == s.last+1 {
		s.last = n
	}
}

// Last 最近一次提交的序列号，未分配时为 0
func (s *Sequencer) Last() uint64 { return s.last }
