package client

import (
	"sync/atomic"
)

// Metrics 记录同步器运行期的关键指标（用于监控与调试）
type Metrics struct {
	FramesReceived  int64 // 收到的入站帧
	FramesMalformed int64 // 无法解析而被丢弃的帧
	UnknownTypes    int64 // 未识别类型（走空处理器）
	UnknownEntity   int64 // 引用了不存在实体的消息
	DeadSuppressed  int64 // 死亡实体的更新只记录不通知
	EnvelopesSent   int64 // 成功入队的出站信封
	SendFailures    int64 // 出站失败（未连接或队列满）
	ShotsThrottled  int64 // 冷却期内被丢弃的射击
}

func (m *Metrics) IncFramesReceived()  { atomic.AddInt64(&m.FramesReceived, 1) }
func (m *Metrics) IncFramesMalformed() { atomic.AddInt64(&m.FramesMalformed, 1) }
func (m *Metrics) IncUnknownType()     { atomic.AddInt64(&m.UnknownTypes, 1) }
func (m *Metrics) IncUnknownEntity()   { atomic.AddInt64(&m.UnknownEntity, 1) }
func (m *Metrics) IncDeadSuppressed()  { atomic.AddInt64(&m.DeadSuppressed, 1) }
func (m *Metrics) IncEnvelopesSent()   { atomic.AddInt64(&m.EnvelopesSent, 1) }
func (m *Metrics) IncSendFailures()    { atomic.AddInt64(&m.SendFailures, 1) }
func (m *Metrics) IncShotsThrottled()  { atomic.AddInt64(&m.ShotsThrottled, 1) }

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"frames_received":  atomic.LoadInt64(&m.FramesReceived),
		"frames_malformed": atomic.LoadInt64(&m.FramesMalformed),
		"unknown_types":    atomic.LoadInt64(&m.UnknownTypes),
		"unknown_entity":   atomic.LoadInt64(&m.UnknownEntity),
		"dead_suppressed":  atomic.LoadInt64(&m.DeadSuppressed),
		"envelopes_sent":   atomic.LoadInt64(&m.EnvelopesSent),
		"send_failures":    atomic.LoadInt64(&m.SendFailures),
		"shots_throttled":  atomic.LoadInt64(&m.ShotsThrottled),
	}
}
