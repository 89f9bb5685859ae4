package analytics

import (
	"log/slog"
	"sync"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/platform/metrics"
)

// Dispatcher 把跳转产生的点击交给后台（方便在 channel 和 Kafka 之间切换）。
type Dispatcher interface {
	shortlink.VisitDispatcher
	Close()
}

// ChannelDispatcher 基于带缓冲 channel 的进程内队列。
//
// Dispatch 不阻塞：通道满或已关闭时直接丢弃，并记日志和指标。
type ChannelDispatcher struct {
	mu     sync.RWMutex
	ch     chan shortlink.RecordRequest
	closed bool
}

func NewChannelDispatcher(bufferSize int) *ChannelDispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &ChannelDispatcher{ch: make(chan shortlink.RecordRequest, bufferSize)}
}

func (d *ChannelDispatcher) Dispatch(req shortlink.RecordRequest) {
	// 读锁保证 Close 不会和发送并发，避免向已关闭的 channel 写入
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "dropped").Inc()
		slog.Warn("analytics: dispatcher closed, event dropped", "link_id", req.LinkID)
		return
	}
	select {
	case d.ch <- req:
		metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "ok").Inc()
	default:
		// 通道满了，丢弃
		metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "dropped").Inc()
		slog.Warn("analytics: queue full, event dropped", "link_id", req.LinkID)
	}
}

func (d *ChannelDispatcher) Events() <-chan shortlink.RecordRequest {
	return d.ch
}

// Close 可以重复调用。
func (d *ChannelDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.ch)
}
