package analytics

import (
	"context"
	"log/slog"
	"time"

	"linkpulse.local/internal/app/shortlink"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	flushTimeout         = 5 * time.Second
)

type ConsumerOptions struct {
	BatchSize     int           // 批量写入大小
	FlushInterval time.Duration // 最大等待时间
}

func (o ConsumerOptions) withDefaults() ConsumerOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = defaultFlushInterval
	}
	return o
}

// Consumer 消费 ChannelDispatcher 里的点击，攒批后交给 Recorder。
type Consumer struct {
	recorder   *Recorder
	dispatcher *ChannelDispatcher
	opts       ConsumerOptions
}

func NewConsumer(recorder *Recorder, dispatcher *ChannelDispatcher, opts ConsumerOptions) *Consumer {
	return &Consumer{
		recorder:   recorder,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
	}
}

// Run 阻塞，直到 ctx 取消或 dispatcher 关闭；退出前会把剩余事件写完。
func (c *Consumer) Run(ctx context.Context) {
	runBatches(ctx, c.dispatcher.Events(), c.opts, func(batch []shortlink.RecordRequest) {
		flushBatch(c.recorder, batch, "channel")
	})
}

// runBatches 按数量或时间窗口攒批，in 关闭或 ctx 取消时做最后一次 flush。
func runBatches(ctx context.Context, in <-chan shortlink.RecordRequest, opts ConsumerOptions, flush func([]shortlink.RecordRequest)) {
	batch := make([]shortlink.RecordRequest, 0, opts.BatchSize)
	ticker := time.NewTicker(opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// 清理已经在通道里的事件
			for {
				select {
				case req, ok := <-in:
					if !ok {
						flush(batch)
						return
					}
					batch = append(batch, req)
				default:
					flush(batch)
					return
				}
			}
		case req, ok := <-in:
			if !ok {
				flush(batch)
				return
			}
			batch = append(batch, req)
			if len(batch) >= opts.BatchSize {
				flush(batch)
				batch = batch[:0] //清空切片，但保留容量不变，避免反复分配内存
			}
		case <-ticker.C:
			if len(batch) > 0 {
				flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// flushBatch 逐条写入：VisitEvent 之间互相独立，一条失败不影响其它条。
func flushBatch(r *Recorder, batch []shortlink.RecordRequest, source string) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	failed := 0
	for _, req := range batch {
		if _, err := r.Record(ctx, req); err != nil {
			failed++
			if IsUnknownLink(err) {
				slog.Warn("analytics: event for unknown link", "source", source, "link_id", req.LinkID)
				continue
			}
			slog.Error("analytics: record failed", "source", source, "err", err, "link_id", req.LinkID)
		}
	}
	slog.Debug("analytics: flushed", "source", source, "count", len(batch), "failed", failed)
}
