package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/platform/metrics"

	"github.com/segmentio/kafka-go"
)

const kafkaGroupID = "linkpulse-visit-recorder"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaDispatcher 把点击写到 Kafka topic，由（可能在别的实例上的）KafkaConsumer 落库。
type KafkaDispatcher struct {
	writer messageWriter
}

func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
			Async:    true, // 异步发送，跳转路径不等 broker
			Completion: func(msgs []kafka.Message, err error) {
				if err != nil {
					metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "failed").Add(float64(len(msgs)))
					slog.Error("analytics: kafka write failed", "err", err, "count", len(msgs))
				}
			},
		},
	}
}

func (k *KafkaDispatcher) Dispatch(req shortlink.RecordRequest) {
	data, err := json.Marshal(req)
	if err != nil {
		metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "failed").Inc()
		slog.Error("analytics: marshal event failed", "err", err, "link_id", req.LinkID)
		return
	}
	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(req.LinkID),
		Value: data,
	})
	if err != nil {
		metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "failed").Inc()
		slog.Error("analytics: kafka write failed", "err", err, "link_id", req.LinkID)
		return
	}
	metrics.AnalyticsEventsTotal.WithLabelValues("dispatch", "ok").Inc()
}

func (k *KafkaDispatcher) Close() {
	if err := k.writer.Close(); err != nil {
		slog.Error("analytics: kafka writer close failed", "err", err)
	}
}

type KafkaConsumer struct {
	reader   messageReader
	recorder *Recorder
	opts     ConsumerOptions
}

func NewKafkaConsumer(brokers []string, topic string, recorder *Recorder, opts ConsumerOptions) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  kafkaGroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		recorder: recorder,
		opts:     opts.withDefaults(),
	}
}

func (k *KafkaConsumer) Run(ctx context.Context) {
	// 读取协程把消息转成 channel，复用和 Consumer 一样的攒批逻辑
	msgCh := make(chan shortlink.RecordRequest, k.opts.BatchSize)
	go func() {
		defer close(msgCh)
		for {
			msg, err := k.reader.ReadMessage(ctx)
			if err != nil {
				// reader 被 Close 后返回 io.EOF
				if ctx.Err() != nil || errors.Is(err, io.EOF) {
					return
				}
				slog.Error("analytics: kafka read failed", "err", err)
				continue
			}

			var req shortlink.RecordRequest
			if err := json.Unmarshal(msg.Value, &req); err != nil {
				slog.Error("analytics: unmarshal event failed", "err", err, "offset", msg.Offset)
				continue
			}
			select {
			case msgCh <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	runBatches(ctx, msgCh, k.opts, func(batch []shortlink.RecordRequest) {
		flushBatch(k.recorder, batch, "kafka")
	})
}

func (k *KafkaConsumer) Close() {
	if err := k.reader.Close(); err != nil {
		slog.Error("analytics: kafka reader close failed", "err", err)
	}
}
