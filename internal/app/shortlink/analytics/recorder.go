// Package analytics 负责点击事件的记录、传输（channel / Kafka）和汇总。
package analytics

import (
	"context"
	"errors"
	"strings"

	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/platform/metrics"
)

// Recorder 只追加 VisitEvent，不维护任何计数器；计数都在读时由 Aggregator 推导。
type Recorder struct {
	events shortlink.EventStore
}

func NewRecorder(events shortlink.EventStore) *Recorder {
	return &Recorder{events: events}
}

// Record appends exactly one VisitEvent. It returns shortlink.ErrUnknownLink
// when req.LinkID does not reference an existing link.
func (r *Recorder) Record(ctx context.Context, req shortlink.RecordRequest) (shortlink.VisitEvent, error) {
	if strings.TrimSpace(req.LinkID) == "" {
		return shortlink.VisitEvent{}, shortlink.ErrUnknownLink
	}
	e := shortlink.VisitEvent{
		LinkID:     req.LinkID,
		VisitorID:  req.VisitorID,
		DeviceType: shortlink.NormalizeDeviceType(req.DeviceType),
		Browser:    req.Browser,
		Country:    normalizeCountry(req.Country),
		Referrer:   req.Referrer,
		CreatedAt:  req.At,
	}
	saved, err := r.events.Append(ctx, e)
	if err != nil {
		metrics.AnalyticsEventsTotal.WithLabelValues("record", "failed").Inc()
		return shortlink.VisitEvent{}, err
	}
	metrics.AnalyticsEventsTotal.WithLabelValues("record", "ok").Inc()
	return saved, nil
}

// 空字符串当作未知国家
func normalizeCountry(c *string) *string {
	if c == nil {
		return nil
	}
	v := strings.ToUpper(strings.TrimSpace(*c))
	if v == "" || v == "XX" {
		return nil
	}
	return &v
}

// IsUnknownLink reports whether err means the event pointed at a missing link.
func IsUnknownLink(err error) bool {
	return errors.Is(err, shortlink.ErrUnknownLink)
}
