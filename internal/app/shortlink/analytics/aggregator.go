package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"linkpulse.local/internal/app/shortlink"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("linkpulse.local/internal/app/shortlink/analytics")

const (
	dateLayout     = "2006-01-02"
	DefaultTailLen = 7
)

type DailyClick struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// Summary 是某个用户全部短链的点击汇总。
type Summary struct {
	TotalClicks       int64                          `json:"total_clicks"`
	DistinctCountries int64                          `json:"distinct_countries"`
	DeviceBreakdown   map[shortlink.DeviceType]int64 `json:"device_breakdown"`
	DailyClicks       []DailyClick                   `json:"daily_clicks"` // 按日期升序
}

// LastDays 返回最近 n 个有点击的日期（n <= 0 时取 7）。
func (s Summary) LastDays(n int) []DailyClick {
	if n <= 0 {
		n = DefaultTailLen
	}
	if len(s.DailyClicks) <= n {
		return s.DailyClicks
	}
	return s.DailyClicks[len(s.DailyClicks)-n:]
}

// DevicePercent 按设备类型给出百分比，total 为 0 时全部为 0。
func (s Summary) DevicePercent() map[shortlink.DeviceType]int {
	out := make(map[shortlink.DeviceType]int, len(s.DeviceBreakdown))
	for d, n := range s.DeviceBreakdown {
		out[d] = Percent(n, s.TotalClicks)
	}
	return out
}

// Percent = round(count / total * 100)，total == 0 时返回 0。
func Percent(count, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

// Aggregator 在读时从 VisitEvent 推导统计，不存任何汇总结果。
type Aggregator struct {
	links  shortlink.LinkStore
	events shortlink.EventStore
	loc    *time.Location
}

// NewAggregator 的 loc 决定按哪个时区切日期；nil 表示 time.Local。
func NewAggregator(links shortlink.LinkStore, events shortlink.EventStore, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{links: links, events: events, loc: loc}
}

// Summarize 读出 owner 的全部短链和它们的全部事件，单次遍历完成统计。
//
// 事件一次性读出；链接很多的用户需要改成分页或流式读取。
func (a *Aggregator) Summarize(ctx context.Context, ownerID string) (Summary, error) {
	ctx, span := tracer.Start(ctx, "analytics.Summarize")
	defer span.End()

	links, err := a.links.ListByOwner(ctx, ownerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}
	if len(links) == 0 {
		return Fold(nil, a.loc), nil
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	events, err := a.events.ListByLinks(ctx, ids)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Summary{}, err
	}
	span.SetAttributes(attribute.Int("links", len(links)), attribute.Int("events", len(events)))
	return Fold(events, a.loc), nil
}

// ClickCounts 返回每个短链的点击数（key 为 link ID）。
func (a *Aggregator) ClickCounts(ctx context.Context, links []shortlink.ShortLink) (map[string]int64, error) {
	counts := make(map[string]int64, len(links))
	if len(links) == 0 {
		return counts, nil
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
		counts[l.ID] = 0
	}
	events, err := a.events.ListByLinks(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		counts[e.LinkID]++
	}
	return counts, nil
}

// Fold 对事件做一次遍历得到 Summary。desktop 和 mobile 总会出现在 DeviceBreakdown 里。
func Fold(events []shortlink.VisitEvent, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	s := Summary{
		DeviceBreakdown: map[shortlink.DeviceType]int64{
			shortlink.DeviceDesktop: 0,
			shortlink.DeviceMobile:  0,
		},
		DailyClicks: []DailyClick{},
	}
	countries := make(map[string]struct{})
	byDate := make(map[string]int64)

	for _, e := range events {
		s.TotalClicks++
		s.DeviceBreakdown[shortlink.NormalizeDeviceType(e.DeviceType)]++
		if e.Country != nil && *e.Country != "" {
			countries[*e.Country] = struct{}{}
		}
		byDate[e.CreatedAt.In(loc).Format(dateLayout)]++
	}
	s.DistinctCountries = int64(len(countries))

	for date, n := range byDate {
		s.DailyClicks = append(s.DailyClicks, DailyClick{Date: date, Clicks: n})
	}
	// YYYY-MM-DD 字典序即时间序
	sort.Slice(s.DailyClicks, func(i, j int) bool { return s.DailyClicks[i].Date < s.DailyClicks[j].Date })
	return s
}
