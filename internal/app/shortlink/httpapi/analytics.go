package httpapi

import (
	"net/http"
	"strconv"

	"linkpulse.local/gee"
	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/analytics"
)

const maxSummaryDays = 90

type SummaryResponse struct {
	TotalClicks       int64                          `json:"total_clicks"`
	DistinctCountries int64                          `json:"distinct_countries"`
	DeviceBreakdown   map[shortlink.DeviceType]int64 `json:"device_breakdown"`
	DevicePercent     map[shortlink.DeviceType]int   `json:"device_percent"`
	DailyClicks       []analytics.DailyClick         `json:"daily_clicks"`
}

// NewSummaryHandler GET /api/v1/analytics/summary?days=N
//
// days 只截取 daily_clicks 的尾部，总数始终覆盖全部事件。
func NewSummaryHandler(agg *analytics.Aggregator) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		identity, ok := mustGetIdentity(ctx)
		if !ok {
			return
		}
		days := analytics.DefaultTailLen
		if v := ctx.Query("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxSummaryDays {
				ctx.AbortWithError(http.StatusBadRequest, "invalid days")
				return
			}
			days = n
		}

		s, err := agg.Summarize(ctx.Req.Context(), identity.UserID)
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, SummaryResponse{
			TotalClicks:       s.TotalClicks,
			DistinctCountries: s.DistinctCountries,
			DeviceBreakdown:   s.DeviceBreakdown,
			DevicePercent:     s.DevicePercent(),
			DailyClicks:       s.LastDays(days),
		})
	}
}
