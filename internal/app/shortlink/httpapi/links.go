package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"linkpulse.local/gee"
	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/analytics"
)

const (
	defaultVisitsLimit = 20
	maxVisitsLimit     = 100
)

type ShortenRequest struct {
	URL       string `json:"url"`
	Slug      string `json:"slug,omitempty"`
	ExpireIn  string `json:"expire_in,omitempty"`  // Go duration，例如 "72h"
	ExpiresAt string `json:"expires_at,omitempty"` // RFC3339
}

type LinkResponse struct {
	ID             string     `json:"id"`
	Slug           string     `json:"slug"`
	ShortURL       string     `json:"short_url"`
	DestinationURL string     `json:"destination_url"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	IsPremium      bool       `json:"is_premium"`
	Clicks         *int64     `json:"clicks,omitempty"`
}

func toLinkResponse(ctx *gee.Context, base string, l shortlink.ShortLink) LinkResponse {
	return LinkResponse{
		ID:             l.ID,
		Slug:           l.Slug,
		ShortURL:       shortURL(ctx, base, l.Slug),
		DestinationURL: l.DestinationURL,
		CreatedAt:      l.CreatedAt,
		ExpiresAt:      l.ExpiresAt,
		IsPremium:      l.IsPremium,
	}
}

var errBothExpiry = errors.New("expire_in and expires_at are mutually exclusive")

// parseExpiry 解析可选的过期时间；两个字段都为空返回 nil。
func parseExpiry(req ShortenRequest, now time.Time) (*time.Time, error) {
	in := strings.TrimSpace(req.ExpireIn)
	at := strings.TrimSpace(req.ExpiresAt)
	switch {
	case in != "" && at != "":
		return nil, errBothExpiry
	case in != "":
		d, err := time.ParseDuration(in)
		if err != nil || d <= 0 {
			return nil, shortlink.ErrInvalidExpiry
		}
		t := now.Add(d)
		return &t, nil
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, shortlink.ErrInvalidExpiry
		}
		return &t, nil
	}
	return nil, nil
}

// NewShortenHandler POST /api/v1/links
func NewShortenHandler(svc *shortlink.Service, base string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		identity, ok := mustGetIdentity(ctx)
		if !ok {
			return
		}
		var req ShortenRequest
		if err := ctx.BindJSON(&req); err != nil {
			return
		}
		expiresAt, err := parseExpiry(req, time.Now())
		if err != nil {
			ctx.AbortWithError(http.StatusBadRequest, err.Error())
			return
		}

		link, err := svc.Shorten(ctx.Req.Context(), shortlink.ShortenRequest{
			OwnerID:        identity.UserID,
			DestinationURL: req.URL,
			Slug:           req.Slug,
			ExpiresAt:      expiresAt,
			IsPremium:      identity.Premium(),
		})
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusCreated, toLinkResponse(ctx, base, link))
	}
}

// NewListHandler GET /api/v1/links：当前用户的短链（新的在前）及各自点击数。
func NewListHandler(svc *shortlink.Service, agg *analytics.Aggregator, base string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		identity, ok := mustGetIdentity(ctx)
		if !ok {
			return
		}
		links, err := svc.ListByOwner(ctx.Req.Context(), identity.UserID)
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		counts, err := agg.ClickCounts(ctx.Req.Context(), links)
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		out := make([]LinkResponse, 0, len(links))
		for _, l := range links {
			resp := toLinkResponse(ctx, base, l)
			n := counts[l.ID]
			resp.Clicks = &n
			out = append(out, resp)
		}
		ctx.JSON(http.StatusOK, out)
	}
}

// NewLookupHandler GET /api/v1/links/:slug：任何登录用户都能查看元数据，不记录点击。
func NewLookupHandler(svc *shortlink.Service, base string) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		link, err := svc.Lookup(ctx.Req.Context(), ctx.Param("slug"))
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, toLinkResponse(ctx, base, link))
	}
}

type VisitsResponse struct {
	Items      []shortlink.VisitEvent `json:"items"`
	NextCursor int64                  `json:"next_cursor,omitempty"`
}

// NewVisitsHandler GET /api/v1/links/:slug/visits?limit=&cursor=
//
// 只有短链主人可以看，并且只对 premium 短链开放。
func NewVisitsHandler(svc *shortlink.Service, events shortlink.EventStore) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		identity, ok := mustGetIdentity(ctx)
		if !ok {
			return
		}

		limit := defaultVisitsLimit
		if l := ctx.Query("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= maxVisitsLimit {
				limit = n
			} else {
				ctx.AbortWithError(http.StatusBadRequest, "invalid limit")
				return
			}
		}
		var cursor int64
		if c := ctx.Query("cursor"); c != "" {
			if n, err := strconv.ParseInt(c, 10, 64); err == nil && n > 0 {
				cursor = n
			} else {
				ctx.AbortWithError(http.StatusBadRequest, "invalid cursor")
				return
			}
		}

		slug := ctx.Param("slug")
		// 先在自己的短链里找（包括已过期的），历史记录一直可查
		link, err := svc.OwnedLink(ctx.Req.Context(), identity.UserID, slug)
		if errors.Is(err, shortlink.ErrLinkNotFound) {
			// 不是自己的：别人正在使用就是 403，否则按查找结果返回
			if _, lerr := svc.Lookup(ctx.Req.Context(), slug); lerr == nil {
				ctx.AbortWithError(http.StatusForbidden, "no permission")
			} else {
				abortWithDomainError(ctx, lerr)
			}
			return
		}
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		if !link.IsPremium {
			ctx.AbortWithError(http.StatusForbidden, "visit log requires a premium link")
			return
		}

		items, err := events.ListByLink(ctx.Req.Context(), link.ID, limit, cursor)
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		resp := VisitsResponse{Items: items}
		if items == nil {
			resp.Items = []shortlink.VisitEvent{}
		}
		// 满一页才可能有下一页
		if len(items) == limit {
			resp.NextCursor = items[len(items)-1].ID
		}
		ctx.JSON(http.StatusOK, resp)
	}
}
