package httpapi

import (
	"errors"
	"net/http"
	"time"

	"linkpulse.local/gee"
	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/analytics"
	"linkpulse.local/internal/platform/httpmiddleware"
	"linkpulse.local/internal/platform/metrics"
)

// NewRedirectHandler GET|HEAD /:slug -> 302 Location。
//
// 点击记录由 Service 异步投递，这里只负责从请求里提取访问者信息。
// HEAD（链接预览、探活）只返回跳转，不算点击。
func NewRedirectHandler(svc *shortlink.Service) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		slug := ctx.Param("slug")
		ua := ctx.Req.UserAgent()
		now := time.Now()

		visit := shortlink.Visit{
			VisitorID:  analytics.VisitorID(httpmiddleware.ClientIP(ctx.Req), ua, now),
			DeviceType: analytics.ParseDevice(ua),
			Browser:    analytics.ParseBrowser(ua),
			Country:    optionalHeader(ctx.Req, "CF-IPCountry"),
			Referrer:   optionalHeader(ctx.Req, "Referer"),
			At:         now,
		}

		dest, err := resolve(ctx, svc, slug, visit)
		if err != nil {
			switch {
			case errors.Is(err, shortlink.ErrLinkExpired):
				metrics.RedirectsTotal.WithLabelValues("expired").Inc()
			case errors.Is(err, shortlink.ErrLinkNotFound):
				metrics.RedirectsTotal.WithLabelValues("not_found").Inc()
			default:
				metrics.RedirectsTotal.WithLabelValues("error").Inc()
			}
			abortWithDomainError(ctx, err)
			return
		}
		metrics.RedirectsTotal.WithLabelValues("ok").Inc()

		// 每次都要回源记录点击，不让浏览器缓存 302
		ctx.SetHeader("Cache-Control", "private, no-store")
		ctx.Redirect(http.StatusFound, dest)
	}
}

func resolve(ctx *gee.Context, svc *shortlink.Service, slug string, visit shortlink.Visit) (string, error) {
	if ctx.Req.Method == http.MethodHead {
		link, err := svc.Lookup(ctx.Req.Context(), slug)
		if err != nil {
			return "", err
		}
		return link.DestinationURL, nil
	}
	return svc.Resolve(ctx.Req.Context(), slug, visit)
}
