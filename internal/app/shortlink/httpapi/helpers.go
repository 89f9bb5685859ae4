package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"linkpulse.local/gee"
	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/platform/auth"
)

// mustGetIdentity 从上下文取登录身份，失败时已写入错误响应。
func mustGetIdentity(ctx *gee.Context) (auth.Identity, bool) {
	identity, ok := auth.GetIdentity(ctx.Req.Context())
	if !ok || identity.UserID == "" {
		ctx.AbortWithError(http.StatusUnauthorized, "not login")
		return auth.Identity{}, false
	}
	return identity, true
}

// abortWithDomainError 把领域错误翻译成 HTTP 状态码。
func abortWithDomainError(ctx *gee.Context, err error) {
	switch {
	case errors.Is(err, shortlink.ErrInvalidURL),
		errors.Is(err, shortlink.ErrInvalidSlug),
		errors.Is(err, shortlink.ErrInvalidExpiry):
		ctx.AbortWithError(http.StatusBadRequest, err.Error())
	case errors.Is(err, shortlink.ErrSlugTaken):
		ctx.AbortWithError(http.StatusConflict, err.Error())
	// ErrLinkExpired 也匹配 ErrLinkNotFound，必须先判断
	case errors.Is(err, shortlink.ErrLinkExpired):
		ctx.AbortWithError(http.StatusGone, "link expired")
	case errors.Is(err, shortlink.ErrLinkNotFound):
		ctx.AbortWithError(http.StatusNotFound, "link not found")
	case errors.Is(err, shortlink.ErrSlugExhaustion),
		errors.Is(err, shortlink.ErrStorageUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		slog.Error("service unavailable", "path", ctx.Path, "err", err)
		ctx.AbortWithError(http.StatusServiceUnavailable, "service unavailable")
	default:
		slog.Error("request failed", "path", ctx.Path, "err", err)
		ctx.AbortWithError(http.StatusInternalServerError, "internal error")
	}
}

// shortURL 优先使用配置的公网地址；否则按 X-Forwarded-Proto + Host 拼。
func shortURL(ctx *gee.Context, base, slug string) string {
	if base != "" {
		return base + "/" + slug
	}
	path := "/" + slug
	host := ctx.Req.Host
	if host == "" {
		return path
	}
	scheme := ctx.Req.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + host + path
}

// optionalHeader 返回去掉空白后的 header 值，空串返回 nil。
func optionalHeader(req *http.Request, key string) *string {
	v := strings.TrimSpace(req.Header.Get(key))
	if v == "" {
		return nil
	}
	return &v
}
