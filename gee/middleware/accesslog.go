package middleware

import (
	"log/slog"
	"time"

	"linkpulse.local/gee"
)

// AccessLog 在请求结束后打一条 "access" 日志；route 是匹配到的路由模式，未匹配时为空。
func AccessLog() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()

		ctx.Next()

		slog.Info("access",
			"request_id", ctx.Req.Header.Get("X-Request-ID"),
			"method", ctx.Method,
			"path", ctx.Path,
			"route", ctx.RoutePattern,
			"status", ctx.Writer.Status(),
			"bytes", ctx.Writer.Size(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
