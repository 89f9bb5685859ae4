package httpapi

import (
	"net/http"
	"time"

	"linkpulse.local/gee"
	"linkpulse.local/internal/app/shortlink"
	"linkpulse.local/internal/app/shortlink/account"
	"linkpulse.local/internal/app/shortlink/analytics"
	"linkpulse.local/internal/platform/auth"
	"linkpulse.local/internal/platform/httpmiddleware"
	"linkpulse.local/internal/platform/ratelimit"
)

// Deps 是本包 handler 需要的全部协作者，由 cmd/api 组装。
type Deps struct {
	Links      *shortlink.Service
	Events     shortlink.EventStore
	Aggregator *analytics.Aggregator
	Accounts   *account.Service
	Tokens     auth.TokenService
	Limiter    *ratelimit.Limiter // nil 表示不限流

	// PublicBaseURL 用来拼 short_url，例如 https://lp.example；为空时按请求 Host 推断
	PublicBaseURL string
}

// RegisterAPIRoutes 在给定分组（/api/v1）下挂载 JSON API。
//
// 本包只做传输层：参数解析、错误映射、响应格式；领域逻辑在 internal/app/shortlink。
func RegisterAPIRoutes(api *gee.RouterGroup, d Deps) {
	api.Use(httpmiddleware.AuthOptional(d.Tokens))

	//注册 3次/分钟
	api.POST("/register", httpmiddleware.RateLimit(d.Limiter, "register", 3, time.Minute), NewRegisterHandler(d.Accounts))
	//登录 5次/分钟
	api.POST("/login", httpmiddleware.RateLimit(d.Limiter, "login", 5, time.Minute), NewLoginHandler(d.Accounts, d.Tokens))

	links := api.Group("/links")
	links.Use(httpmiddleware.AuthRequired(d.Tokens))
	//创建短链 10次/分钟
	links.POST("", httpmiddleware.RateLimit(d.Limiter, "create", 10, time.Minute), NewShortenHandler(d.Links, d.PublicBaseURL))
	links.GET("", NewListHandler(d.Links, d.Aggregator, d.PublicBaseURL))
	links.GET("/:slug", NewLookupHandler(d.Links, d.PublicBaseURL))
	links.GET("/:slug/visits", NewVisitsHandler(d.Links, d.Events))

	analyticsGroup := api.Group("/analytics")
	analyticsGroup.Use(httpmiddleware.AuthRequired(d.Tokens))
	analyticsGroup.GET("/summary", NewSummaryHandler(d.Aggregator))

	users := api.Group("/users")
	users.Use(httpmiddleware.AuthRequired(d.Tokens))
	users.GET("/me", NewUserMeHandler())

	admin := api.Group("/admin")
	admin.Use(httpmiddleware.AuthRequired(d.Tokens), httpmiddleware.RequireRole(auth.RoleAdmin))
	admin.GET("/ping", func(ctx *gee.Context) {
		ctx.String(http.StatusOK, "pong")
	})
	admin.POST("/users/:username/role", NewSetRoleHandler(d.Accounts))
}

// RegisterPublicRoutes 在根路由上挂载跳转入口 GET /:slug。
//
// 跳转不放在 /api/v1 下，用户直接在浏览器里打开短链。
func RegisterPublicRoutes(engine *gee.Engine, d Deps) {
	//跳转 100次/分钟
	redirect := NewRedirectHandler(d.Links)
	engine.GET("/:slug", httpmiddleware.RateLimit(d.Limiter, "redirect", 100, time.Minute), redirect)
	engine.HEAD("/:slug", httpmiddleware.RateLimit(d.Limiter, "redirect", 100, time.Minute), redirect)
}
