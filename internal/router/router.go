// Package router wires the HTTP surface: every route, its guards and
// its caching. Handlers stay free of routing concerns.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/hospmaint/os-manager/internal/config"
	"github.com/hospmaint/os-manager/internal/handler"
	"github.com/hospmaint/os-manager/internal/middleware"
	"github.com/hospmaint/os-manager/internal/perm"
)

// Register sets up all routes on the given Echo instance.
//
// Public:    GET /healthz, POST /api/auth/login
// Protected: everything under /api behind JWT auth; each route is
// additionally guarded by the action its role must carry.
func Register(e *echo.Echo, cfg config.Config, rdb *redis.Client,
	auth *handler.AuthHandler, orders *handler.OrderHandler, users *handler.UserHandler) {

	e.GET("/healthz", handler.Health)
	e.POST("/api/auth/login", auth.Login, middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb))

	api := e.Group("/api")
	api.Use(middleware.JWTAuth(cfg.JWTSecret))

	api.GET("/auth/me", auth.Me)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	view := middleware.RequireAction(perm.ActionViewOS)

	os := api.Group("/os")
	os.GET("", orders.List, view, cache)
	os.GET("/history", orders.History, view, cache)
	os.GET("/:id", orders.Get, view)
	os.POST("", orders.Create, middleware.RequireAction(perm.ActionCreateOS))
	os.PATCH("/:id", orders.Update, middleware.RequireAction(perm.ActionEditOS))
	os.DELETE("/:id", orders.Remove, middleware.RequireAction(perm.ActionDeleteOS))
	os.POST("/:id/comments", orders.AddComment, middleware.RequireAction(perm.ActionAddComment))

	manage := middleware.RequireAction(perm.ActionManageUsers)
	u := api.Group("/users", manage)
	u.GET("", users.List)
	u.POST("", users.Create)
	u.PATCH("/:id", users.Update)
	u.DELETE("/:id", users.Deactivate)
}
