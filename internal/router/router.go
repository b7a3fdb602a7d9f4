// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/church-events/internal/handler"
	"github.com/iliyamo/church-events/internal/middleware"
	"github.com/iliyamo/church-events/internal/model"
)

// RegisterRoutes registers routes that need no authentication beyond the
// public API, currently the health check.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers the back-office session endpoints.  Login,
// refresh and logout are open; /v1/me requires an admin access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
}

// RegisterPublic registers the anonymous visitor endpoints.  Event reads
// go through cache; the registration form goes through limit.
func RegisterPublic(e *echo.Echo, ev *handler.EventHandler, reg *handler.RegistrationHandler, cache, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/events")
	g.GET("", ev.PublicList, cache)
	g.GET("/:slug", ev.PublicGet, cache)
	g.POST("/:id/registrations", reg.Create, limit)
}
