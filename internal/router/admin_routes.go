package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/church-events/internal/handler"
	"github.com/iliyamo/church-events/internal/middleware"
	"github.com/iliyamo/church-events/internal/model"
)

// RegisterAdmin registers the back-office endpoints under /v1/admin.
// Every route requires a valid JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, reg *handler.RegistrationHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)

	// ---- Registrations ----
	g.GET("/registrations", reg.List)
	g.GET("/registrations/export", reg.Export) // before :id
	g.GET("/registrations/:id", reg.Get)
	g.PUT("/registrations/:id/status", reg.UpdateStatus)
	g.DELETE("/registrations/:id", reg.Delete)

	// ---- Events ----
	g.GET("/events", ev.List)
	g.POST("/events", ev.Create)
	g.GET("/events/:id", ev.Get)
	g.PUT("/events/:id", ev.Update)
	g.DELETE("/events/:id", ev.Delete)
	g.POST("/events/:id/reconcile", ev.Reconcile)
}
