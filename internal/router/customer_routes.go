package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/handler"
	"github.com/iliyamo/class-booking/internal/middleware"
	"github.com/iliyamo/class-booking/internal/model"
)

// RegisterCustomer registers the booking endpoints under /v1. Every route
// requires a valid JWT. Writes are rate limited; availability is cached.
func RegisterCustomer(e *echo.Echo, h *handler.ReservationHandler, p *handler.PaymentHandler, jwtSecret string, limiter, cache echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// Any signed-in user may look at a session.
	g.GET("/sessions/:id/availability", h.Availability, cache)

	c := g.Group("", middleware.RequireRole(model.RoleCustomer))
	c.POST("/sessions/:id/holds", h.CreateHold, limiter)
	c.POST("/payments/confirm", p.Confirm, limiter)
	c.POST("/reservations/:id/cancel", h.Cancel, limiter)
	c.GET("/my-reservations", h.ListMine)
	c.GET("/reservations/:id", h.Get)
}
