package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/class-booking/internal/handler"
	"github.com/iliyamo/class-booking/internal/middleware"
	"github.com/iliyamo/class-booking/internal/model"
)

// RegisterAdmin registers the back-office endpoints under /v1/admin. They
// require the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/reservations", h.List)
	g.GET("/reservations/cancel-requests", h.CancelRequests)
	g.POST("/reservations/:id/cancel/approve", h.ApproveCancel)
	g.POST("/reservations/:id/cancel/reject", h.RejectCancel)
}
