package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/class-booking/internal/service"
)

// AdminHandler serves the back-office endpoints. Routes are guarded by
// RequireRole(ADMIN).
type AdminHandler struct {
    Reservations *service.ReservationService
    Queries      *service.ReservationQueryService
    Location     *time.Location
    OnChange     SessionChanged
}

// List handles GET /v1/admin/reservations?status=ALL|...&from=&to=&page=&size=.
func (h *AdminHandler) List(c echo.Context) error {
    var q listQuery
    if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
        return badRequest(c, "query", "invalid parameters")
    }
    loc := h.Location
    if loc == nil {
        loc = time.UTC
    }
    f, err := q.filter(loc)
    if err != nil {
        return writeError(c, err)
    }
    page, err := h.Queries.ListAll(c.Request().Context(), f)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toPage(page))
}

// CancelRequests handles GET /v1/admin/reservations/cancel-requests.
func (h *AdminHandler) CancelRequests(c echo.Context) error {
    var q listQuery
    if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
        return badRequest(c, "query", "invalid parameters")
    }
    page, err := h.Queries.ListCancelRequests(c.Request().Context(), q.Page, q.Size)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toPage(page))
}

// ApproveCancel handles POST /v1/admin/reservations/:id/cancel/approve.
// The seat is released.
func (h *AdminHandler) ApproveCancel(c echo.Context) error {
    rid, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "reservation_id", "must be a positive integer")
    }
    ctx := c.Request().Context()
    res, err := h.Reservations.ApproveCancel(ctx, rid)
    if err != nil {
        return writeError(c, err)
    }
    if h.OnChange != nil {
        h.OnChange(ctx, res.SessionID)
    }
    return c.JSON(http.StatusOK, toReservation(res))
}

// RejectCancel handles POST /v1/admin/reservations/:id/cancel/reject. The
// reservation returns to PAID.
func (h *AdminHandler) RejectCancel(c echo.Context) error {
    rid, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "reservation_id", "must be a positive integer")
    }
    res, err := h.Reservations.RejectCancel(c.Request().Context(), rid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toReservation(res))
}
