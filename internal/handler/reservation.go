package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/class-booking/internal/middleware"
    "github.com/iliyamo/class-booking/internal/service"
)

// SessionChanged is called after a write that moves a session's seat
// count, so cached availability can be dropped.
type SessionChanged func(ctx context.Context, sessionID uint64)

// ReservationHandler serves the customer endpoints. JWTAuth runs first.
type ReservationHandler struct {
    Reservations *service.ReservationService
    Queries      *service.ReservationQueryService
    Location     *time.Location
    OnChange     SessionChanged
}

// NewReservationHandler panics if a service is nil.
func NewReservationHandler(svc *service.ReservationService, q *service.ReservationQueryService, loc *time.Location, onChange SessionChanged) *ReservationHandler {
    if svc == nil || q == nil {
        panic("nil service passed to NewReservationHandler")
    }
    if loc == nil {
        loc = time.UTC
    }
    if onChange == nil {
        onChange = func(context.Context, uint64) {}
    }
    return &ReservationHandler{Reservations: svc, Queries: q, Location: loc, OnChange: onChange}
}

// CreateHold handles POST /v1/sessions/:id/holds. A repeated call while
// the hold is active returns the same hold with 200 instead of 201.
func (h *ReservationHandler) CreateHold(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    sid, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "session_id", "must be a positive integer")
    }
    ctx := c.Request().Context()
    res, created, err := h.Reservations.PlaceHold(ctx, sid, uid)
    if err != nil {
        return writeError(c, err)
    }
    if !created {
        return c.JSON(http.StatusOK, toReservation(res))
    }
    h.OnChange(ctx, sid)
    return c.JSON(http.StatusCreated, toReservation(res))
}

// Cancel handles POST /v1/reservations/:id/cancel with an optional
// {"reason": "..."} body. The request waits for an admin decision.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    rid, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "reservation_id", "must be a positive integer")
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&body); err != nil {
            return badRequest(c, "body", "invalid JSON")
        }
    }
    res, err := h.Reservations.Cancel(c.Request().Context(), rid, uid, body.Reason)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusAccepted, toReservation(res))
}

// ListMine handles GET /v1/my-reservations?status=&from=&to=&page=&size=.
func (h *ReservationHandler) ListMine(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    var q listQuery
    if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
        return badRequest(c, "query", "invalid parameters")
    }
    f, err := q.filter(h.Location)
    if err != nil {
        return writeError(c, err)
    }
    page, err := h.Queries.ListForUser(c.Request().Context(), uid, f)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toPage(page))
}

// Get handles GET /v1/reservations/:id for the owner.
func (h *ReservationHandler) Get(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    rid, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "reservation_id", "must be a positive integer")
    }
    res, err := h.Queries.GetForUser(c.Request().Context(), uid, rid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, toReservation(res))
}

// Availability handles GET /v1/sessions/:id/availability.
func (h *ReservationHandler) Availability(c echo.Context) error {
    sid, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "session_id", "must be a positive integer")
    }
    av, err := h.Queries.Availability(c.Request().Context(), sid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, av)
}
