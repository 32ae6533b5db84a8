package handler

import (
    "strings"
    "time"

    "github.com/iliyamo/class-booking/internal/model"
    "github.com/iliyamo/class-booking/internal/service"
)

type reservationResponse struct {
    ID                uint64     `json:"id"`
    SessionID         uint64     `json:"session_id"`
    UserID            uint64     `json:"user_id"`
    Status            string     `json:"status"`
    HoldExpiredAt     *time.Time `json:"hold_expired_at,omitempty"`
    PaidAt            *time.Time `json:"paid_at,omitempty"`
    CanceledAt        *time.Time `json:"canceled_at,omitempty"`
    CompletedAt       *time.Time `json:"completed_at,omitempty"`
    CancelRequestedAt *time.Time `json:"cancel_requested_at,omitempty"`
    CancelReason      string     `json:"cancel_reason,omitempty"`
    PaymentRef        string     `json:"payment_ref,omitempty"`
    CreatedAt         time.Time  `json:"created_at"`

    SessionTitle string     `json:"session_title,omitempty"`
    StartAt      *time.Time `json:"start_at,omitempty"`
    Price        *int64     `json:"price,omitempty"`
}

func toReservation(r *model.Reservation) reservationResponse {
    out := reservationResponse{
        ID:                r.ID,
        SessionID:         r.SessionID,
        UserID:            r.UserID,
        Status:            string(r.Status),
        HoldExpiredAt:     r.HoldExpiredAt,
        PaidAt:            r.PaidAt,
        CanceledAt:        r.CanceledAt,
        CompletedAt:       r.CompletedAt,
        CancelRequestedAt: r.CancelRequestedAt,
        CancelReason:      r.CancelReason,
        CreatedAt:         r.CreatedAt,
    }
    if r.PaymentRef != nil {
        out.PaymentRef = *r.PaymentRef
    }
    return out
}

func toView(v model.ReservationView) reservationResponse {
    out := toReservation(&v.Reservation)
    start, price := v.StartAt, v.Price
    out.SessionTitle = v.SessionTitle
    out.StartAt = &start
    out.Price = &price
    return out
}

type pageResponse struct {
    Items []reservationResponse `json:"items"`
    Total int64                 `json:"total"`
    Page  int                   `json:"page"`
    Size  int                   `json:"size"`
}

func toPage(p *service.Page) pageResponse {
    items := make([]reservationResponse, 0, len(p.Items))
    for _, v := range p.Items {
        items = append(items, toView(v))
    }
    return pageResponse{Items: items, Total: p.Total, Page: p.Page, Size: p.Size}
}

// listQuery is the query string shared by the list endpoints.
type listQuery struct {
    Status string `query:"status"`
    From   string `query:"from"`
    To     string `query:"to"`
    Page   int    `query:"page"`
    Size   int    `query:"size"`
}

// filter converts q, reading dates in loc. A bare date in To covers the
// whole day.
func (q listQuery) filter(loc *time.Location) (model.ReservationFilter, error) {
    f := model.ReservationFilter{Page: q.Page, Size: q.Size}
    st, ok, err := model.ParseStatus(q.Status)
    if err != nil {
        return f, err
    }
    if ok {
        f.Status = st
    }
    if f.From, err = parseBound("from", q.From, loc, false); err != nil {
        return f, err
    }
    if f.To, err = parseBound("to", q.To, loc, true); err != nil {
        return f, err
    }
    return f, nil
}

func parseBound(field, raw string, loc *time.Location, endOfDay bool) (*time.Time, error) {
    raw = strings.TrimSpace(raw)
    if raw == "" {
        return nil, nil
    }
    if t, err := time.Parse(time.RFC3339, raw); err == nil {
        return &t, nil
    }
    d, err := time.ParseInLocation(time.DateOnly, raw, loc)
    if err != nil {
        return nil, model.NewValidationError(field, "must be RFC 3339 or YYYY-MM-DD")
    }
    if endOfDay {
        d = d.AddDate(0, 0, 1).Add(-time.Nanosecond)
    }
    return &d, nil
}
