package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/class-booking/internal/middleware"
    "github.com/iliyamo/class-booking/internal/service"
)

// PaymentHandler confirms payments captured by the payment provider.
type PaymentHandler struct {
    Reservations *service.ReservationService
    // Verifier reports what the provider actually charged. When nil the
    // client's paid_amount is trusted; main only allows that outside prod.
    Verifier service.PaymentVerifier
    OnChange SessionChanged
    Log      *zap.Logger
}

type confirmRequest struct {
    ReservationID uint64 `json:"reservation_id"`
    SessionID     uint64 `json:"session_id"`
    PaymentRef    string `json:"payment_ref"`
    PaidAmount    int64  `json:"paid_amount"`
    Quantity      int    `json:"quantity"`
    CouponID      uint64 `json:"coupon_id"`
    PointsUsed    int64  `json:"points_used"`
}

// Confirm handles POST /v1/payments/confirm. The charged amount comes from
// the verifier; the reservation becomes PAID only if it matches the
// expected amount.
func (h *PaymentHandler) Confirm(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return unauthorized(c)
    }
    var req confirmRequest
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "body", "invalid JSON")
    }
    if req.PaymentRef == "" {
        return badRequest(c, "payment_ref", "is required")
    }
    ctx := c.Request().Context()

    paid := req.PaidAmount
    if h.Verifier != nil {
        verified, err := h.Verifier.Verify(ctx, req.PaymentRef)
        if err != nil {
            return writeError(c, err)
        }
        if req.PaidAmount != 0 && req.PaidAmount != verified {
            h.log().Warn("client paid_amount differs from provider",
                zap.String("payment_ref", req.PaymentRef),
                zap.Int64("claimed", req.PaidAmount),
                zap.Int64("verified", verified))
        }
        paid = verified
    }

    res, err := h.Reservations.ConfirmPayment(ctx, service.ConfirmPaymentInput{
        ReservationID: req.ReservationID,
        SessionID:     req.SessionID,
        UserID:        uid,
        PaymentRef:    req.PaymentRef,
        PaidAmount:    paid,
        Quantity:      req.Quantity,
        CouponID:      req.CouponID,
        PointsUsed:    req.PointsUsed,
    })
    if err != nil {
        return writeError(c, err)
    }
    if h.OnChange != nil {
        h.OnChange(ctx, res.SessionID)
    }
    return c.JSON(http.StatusOK, toReservation(res))
}

func (h *PaymentHandler) log() *zap.Logger {
    if h.Log == nil {
        return zap.NewNop()
    }
    return h.Log
}
