package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/class-booking/internal/logger"
    "github.com/iliyamo/class-booking/internal/model"
)

// RetryAfterSeconds is sent with 503 responses when a session is busy.
const RetryAfterSeconds = 1

// errorCodes names each failure for clients that branch on it.
var errorCodes = []struct {
    err    error
    status int
    code   string
}{
    {model.ErrBusy, http.StatusServiceUnavailable, "busy"},
    {model.ErrAmountMismatch, http.StatusUnprocessableEntity, "amount_mismatch"},
    {model.ErrPaymentNotCompleted, http.StatusPaymentRequired, "payment_not_completed"},
    {model.ErrValidation, http.StatusBadRequest, "validation_failed"},
    {model.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
    {model.ErrReservationNotFound, http.StatusNotFound, "reservation_not_found"},
    {model.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
    {model.ErrCouponNotFound, http.StatusNotFound, "coupon_not_found"},
    {model.ErrNotFound, http.StatusNotFound, "not_found"},
    {model.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
    {model.ErrAlreadyBooked, http.StatusConflict, "already_booked"},
    {model.ErrPendingCancellation, http.StatusConflict, "pending_cancellation"},
    {model.ErrSessionAlreadyStarted, http.StatusConflict, "session_already_started"},
    {model.ErrHoldNoLongerValid, http.StatusConflict, "hold_no_longer_valid"},
    {model.ErrPaymentRefUsed, http.StatusConflict, "payment_ref_used"},
    {model.ErrAlreadyPendingCancellation, http.StatusConflict, "already_pending_cancellation"},
    {model.ErrAlreadyCanceled, http.StatusConflict, "already_canceled"},
    {model.ErrAlreadyExpired, http.StatusConflict, "already_expired"},
    {model.ErrClassAlreadyCompleted, http.StatusConflict, "class_already_completed"},
    {model.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
}

// writeError renders err as {"error", "code"} with the matching status.
// Unknown errors are logged and reported as 500 without detail.
func writeError(c echo.Context, err error) error {
    for _, e := range errorCodes {
        if !errors.Is(err, e.err) {
            continue
        }
        body := echo.Map{"error": err.Error(), "code": e.code}
        var ve *model.ValidationError
        if errors.As(err, &ve) && ve.Field != "" {
            body["field"] = ve.Field
        }
        var am *model.AmountMismatchError
        if errors.As(err, &am) {
            body["expected_amount"] = am.Expected
            body["paid_amount"] = am.Paid
        }
        if e.status == http.StatusServiceUnavailable {
            c.Response().Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
        }
        return c.JSON(e.status, body)
    }
    logger.Get().Error("unhandled error",
        zap.String("method", c.Request().Method),
        zap.String("path", c.Request().URL.Path),
        zap.Error(err))
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error", "code": "internal"})
}

func badRequest(c echo.Context, field, reason string) error {
    return writeError(c, model.NewValidationError(field, reason))
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "unauthorized"})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}
