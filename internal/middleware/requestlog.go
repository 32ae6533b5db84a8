package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = echo.HeaderXRequestID

// CtxRequestID is the context key for the request id.
const CtxRequestID = "request_id"

// RequestID reuses an incoming X-Request-ID or mints one.
func RequestID() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id := c.Request().Header.Get(RequestIDHeader)
            if id == "" {
                id = uuid.NewString()
            }
            c.Set(CtxRequestID, id)
            c.Response().Header().Set(RequestIDHeader, id)
            return next(c)
        }
    }
}

// GetRequestID returns the id set by RequestID.
func GetRequestID(c echo.Context) string {
    id, _ := c.Get(CtxRequestID).(string)
    return id
}

// RequestLogger logs one line per request, at a level chosen by status.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            req := c.Request()
            status := c.Response().Status
            fields := []zap.Field{
                zap.String("request_id", GetRequestID(c)),
                zap.Int("status", status),
                zap.String("method", req.Method),
                zap.String("path", req.URL.Path),
                zap.String("route", c.Path()),
                zap.String("ip", c.RealIP()),
                zap.Duration("latency", time.Since(start)),
                zap.Int64("body_size", c.Response().Size),
            }
            if uid, ok := UserID(c); ok {
                fields = append(fields, zap.Uint64("user_id", uid))
            }
            if err != nil {
                fields = append(fields, zap.Error(err))
            }

            switch {
            case status >= 500:
                log.Error("Server error", fields...)
            case status >= 400:
                log.Warn("Client error", fields...)
            default:
                log.Info("Request completed", fields...)
            }
            return nil
        }
    }
}
