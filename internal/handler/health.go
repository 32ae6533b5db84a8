package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Pinger is anything the health check can probe, such as *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health answers GET /healthz for load balancers. With a Pinger it also
// checks the store and answers 503 when it is unreachable.
func Health(store Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if store != nil {
            ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
            defer cancel()
            if err := store.PingContext(ctx); err != nil {
                return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "store": err.Error()})
            }
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
    }
}
