package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
    CtxUserID = "user_id"
    CtxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// issued by the account service and stores the caller's numeric user id
// and role in the request context. Tokens must be HMAC-signed with secret.
func JWTAuth(secret string) echo.MiddlewareFunc {
    key := []byte(secret)
    parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims := jwt.MapClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
                return key, nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
            }

            uid, ok := subject(claims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid subject", "code": "unauthorized"})
            }
            role, _ := claims["role"].(string)

            c.Set(CtxUserID, uid)
            c.Set(CtxRole, strings.ToUpper(role))
            return next(c)
        }
    }
}

// subject reads the sub claim, which issuers encode either as a decimal
// string or as a JSON number.
func subject(claims jwt.MapClaims) (uint64, bool) {
    switch v := claims["sub"].(type) {
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        return n, err == nil && n > 0
    case float64:
        if v < 1 || v != float64(uint64(v)) {
            return 0, false
        }
        return uint64(v), true
    }
    return 0, false
}

// UserID returns the authenticated caller set by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
    uid, ok := c.Get(CtxUserID).(uint64)
    return uid, ok && uid > 0
}

// Role returns the caller's upper-cased role claim.
func Role(c echo.Context) string {
    r, _ := c.Get(CtxRole).(string)
    return r
}
