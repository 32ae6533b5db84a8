package middleware

import (
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// AccessToken is a signed bearer token and its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// SignAccessToken builds an HS256 token in the shape JWTAuth accepts: the
// user id as sub, the role, exp and iat. Production tokens come from the
// account service; this is for local runs and tests.
func SignAccessToken(secret string, userID uint64, role string, ttl time.Duration) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
