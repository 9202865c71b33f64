package middleware

// identity.go holds the helpers that read the authenticated principal back
// out of the Echo context once JWTAuth has run.

import "github.com/labstack/echo/v4"

// PrincipalID returns the authenticated principal id, or "" for guests.
func PrincipalID(c echo.Context) string {
    if v, ok := c.Get(CtxPrincipalID).(string); ok {
        return v
    }
    return ""
}

// PrincipalEmail returns the verified email carried by the access token.
func PrincipalEmail(c echo.Context) string {
    if v, ok := c.Get(CtxEmail).(string); ok {
        return v
    }
    return ""
}

// principalOrAnon is the rate-limit identity of the caller.
func principalOrAnon(c echo.Context) string {
    if id := PrincipalID(c); id != "" {
        return id
    }
    return "anon"
}
