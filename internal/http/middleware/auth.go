// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides bearer-token authentication. BearerAuth verifies the
// Authorization header and stores the caller's user id in the Gin context
// under "userID" (int64), where handlers and the access logger read it.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-im-core/internal/auth"
)

// UserIDKey is the Gin context key holding the authenticated user id.
const UserIDKey = "userID"

// TokenVerifier validates a bearer token. *auth.JWT satisfies it.
type TokenVerifier interface {
	Parse(token string) (*auth.Claims, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	tok, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(tok)
}

// BearerAuth rejects requests without a valid bearer token with 401.
func BearerAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c)
		if tok == "" {
			Unauthorized(c, "missing bearer token")
			return
		}
		claims, err := v.Parse(tok)
		if err != nil {
			Unauthorized(c, "invalid token")
			return
		}
		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or 0 when unauthenticated.
func UserID(c *gin.Context) int64 {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// Unauthorized aborts with the 401 body used across the API.
func Unauthorized(c *gin.Context, msg string) {
	abortJSON(c, http.StatusUnauthorized, CodeUnauthorized, msg)
}
