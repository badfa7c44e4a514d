package middleware

import (
	"github.com/gin-gonic/gin"
)

// Codes written by the middleware itself. Handlers reuse them so clients
// see one taxonomy.
const (
	CodeUnauthorized      = "unauthorized"
	CodeRateLimited       = "rate_limited"
	CodeBadIdempotencyKey = "bad_idempotency_key"
	CodeInternal          = "internal_error"
)

// ctxKeyErrorCode holds the code of the error envelope written for a request.
const ctxKeyErrorCode = "error.code"

// SetErrorCode records the error code of the response so Metrics can count
// it. Handlers that write their own envelope call it.
func SetErrorCode(c *gin.Context, code string) { c.Set(ctxKeyErrorCode, code) }

// ErrorCode returns the recorded error code, or "" for successful requests.
func ErrorCode(c *gin.Context) string {
	s, _ := c.Get(ctxKeyErrorCode)
	code, _ := s.(string)
	return code
}

// abortJSON writes the standard {request_id, code, message} envelope.
func abortJSON(c *gin.Context, status int, code, msg string) {
	SetErrorCode(c, code)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
