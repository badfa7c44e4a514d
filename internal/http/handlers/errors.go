// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` and `failErr()` helpers in this package). These codes provide
// clients with a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case.
//   - Business failures carry the code of their services.Kind (not_found,
//     not_allowed, already_exists, already_handled).
//   - Lock contention is reported as too_busy with the guard's message.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "already_handled",
//	  "message": "contact application already handled"
//	}
package handlers

import "github.com/tbourn/go-im-core/internal/http/middleware"

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = middleware.CodeUnauthorized
	ErrCodeRateLimited  = middleware.CodeRateLimited
	ErrCodeInternal     = middleware.CodeInternal

	// Business outcomes:
	ErrCodeNotFound       = "not_found"
	ErrCodeNotAllowed     = "not_allowed"
	ErrCodeAlreadyExists  = "already_exists"
	ErrCodeAlreadyHandled = "already_handled"
	ErrCodeTooBusy        = "too_busy"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)
