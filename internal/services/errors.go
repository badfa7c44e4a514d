// Package services implements the relationship core: contact applications,
// contacts and user profiles. This file centralizes the business error values
// returned by service methods.
//
// Every business failure is a *Error with a Kind, a stable Code and a
// message safe to show to users. Handlers map the Kind to an HTTP status and
// forward Code and Message unchanged. Contention is reported separately as
// ErrTooBusy; anything else is an infrastructure failure.
package services

import (
	"errors"

	"github.com/tbourn/go-im-core/internal/lock"
)

// Kind classifies a business error.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindNotAllowed
	KindAlreadyExists
	KindAlreadyHandled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindNotAllowed:
		return "not_allowed"
	case KindAlreadyExists:
		return "already_exists"
	case KindAlreadyHandled:
		return "already_handled"
	}
	return "unknown"
}

// Error is a validation failure. It is never retried.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// KindOf returns the Kind of a business error, or 0 for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Applications.
var (
	// ErrTargetNotFound is returned when the addressed username does not exist.
	ErrTargetNotFound = &Error{KindNotFound, "user_not_found", "user not found"}

	// ErrSelfApply is returned when a user proposes to themselves.
	ErrSelfApply = &Error{KindNotAllowed, "self_apply", "cannot add yourself as a contact"}

	// ErrContactExists is returned when the pair is already connected.
	ErrContactExists = &Error{KindAlreadyExists, "contact_exists", "already in your contacts"}

	ErrApplyNotFound = &Error{KindNotFound, "apply_not_found", "contact application not found"}

	// ErrNotRecipient is returned when the handler is not the application's addressee.
	ErrNotRecipient = &Error{KindNotAllowed, "not_recipient", "only the recipient can handle this application"}

	ErrApplyHandled = &Error{KindAlreadyHandled, "apply_handled", "contact application already handled"}
)

// Contacts and users.
var (
	ErrContactNotFound = &Error{KindNotFound, "contact_not_found", "contact not found"}

	// ErrNotOwner is returned when a user touches another user's contact row.
	ErrNotOwner = &Error{KindNotAllowed, "not_owner", "contact does not belong to you"}

	// ErrConversationMissing is returned for a contact row without a conversation.
	ErrConversationMissing = &Error{KindNotFound, "conversation_not_found", "conversation not found"}

	ErrUserNotFound = &Error{KindNotFound, "user_not_found", "user not found"}
)

// ErrTooBusy reports lock contention; the concrete error is a *lock.BusyError
// carrying the message for the caller.
var ErrTooBusy = lock.ErrTooBusy
