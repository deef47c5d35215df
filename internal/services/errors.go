// Package services defines the business logic for users, emoji requests, and
// the explanation cache. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes should be performed at the
// handler layer.
package services

import "errors"

// User-related errors.
var (
	// ErrDuplicateEmail is returned when registration uses an email that is
	// already taken. Nothing is mutated in that case.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrUserNotFound indicates that the referenced user does not exist.
	// Ledger creation for an unknown user id is rejected with this error.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidCredentials is returned when authentication fails. The cause
	// (unknown email vs. wrong password) is deliberately not distinguished.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidRole is returned when a role update names a role outside the
	// ADMIN/USER set.
	ErrInvalidRole = errors.New("role must be ADMIN or USER")
)

// Request-related errors.
var (
	// ErrEmptyEmoji is returned when a submission contains no emoji.
	ErrEmptyEmoji = errors.New("emoji is empty")

	// ErrEmojiTooLong is returned when a submission exceeds the maximum
	// configured emoji length.
	ErrEmojiTooLong = errors.New("emoji too long")

	// ErrRequestNotFound indicates that the requested ledger row does not
	// exist or is not visible to the caller.
	ErrRequestNotFound = errors.New("request not found")

	// ErrInvalidTransition is returned on an attempted finalize of a row that
	// is already terminal. It indicates a coordinator bug or a duplicate
	// delivery, not a user-facing condition.
	ErrInvalidTransition = errors.New("request already in a terminal state")

	// ErrForbidden is returned when a caller lacks the capability for an
	// operation (e.g., a USER enumerating all requests).
	ErrForbidden = errors.New("forbidden")

	// ErrExplanationNotFound indicates that the requested cache row does not exist.
	ErrExplanationNotFound = errors.New("explanation not found")
)
