package auth

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when login is requested before the startup
	// lookup has finished.
	ErrNotReady = errors.New("session gate is still initializing")

	// ErrLoginCancelled is the result of a login task that was cancelled or
	// superseded by a logout.
	ErrLoginCancelled = errors.New("login cancelled")

	// ErrGateClosed is returned for logins attempted after Close.
	ErrGateClosed = errors.New("session gate closed")
)

// LoginError is a failed identity-provider round trip.
type LoginError struct {
	Provider string
	Err      error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login via %s failed: %v", e.Provider, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

// UserMessage is the text shown on the login view.
func (e *LoginError) UserMessage() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "Sign-in timed out. Please try again."
	}
	var rejected *RejectedError
	if errors.As(e.Err, &rejected) {
		return fmt.Sprintf("Sign-in was rejected: %s", rejected.Reason)
	}
	return "Sign-in failed. Please try again or contact support."
}

// RejectedError is returned by providers when the identity provider refuses
// the sign-in (consent denied, account disabled).
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "identity provider rejected sign-in: " + e.Reason
}
