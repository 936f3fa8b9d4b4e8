package monzo

import (
	"errors"
	"fmt"
)

// AuthError is returned when the token endpoint rejects a code exchange or
// a refresh.
type AuthError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("monzo %s failed (%d): %s", e.Op, e.StatusCode, e.Body)
}

// ForbiddenError means the access token is valid but the user has not yet
// approved the connection in the Monzo app.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// ProviderError covers every other failed provider call, including
// transport errors where StatusCode is zero.
type ProviderError struct {
	Op         string
	StatusCode int
	Status     string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Status)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsForbidden reports whether err is, or wraps, a ForbiddenError
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// IsAuth reports whether err is, or wraps, an AuthError
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
