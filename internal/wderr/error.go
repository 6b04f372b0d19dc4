// Package wderr defines the error types shared by the worlddriven components.
package wderr

import (
	"errors"
	"fmt"
)

// ErrCredentialUnavailable is returned when no credential candidate exists
// for a repository. No request to GitHub was sent.
var ErrCredentialUnavailable = errors.New("no authentication available")

// ErrNotFound is returned when a requested remote or stored object does not exist.
var ErrNotFound = errors.New("not found")

// AuthenticationExhaustedError is returned when an operation failed with
// every credential candidate.
type AuthenticationExhaustedError struct {
	// Op is the name of the failed operation.
	Op string
	// Attempts is the number of credential candidates that were tried.
	Attempts int
	// Last is the error returned for the last tried candidate.
	Last error
}

func (e *AuthenticationExhaustedError) Error() string {
	return fmt.Sprintf("%s failed with all %d credentials, last error: %s", e.Op, e.Attempts, e.Last)
}

func (e *AuthenticationExhaustedError) Unwrap() error {
	return e.Last
}

// BusinessRejectionError is returned when GitHub rejected an operation for a
// reason that does not depend on the used credential, e.g. a merge conflict.
// Operations failing with it are not retried with other credentials.
type BusinessRejectionError struct {
	Op         string
	StatusCode int
	Err        error
}

func NewBusinessRejectionError(op string, statusCode int, err error) *BusinessRejectionError {
	return &BusinessRejectionError{
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
	}
}

func (e *BusinessRejectionError) Error() string {
	return fmt.Sprintf("%s rejected by github (status %d): %s", e.Op, e.StatusCode, e.Err)
}

func (e *BusinessRejectionError) Unwrap() error {
	return e.Err
}

// IsBusinessRejection returns true if err wraps a BusinessRejectionError.
func IsBusinessRejection(err error) bool {
	var bErr *BusinessRejectionError
	return errors.As(err, &bErr)
}
