package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for engine operations
var (
	// ErrBookNotFound indicates the requested book does not exist in the library
	ErrBookNotFound = errors.New("book not found in library")

	// ErrServerOffline indicates the content server is unreachable
	ErrServerOffline = errors.New("content server is unreachable")

	// ErrAuthFailed indicates the session token was rejected
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrBlobMissing indicates an index write was attempted for a book whose
	// blob is not cached; an index is only valid relative to its blob
	ErrBlobMissing = errors.New("no cached blob for book")

	// ErrSessionClosed indicates an operation on a closed reading session
	ErrSessionClosed = errors.New("reading session is closed")
)

// RemoteError is a 4xx-class rejection from the server. It is never retried
// or queued: resending a request the server already refused is wasted work.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("server rejected request (status %d): %s", e.StatusCode, e.Message)
}

// IsRejection reports whether err is a remote rejection: surface to the
// caller, do not retry, do not queue.
func IsRejection(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, ErrBookNotFound) || errors.Is(err, ErrAuthFailed)
}

// IsTransient reports whether err is a transient network failure: queue the
// work and retry on the next flush, never surface as fatal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRejection(err) {
		return false
	}
	if errors.Is(err, ErrServerOffline) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Unknown failures are treated as transient: retrying a retryable error
	// we misclassified is cheaper than dropping a user's progress.
	return true
}
