package antpool

import (
	"fmt"
	"time"
)

// AuthError means the remote rejected the signature or key. Not retryable.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth rejected (code %d): %s", e.Code, e.Message)
}

// RateLimitedError is the remote-side throttling signal. Retryable with
// backoff, or deferred to the next scheduled pass.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by remote (retry after %s)", e.RetryAfter)
}

// NetworkError is a transport-level failure. Retryable up to a bound.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a well-formed error payload from the API. Not retryable.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (code %d): %s", e.Code, e.Message)
}
