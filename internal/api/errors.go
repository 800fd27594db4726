package api

import (
	"errors"
	"fmt"
)

// AuthError indicates missing, invalid, or expired credentials (HTTP 401).
// Every component routes it to the session manager's forced-logout path.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed (401)"
	}
	return fmt.Sprintf("authentication failed (401): %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// RateLimitError indicates HTTP 429. RetryAfter is the cooldown in seconds
// during which the caller must not retry; credentials are not cleared.
type RateLimitError struct {
	RetryAfter int
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rate limited (429): retry after %ds", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited (429): %s", e.Message)
}

// IsRateLimited reports whether err is a RateLimitError, returning it.
func IsRateLimited(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// RequestError covers every other network or server failure. It is surfaced
// to the user with a manual retry affordance and never retried automatically.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

// UserMessage extracts the backend-provided message from err when present,
// falling back to the given default.
func UserMessage(err error, fallback string) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	var rle *RateLimitError
	if errors.As(err, &rle) && rle.Message != "" {
		return rle.Message
	}
	return fallback
}
