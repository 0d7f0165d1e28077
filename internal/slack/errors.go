package slack

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingToken is returned when the client is constructed without a
// credential.
var ErrMissingToken = errors.New("slack: missing access token")

// ConfigError reports a credential the platform rejected outright
// (revoked token, deactivated app account, and the like).
type ConfigError struct {
	Code string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("slack: invalid credential: %s", e.Code)
}

// ScopeError reports a token that lacks the capability a method requires.
// Raised locally before the request when the configured scope set is known
// to be insufficient, or from the platform's missing_scope response.
type ScopeError struct {
	Method string
	Scope  string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("slack: %s requires scope %q", e.Method, e.Scope)
}

// NotFoundError reports an unknown user or channel id.
type NotFoundError struct {
	Kind string // "user" or "channel"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("slack: %s %s not found", e.Kind, e.ID)
}

// MalformedResponseError reports a successful-looking response missing an
// expected field.
type MalformedResponseError struct {
	Method string
	Field  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("slack: %s response missing %q", e.Method, e.Field)
}

// RateLimitedError is retryable. RetryAfter carries the platform's
// Retry-After hint when present, zero otherwise.
type RateLimitedError struct {
	Method     string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("slack: %s rate limited (retry after %s)", e.Method, e.RetryAfter)
}

// APIError is any other failure code reported by the platform.
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slack: %s failed: %s", e.Method, e.Code)
}

// IsRateLimited reports whether err is a retryable rate-limit response.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// mapError converts a platform failure code into the typed taxonomy.
func mapError(method, code, needed, target string) error {
	switch code {
	case "ratelimited", "rate_limited":
		return &RateLimitedError{Method: method}
	case "missing_scope", "not_allowed_token_type":
		if needed == "" {
			needed = code
		}
		return &ScopeError{Method: method, Scope: needed}
	case "user_not_found":
		return &NotFoundError{Kind: "user", ID: target}
	case "channel_not_found":
		return &NotFoundError{Kind: "channel", ID: target}
	case "invalid_auth", "not_authed", "token_revoked", "account_inactive":
		return &ConfigError{Code: code}
	default:
		return &APIError{Method: method, Code: code}
	}
}
