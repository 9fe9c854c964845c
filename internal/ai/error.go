package ai

import "fmt"

// ErrorKind classifies a provider failure so callers can decide between
// retrying, surfacing a temporary-unavailability message, or rejecting the
// input.
type ErrorKind string

const (
	KindAuth        ErrorKind = "auth"         // bad or revoked credentials
	KindRateLimited ErrorKind = "rate_limited" // quota or rate limit hit
	KindBadRequest  ErrorKind = "bad_request"  // malformed input, not retryable
	KindTransient   ErrorKind = "transient"    // network error, timeout, 5xx
)

// ProviderError is returned by the embedding and completion clients for any
// non-success outcome.
type ProviderError struct {
	Op     string // "embedding" or "completion"
	Kind   ErrorKind
	Status int // HTTP status, 0 for transport-level failures
	Msg    string
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s provider %s (status %d): %s", e.Op, e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s provider %s: %s", e.Op, e.Kind, e.Msg)
}

// Retryable reports whether the failure may succeed on a later attempt.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTransient
}

func kindForStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindAuth
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	default:
		return KindBadRequest
	}
}
