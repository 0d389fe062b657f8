package shared

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrRateLimited        = fmt.Errorf("rate limited")

	// Sync state errors
	ErrStateCorrupted = fmt.Errorf("progress record corrupted")
	ErrRunLocked      = fmt.Errorf("another sync is running against this state directory")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// ErrorKind classifies a failure for the sync engine's stop/retry policy.
type ErrorKind int

const (
	// KindTransient failures are expected to clear on retry (rate limit, conflict, 5xx, network).
	KindTransient ErrorKind = iota
	// KindPermanent failures will not clear without operator intervention.
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return ""
	}
}

// APIError is a failed call to Spotify or YouTube, carrying enough context to classify and diagnose it.
type APIError struct {
	Service string // "spotify" or "youtube"
	Status  int    // HTTP status code, 0 for network failures
	Reason  string // API-provided reason, e.g. "quotaExceeded", "videoAlreadyInPlaylist"
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s request failed: %s", e.Service, e.Message)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s API error (status %d, %s): %s", e.Service, e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.Status)
}

// Kind classifies the error. 403/409/429 and every 5xx retry, matching the
// destination's rate-limit and conflict responses; other 4xx are terminal.
func (e *APIError) Kind() ErrorKind {
	switch {
	case e.Status == 0:
		return KindTransient
	case e.Status == http.StatusForbidden, e.Status == http.StatusConflict, e.Status == http.StatusTooManyRequests:
		return KindTransient
	case e.Status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// IsDuplicate reports whether the error is the destination rejecting a video
// that is already a member of the playlist.
func (e *APIError) IsDuplicate() bool {
	return e.Reason == "videoAlreadyInPlaylist"
}

// Classify maps an arbitrary error to an [ErrorKind].
//
// Unrecognized errors classify as permanent: the engine must never spin on a
// failure it cannot name.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}

	return KindPermanent
}
