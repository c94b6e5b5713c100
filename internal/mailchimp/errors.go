package mailchimp

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrBatchTimeout is returned when a batch does not finish before the
// configured maximum wait.
var ErrBatchTimeout = errors.New("batch did not finish before deadline")

// RequestError is a 4xx response carrying the API's problem document.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Type       string `json:"type"`
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("mailchimp %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Title, e.Detail)
}

// NetworkError covers transport failures, non-4xx error statuses and bodies
// that are not JSON.
type NetworkError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("mailchimp %s %s: %v", e.Method, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("mailchimp %s %s: status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("mailchimp %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, truncate(e.Body, 200))
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying later: network
// failures, 5xx responses and rate limiting.
func IsTransient(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == http.StatusTooManyRequests
	}
	return errors.Is(err, ErrBatchTimeout)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
