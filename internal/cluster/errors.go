package cluster

import (
	"errors"
	"fmt"
)

// HTTPError represents a non-2xx response from the API server.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsRetryable reports whether the request may succeed on retry.
func (e *HTTPError) IsRetryable() bool {
	// 5xx errors are generally retryable (server issues)
	// 429 Too Many Requests is retryable after delay
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// IsNotFound reports whether err is a 404 from the API server.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 404
}
