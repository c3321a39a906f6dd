package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrNetwork     = errors.New("network error communicating with chive server")
)

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chive API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
