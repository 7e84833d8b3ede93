package daemon

import "fmt"

// APIError describes a non-2xx response from a daemon service call.
type APIError struct {
	Service    string
	Method     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("daemon %s.%s: %s (status %d)", e.Service, e.Method, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("daemon %s.%s: status %d", e.Service, e.Method, e.StatusCode)
}
