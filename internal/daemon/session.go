// Package daemon implements HTTP clients for the robot daemon's motion,
// memory and device-controller services. All clients derive from a shared
// Session and speak JSON to /api/v1/<service>/<method> endpoints.
package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/asterworks/go-aster/internal/httpc"
	"github.com/asterworks/go-aster/internal/log"
)

// Session is a connection to one robot daemon. Service clients created from
// it share its base URL and the process-wide HTTP client.
type Session struct {
	baseURL string
	logger  *slog.Logger
}

// NewSession creates a session for the daemon at baseURL, for example
// http://127.0.0.1:9559.
func NewSession(baseURL string) *Session {
	return &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  log.Component("daemon"),
	}
}

// URL returns the daemon base URL the session talks to.
func (s *Session) URL() string { return s.baseURL }

// Health queries the daemon status endpoint and returns its state string.
// Used as the reachability probe before any service call is attempted.
func (s *Session) Health() (string, error) {
	resp, err := httpc.Get(s.baseURL + "/api/v1/health")
	if err != nil {
		return "", fmt.Errorf("daemon health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Service: "health", Method: "get", StatusCode: resp.StatusCode}
	}

	var status struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("failed to decode daemon health: %w", err)
	}
	return status.State, nil
}

// call invokes one service method. A nil req sends an empty JSON object; a
// nil out discards the response body. Non-2xx responses are returned as
// *APIError with the daemon's error message when it provides one.
func (s *Session) call(service, method string, req, out any) error {
	payload := []byte("{}")
	if req != nil {
		var err error
		payload, err = json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal %s.%s request: %w", service, method, err)
		}
	}

	url := fmt.Sprintf("%s/api/v1/%s/%s", s.baseURL, service, method)
	resp, err := httpc.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s.%s request failed: %w", service, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Service: service, Method: method, StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Message = body.Error
		}
		s.logger.Debug("service call failed", "service", service, "method", method,
			"status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s.%s response: %w", service, method, err)
	}
	return nil
}
