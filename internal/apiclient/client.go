// Package apiclient talks to a running "tailor serve" instance.
package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adevaykin/tailor/internal/api"
)

var ErrNoBaseURL = errors.New("base URL is required")

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// BaseURL turns a listen address such as "127.0.0.1:8089" into an http URL.
// Values that already carry a scheme are returned without a trailing slash.
func BaseURL(addr string) string {
	addr = strings.TrimRight(strings.TrimSpace(addr), "/")
	if addr == "" || strings.Contains(addr, "://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

// FetchStatus reads /api/status.
func FetchStatus(client *http.Client, baseURL, token string) (api.Status, error) {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return api.Status{}, ErrNoBaseURL
	}

	request, err := http.NewRequest(http.MethodGet, baseURL+"/api/status", nil)
	if err != nil {
		return api.Status{}, fmt.Errorf("build status request: %w", err)
	}
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return api.Status{}, fmt.Errorf("status request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return api.Status{}, &HTTPError{StatusCode: response.StatusCode, Message: readErrorMessage(response)}
	}

	var status api.Status
	if err := json.NewDecoder(response.Body).Decode(&status); err != nil {
		return api.Status{}, fmt.Errorf("decode status response: %w", err)
	}
	return status, nil
}

func ensureClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return http.DefaultClient
}

func addToken(request *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	request.Header.Set("Authorization", "Bearer "+token)
}

// readErrorMessage prefers the "message" field of a JSON error body.
func readErrorMessage(response *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(response.Body, 64<<10))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return response.Status
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return payload.Message
	}
	return text
}
