package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tazhate/studentreminder/internal/domain"
)

// Client is the HTTP client for the student reminder backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) IsConfigured() bool {
	return c.baseURL != ""
}

// doRequest performs an HTTP request authorized with the user's token.
func (c *Client) doRequest(ctx context.Context, method, path, token string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GetReminders returns the signed-in user's reminders. The backend answers
// either with a bare list or with {"reminders": [...]}.
func (c *Client) GetReminders(ctx context.Context, token string) ([]domain.Reminder, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/getReminders/", token, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	var reminders []domain.Reminder
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &reminders); err != nil {
			return nil, fmt.Errorf("unmarshal reminders: %w", err)
		}
	} else {
		var wrapped struct {
			Reminders []domain.Reminder `json:"reminders"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("unmarshal reminders: %w", err)
		}
		reminders = wrapped.Reminders
	}

	for i := range reminders {
		reminders[i].Normalize()
	}
	return reminders, nil
}
