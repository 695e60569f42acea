package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Response is the decision service's judgment for a session.
type Response struct {
	ShouldShowMessage bool   `json:"should_show_message"`
	Message           string `json:"message,omitempty"`
	TriggerType       string `json:"trigger_type,omitempty"`
}

type analyzeRequest struct {
	SessionID string `json:"session_id"`
}

// Client calls the remote decision service.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Analyze asks the service whether to intervene for the given session.
func (c *Client) Analyze(ctx context.Context, sessionID string) (*Response, error) {
	body, err := json.Marshal(analyzeRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("decision: analyze returned status %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
