// Package mastodon is a minimal client for the status endpoints of a
// Mastodon-compatible API.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credentials identify the application and account posting. The API
// calls themselves only need the access token; the application keys are
// kept so a client can be traced back to its registration.
type Credentials struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	AccessToken  string
}

// Client communicates with a Mastodon-compatible HTTP API.
type Client struct {
	baseURL    string
	clientID   string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	newKey     func() string
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. It applies to a copy of the
// HTTP client, so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(creds.BaseURL, "/"),
		clientID: creds.ClientID,
		token:    creds.AccessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		newKey: uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// ClientID returns the application key the client was configured with.
func (c *Client) ClientID() string {
	return c.clientID
}

// StatusRequest is the body for POST /api/v1/statuses.
type StatusRequest struct {
	Status      string `json:"status"`
	InReplyToID string `json:"in_reply_to_id,omitempty"`
	SpoilerText string `json:"spoiler_text,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	Language    string `json:"language,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Status is the subset of a platform status this tool reads back.
type Status struct {
	ID          string    `json:"id"`
	URI         string    `json:"uri"`
	URL         string    `json:"url"`
	InReplyToID string    `json:"in_reply_to_id"`
	Visibility  string    `json:"visibility"`
	Language    string    `json:"language"`
	SpoilerText string    `json:"spoiler_text"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// APIError is a non-success response from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// PostStatus creates a status. Each call carries a fresh Idempotency-Key
// so a request replayed by an intermediary cannot post twice.
func (c *Client) PostStatus(ctx context.Context, req StatusRequest) (*Status, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal status: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statuses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", c.newKey())
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("post status: %w", readAPIError(resp))
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if status.ID == "" {
		return nil, fmt.Errorf("post status: response has no id")
	}
	return &status, nil
}

// GetStatus retrieves a status by id. A missing status is (nil, nil).
func (c *Client) GetStatus(ctx context.Context, id string) (*Status, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get status %s: %w", id, readAPIError(resp))
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// DeleteStatus deletes a status by id.
func (c *Client) DeleteStatus(ctx context.Context, id string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.statusURL(id), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("delete status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("delete status %s: %w", id, readAPIError(resp))
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) statusURL(id string) string {
	return c.baseURL + "/api/v1/statuses/" + url.PathEscape(id)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// readAPIError builds an *APIError from a failed response, preferring the
// platform's {"error": "..."} message over the raw body.
func readAPIError(resp *http.Response) *APIError {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	msg := strings.TrimSpace(string(respBody))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
