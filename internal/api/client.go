package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"towermap/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "TOWERMAP_HTTP_TIMEOUT"
	apiTokenEnvKey     = "TOWERMAP_API_TOKEN"
)

// Client is a small HTTP client for a running towermap server.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Info returns server and database details.
func (c *Client) Info(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, &resp)
	return resp, err
}

// ListMarkers returns every marker the server knows about.
func (c *Client) ListMarkers(ctx context.Context) ([]models.Marker, error) {
	var resp []models.Marker
	err := c.do(ctx, http.MethodGet, "/get_markers", nil, &resp)
	return resp, err
}

// DeleteMarker asks the server to delete one marker.
func (c *Client) DeleteMarker(ctx context.Context, id int64) error {
	form := url.Values{"id": {strconv.FormatInt(id, 10)}}
	return c.do(ctx, http.MethodPost, "/delete", form, nil)
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp ErrorResponse
	if err := json.Unmarshal(payload, &errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, ErrorCode: errResp.ErrorCode, Message: errResp.Error}
	}
	message := strings.TrimSpace(string(payload))
	if message == "" {
		message = resp.Status
	}
	return &APIError{Status: resp.StatusCode, Message: message}
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
