package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from a provider. These are the transient
// failures the outbox retries under backoff.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

// Response is a decoded provider HTTP response. The JSON-or-text decision is
// made here, once, not re-derived per call site.
type Response struct {
	StatusCode int
	Header     http.Header
	Raw        Raw
}

// Client is a thin HTTP wrapper shared by all provider adapters: base URL,
// default headers, bounded timeout, uniform error shape.
type Client struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		headers: make(map[string]string),
	}
}

func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// Do performs one request. Non-2xx responses come back as *APIError with the
// body attached; 2xx responses are decoded into Raw.
func (c *Client) Do(ctx context.Context, method, endpoint, contentType string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(responseBody)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Raw:        decodeRaw(responseBody),
	}, nil
}

// PostJSON marshals body as JSON and performs a POST.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return c.Do(ctx, http.MethodPost, endpoint, "application/json", strings.NewReader(string(data)))
}

// PostForm performs a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, endpoint, form string) (*Response, error) {
	return c.Do(ctx, http.MethodPost, endpoint, "application/x-www-form-urlencoded", strings.NewReader(form))
}

func decodeRaw(body []byte) Raw {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return Raw{}
	}

	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
		switch parsed.(type) {
		case map[string]any, []any:
			return Raw{JSON: parsed}
		}
	}
	return Raw{Text: trimmed}
}

// jsonString pulls a string field out of a decoded JSON object; empty when
// the body was not an object or the field is absent.
func jsonString(raw Raw, key string) string {
	obj, ok := raw.JSON.(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}
