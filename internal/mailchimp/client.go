package mailchimp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/listsync/internal/pkg/httpretry"
)

// Config holds the client settings
type Config struct {
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      int
	PollInterval    time.Duration // batch status polling interval
	MaxWait         time.Duration // upper bound on waiting for one batch
	SerialThreshold int           // fewer operations than this are sent one by one
}

// Client is the mailing list API client
type Client struct {
	baseURL         string
	apiKey          string
	httpClient      httpretry.HTTPDoer
	pollInterval    time.Duration
	maxWait         time.Duration
	serialThreshold int
}

// Response is the raw result of a successful call.
type Response struct {
	StatusCode int
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// NewClient creates a new API client
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	retries := config.MaxRetries
	if retries == 0 {
		retries = 3
	}
	c := &Client{
		baseURL:         strings.TrimRight(config.BaseURL, "/"),
		apiKey:          config.APIKey,
		pollInterval:    config.PollInterval,
		maxWait:         config.MaxWait,
		serialThreshold: config.SerialThreshold,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, retries),
	}
	if c.baseURL == "" {
		c.baseURL = BaseURLForKey(config.APIKey)
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 10 * time.Second
	}
	if c.maxWait <= 0 {
		c.maxWait = time.Hour
	}
	if c.serialThreshold <= 0 {
		c.serialThreshold = 10
	}
	return c
}

// BaseURLForKey derives the API root from the data-center suffix of an API
// key ("...-us6"). Keys without a suffix yield an empty string.
func BaseURLForKey(apiKey string) string {
	i := strings.LastIndex(apiKey, "-")
	if i < 0 || i == len(apiKey)-1 {
		return ""
	}
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", apiKey[i+1:])
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// SerialThreshold returns the operation count below which batches are sent
// as individual calls.
func (c *Client) SerialThreshold() int { return c.serialThreshold }

// Call performs one authenticated request. body is JSON encoded unless it
// is nil; a json.RawMessage is sent as is.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth("listsync", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		reqErr := &RequestError{Method: method, Path: path, StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, reqErr); err != nil {
			return nil, &NetworkError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody),
				Err: fmt.Errorf("non-JSON error body: %w", err)}
		}
		return nil, reqErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if len(bytes.TrimSpace(respBody)) > 0 && !json.Valid(respBody) {
		return nil, &NetworkError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody),
			Err: fmt.Errorf("response is not JSON")}
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// get performs a GET and decodes the body into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.Call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Ping checks credentials and connectivity.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		HealthStatus string `json:"health_status"`
	}
	return c.get(ctx, "/ping", &out)
}
