package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// response is what callers need from a finished request.
type response struct {
	Status int
	Header http.Header
	Body   string // set only for non-2xx responses
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Get performs a GET request and decodes a 2xx JSON body into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (response, error) {
	return c.do(ctx, http.MethodGet, path, nil, nil, out)
}

// Post performs a POST request with a JSON body and decodes a 2xx JSON
// body into out.
func (c *HTTPClient) Post(ctx context.Context, path string, body any, header http.Header, out any) (response, error) {
	return c.do(ctx, http.MethodPost, path, body, header, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, header http.Header, out any) (response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	r := response{Status: resp.StatusCode, Header: resp.Header}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		r.Body = strings.TrimSpace(string(b))
		return r, nil
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return r, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return r, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return r, nil
}
