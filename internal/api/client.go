package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenFunc supplies the current access token for a request. The session
// manager owns token rotation; the client just reads the latest value.
type TokenFunc func() string

// Client is a thin HTTP client for the student-portal REST API. It handles
// Bearer token authentication, JSON marshaling, and maps HTTP statuses onto
// the client error taxonomy. It performs no automatic retries: rate limits
// become an explicit cooldown and everything else is retried only by user
// action.
type Client struct {
	baseURL    string
	prefix     string
	token      TokenFunc
	httpClient *http.Client
}

// NewClient creates a portal API client. baseURL is the backend root URL
// and prefix the API path prefix (e.g. /api/v1). token may be nil for
// unauthenticated use; Login and CheckAuth manage their own credentials.
func NewClient(baseURL, prefix string, token TokenFunc) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  prefix,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// errorBody is the backend's generic error payload. Login rate limits
// additionally carry retryAfter.
type errorBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// get performs an authenticated GET with optional query parameters.
func (c *Client) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result, true)
}

// post performs an authenticated POST with a JSON body.
func (c *Client) post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result, true)
}

// delete performs an authenticated DELETE.
func (c *Client) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil, true)
}

// do builds the request, attaches auth, executes it once, and maps the
// response status onto the error taxonomy.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	query url.Values,
	body interface{},
	result interface{},
	authed bool,
) error {
	reqURL := c.baseURL + c.prefix + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{Message: fmt.Sprintf("executing %s %s: %v", method, path, err)}
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return &RequestError{Message: fmt.Sprintf("reading response body: %v", readErr)}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthError{Message: backendMessage(respBody)}

	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			RetryAfter: retryAfterSeconds(resp, respBody),
			Message:    backendMessage(respBody),
		}

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg := backendMessage(respBody)
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &RequestError{
			Message: fmt.Sprintf("unmarshaling response from %s %s: %v", method, path, err),
		}
	}

	return nil
}

// backendMessage extracts the message field from an error payload.
func backendMessage(body []byte) string {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		return eb.Message
	}
	return ""
}

// retryAfterSeconds reads the cooldown from the JSON body, then the
// Retry-After header, defaulting to 60 seconds.
func retryAfterSeconds(resp *http.Response, body []byte) int {
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.RetryAfter > 0 {
		return eb.RetryAfter
	}
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return seconds
		}
	}
	return 60
}
