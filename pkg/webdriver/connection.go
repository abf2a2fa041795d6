// Package webdriver talks to an Appium server over the JSON wire protocol:
// session lifecycle, element queries and per-element actions.
package webdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicelab-dev/fastest-runner/pkg/logger"
)

// routePrefix is prepended to every path, as the server routes under /wd/hub.
const routePrefix = "wd/hub/"

// Gateway issues the three request verbs the session and elements need.
// Transport failures are returned unchanged.
type Gateway interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string, body interface{}) (*Response, error)
	Delete(ctx context.Context, path string) (*Response, error)
}

// Response is a decoded server reply.
type Response struct {
	Status int
	Body   map[string]interface{}
}

// Value returns the protocol's "value" field of the body.
func (r *Response) Value() interface{} {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body["value"]
}

// ProtocolError is returned for non-2xx responses.
type ProtocolError struct {
	Method  string
	Path    string
	Status  int
	Code    string // W3C error code, e.g. "no such element"
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Connection is the HTTP Gateway.
type Connection struct {
	serverURL string
	client    *http.Client
}

// NewConnection creates a connection rooted at serverURL.
func NewConnection(serverURL string) *Connection {
	if !strings.HasSuffix(serverURL, "/") {
		serverURL += "/"
	}
	return &Connection{
		serverURL: serverURL,
		client: &http.Client{
			Timeout: 5 * time.Minute, // app reset can be slow
		},
	}
}

// URL returns the server URL, always with a trailing slash.
func (c *Connection) URL() string {
	return c.serverURL
}

// Path returns the absolute URL for a protocol path.
func (c *Connection) Path(path string) string {
	return c.serverURL + routePrefix + path
}

// Get retrieves path.
func (c *Connection) Get(ctx context.Context, path string) (*Response, error) {
	return c.request(ctx, http.MethodGet, path, nil)
}

// Post submits body to path. A nil body is sent as {}.
func (c *Connection) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	return c.request(ctx, http.MethodPost, path, body)
}

// Delete removes path.
func (c *Connection) Delete(ctx context.Context, path string) (*Response, error) {
	return c.request(ctx, http.MethodDelete, path, nil)
}

func (c *Connection) request(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	start := time.Now()

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		bodyStr = string(data)
		if len(bodyStr) > 100 {
			bodyStr = bodyStr[:100] + "..."
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Path(path), bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		logger.Debug("%s %s %s [%v] ERROR: %v", method, path, bodyStr, elapsed, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	logger.Debug("%s %s %s [%v] %d", method, path, bodyStr, elapsed, resp.StatusCode)

	result := &Response{Status: resp.StatusCode, Body: map[string]interface{}{}}
	if len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, &result.Body); err != nil {
			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return nil, &ProtocolError{Method: method, Path: path, Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
			}
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, protocolError(method, path, resp.StatusCode, result.Body)
	}
	return result, nil
}

func protocolError(method, path string, status int, body map[string]interface{}) *ProtocolError {
	pe := &ProtocolError{Method: method, Path: path, Status: status, Message: http.StatusText(status)}
	if value, ok := body["value"].(map[string]interface{}); ok {
		if code, ok := value["error"].(string); ok {
			pe.Code = code
		}
		if msg, ok := value["message"].(string); ok {
			pe.Message = msg
		}
	}
	return pe
}
