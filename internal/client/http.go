package client

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

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// HTTPClient implements Client using the svcbackup HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// SetActor sets the X-Actor header recorded on events caused by this client.
func (c *HTTPClient) SetActor(actor string) { c.actor = actor }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Orders ---

func (c *HTTPClient) CreateService(ctx context.Context, orderID int64) (map[string]any, error) {
	var svc map[string]any
	if err := c.doJSON(ctx, http.MethodPost, orderPath(orderID)+"/service", nil, &svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (c *HTTPClient) GetService(ctx context.Context, orderID int64) (map[string]any, error) {
	var svc map[string]any
	if err := c.doJSON(ctx, http.MethodGet, orderPath(orderID)+"/service", nil, &svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (c *HTTPClient) Action(ctx context.Context, orderID int64, action string) (bool, error) {
	var resp struct {
		Result bool `json:"result"`
	}
	path := orderPath(orderID) + "/actions/" + url.PathEscape(action)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Result, nil
}

// --- Admin ---

func (c *HTTPClient) AdminUpdate(ctx context.Context, data map[string]any) (bool, error) {
	var resp struct {
		Result bool `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/admin/servicebackup/update", data, &resp); err != nil {
		return false, err
	}
	return resp.Result, nil
}

// AdminCall forwards method to the plugin of the service named by
// data["order_id"]. A nil data sends no body, which the server rejects.
func (c *HTTPClient) AdminCall(ctx context.Context, method string, data map[string]any) (any, error) {
	var body any
	if data != nil {
		body = data
	}
	var resp struct {
		Result any `json:"result"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/admin/servicebackup/"+url.PathEscape(method), body, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// --- Introspection ---

func (c *HTTPClient) GetEvents(ctx context.Context, serviceID int64) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	path := "/v1/services/" + strconv.FormatInt(serviceID, 10) + "/events"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) ListPlugins(ctx context.Context) ([]string, error) {
	var resp struct {
		Plugins []string `json:"plugins"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/plugins", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Plugins, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

func orderPath(id int64) string {
	return "/v1/orders/" + strconv.FormatInt(id, 10)
}

// APIError represents an error response from the server. Code carries the
// module error code when the server sent one.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("HTTP %d: %s (code %d)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  int    `json:"code"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
