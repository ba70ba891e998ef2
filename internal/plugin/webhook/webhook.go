// Package webhook implements the Webhook plugin adapter: every delegated call
// is POSTed as JSON to a configured endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/alfredjeanlab/svcbackup/internal/plugin"
)

// Name is the registry name of this adapter.
const Name = "Webhook"

func init() {
	plugin.Register(Name, New)
}

// Adapter posts calls to a remote endpoint.
//
// Config keys:
//
//	url            target endpoint (required)
//	token          bearer token sent in Authorization
//	timeout        per-attempt timeout, default 10s
//	max_retries    retries after the first attempt, default 3
//	retry_interval initial backoff interval, default 500ms
//	methods        extra method names accepted beyond the lifecycle set
type Adapter struct {
	plugin.Methods

	url        string
	token      string
	maxRetries int
	interval   time.Duration
	client     *http.Client
}

// payload is the request body sent for each call.
type payload struct {
	CallID  string         `json:"call_id"`
	Action  string         `json:"action"`
	Service map[string]any `json:"service"`
	Order   map[string]any `json:"order"`
	Params  map[string]any `json:"params,omitempty"`
}

// New builds a Webhook adapter from its config.
func New(_ context.Context, cfg map[string]any) (plugin.Adapter, error) {
	raw := plugin.String(cfg, "url", "")
	if raw == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", raw)
	}

	a := &Adapter{
		url:        u.String(),
		token:      plugin.String(cfg, "token", ""),
		maxRetries: plugin.Int(cfg, "max_retries", 3),
		interval:   plugin.Duration(cfg, "retry_interval", 500*time.Millisecond),
		client:     &http.Client{Timeout: plugin.Duration(cfg, "timeout", 10*time.Second)},
	}
	if a.maxRetries < 0 {
		a.maxRetries = 0
	}

	a.Methods = plugin.Methods{}
	for _, m := range plugin.LifecycleMethods {
		a.Methods[m] = a.post
	}
	for _, m := range plugin.Strings(cfg, "methods") {
		a.Methods[m] = a.post
	}
	return a, nil
}

func (a *Adapter) Name() string { return Name }

// post delivers one call, retrying transport errors and 5xx responses with
// exponential backoff. 4xx responses are final.
func (a *Adapter) post(ctx context.Context, call *plugin.Call) (any, error) {
	body, err := json.Marshal(payload{
		CallID:  call.ID,
		Action:  call.Method,
		Service: call.Service,
		Order:   call.Order,
		Params:  call.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(a.maxRetries)), ctx)

	return backoff.RetryWithData(func() (any, error) {
		return a.attempt(ctx, call, body)
	}, policy)
}

func (a *Adapter) attempt(ctx context.Context, call *plugin.Call, body []byte) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Call-Id", call.ID)
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("webhook %s: HTTP %d", call.Method, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("webhook %s: HTTP %d: %s", call.Method, resp.StatusCode, bytes.TrimSpace(respBody)))
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return true, nil
	}
	var result any
	if err := json.Unmarshal(respBody, &result); err != nil {
		// Non-JSON bodies are passed through verbatim.
		return string(respBody), nil
	}
	return result, nil
}
