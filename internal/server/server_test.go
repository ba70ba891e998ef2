package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/svcbackup/internal/metrics"
	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/plugin"
	"github.com/alfredjeanlab/svcbackup/internal/service"
)

// echoAdapter answers "status" with its call and fails "explode".
type echoAdapter struct {
	plugin.Methods
}

func (echoAdapter) Name() string { return "Echo" }

func newEchoAdapter(context.Context, map[string]any) (plugin.Adapter, error) {
	ok := func(context.Context, *plugin.Call) (any, error) { return true, nil }
	return echoAdapter{plugin.Methods{
		plugin.MethodActivate:  ok,
		plugin.MethodSuspend:   ok,
		plugin.MethodUnsuspend: ok,
		plugin.MethodRenew:     ok,
		plugin.MethodCancel:    ok,
		plugin.MethodUncancel:  ok,
		plugin.MethodDelete:    ok,
		"status": func(_ context.Context, call *plugin.Call) (any, error) {
			return map[string]any{"method": call.Method, "order_id": call.Order["id"], "params": call.Params}, nil
		},
		"explode": func(context.Context, *plugin.Call) (any, error) {
			return nil, errors.New("adapter exploded")
		},
	}}, nil
}

// testServer bundles a Server with its backing mock store.
type testServer struct {
	*Server
	store  *mockStore
	stream *Stream
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ms := newMockStore()
	ms.products[1] = &model.Product{ID: 1, Title: "Backup 1TB", Type: "servicebackup", Config: json.RawMessage(`{"plugin":"Echo","plugin_config":{"zone":"eu"}}`)}
	ms.orders[10] = &model.Order{ID: 10, ClientID: 5, ProductID: 1, ServiceType: "servicebackup", Status: model.OrderPendingSetup}
	ms.orders[11] = &model.Order{ID: 11, ClientID: 5, ProductID: 1, ServiceType: "servicebackup", Status: model.OrderPendingSetup}

	reg := plugin.NewRegistry()
	if err := reg.Register("Echo", newEchoAdapter); err != nil {
		t.Fatal(err)
	}

	stream := NewStream()
	collector := metrics.NewCollector()
	svc := service.New(ms, stream,
		service.WithRegistry(reg),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithMetrics(collector),
		service.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	)
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collector)

	return &testServer{Server: New(svc, ms, promReg, stream), store: ms, stream: stream}
}

// do sends a request through the full HTTP handler.
func (ts *testServer) do(t *testing.T, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	ts.NewHTTPHandler("").ServeHTTP(rec, req)
	return rec
}

// createService provisions the service for an order over HTTP.
func (ts *testServer) createService(t *testing.T, orderID string) map[string]any {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/orders/"+orderID+"/service", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d; body: %s", rec.Code, rec.Body.String())
	}
	return decodeBody(t, rec)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

var errDown = errors.New("connection refused")

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
