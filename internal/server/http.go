package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/svcbackup/internal/metrics"
	"github.com/alfredjeanlab/svcbackup/internal/service"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests other than health and metrics must
// include a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/admin/servicebackup/update", s.handleAdminUpdate)
	mux.HandleFunc("POST /v1/admin/servicebackup/{method}", s.handleAdminCall)
	mux.HandleFunc("POST /v1/orders/{id}/service", s.handleCreateService)
	mux.HandleFunc("GET /v1/orders/{id}/service", s.handleGetService)
	mux.HandleFunc("POST /v1/orders/{id}/actions/{action}", s.handleOrderAction)
	mux.HandleFunc("GET /v1/services/{id}/events", s.handleGetEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/plugins", s.handleListPlugins)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.Handle("GET /healthz/", http.StripPrefix("/healthz", s.health))
	if s.metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler(s.metrics))
	}
	return AuthMiddleware(authToken, withActor(mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListPlugins handles GET /v1/plugins.
func (s *Server) handleListPlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.svc.Plugins()})
}

// withActor copies the X-Actor header onto the request context so that
// recorded events carry it.
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor := r.Header.Get(actorHeader); actor != "" {
			r = r.WithContext(service.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// decodeObject decodes an optional JSON object body. ok is false when the
// body is empty.
func decodeObject(r *http.Request) (data map[string]any, ok bool, err error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, false, err
	}
	if len(body) == 0 {
		return nil, false, nil
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false, errors.New("request body must be a JSON object")
	}
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeServiceError maps a service error onto an HTTP status and writes it
// with its numeric code.
// Internal causes are logged, not returned.
func writeServiceError(w http.ResponseWriter, err error) {
	if service.KindOf(err) == service.KindInternal {
		slog.Error("request failed", "error", err)
	}
	body := map[string]any{"error": service.PublicMessage(err)}
	if code := service.CodeOf(err); code != 0 {
		body["code"] = code
	}
	writeJSON(w, httpStatus(service.KindOf(err)), body)
}

func httpStatus(k service.Kind) int {
	switch k {
	case service.KindInvalid:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
