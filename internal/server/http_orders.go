package server

import (
	"net/http"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// handleCreateService handles POST /v1/orders/{id}/service.
func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := s.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	svc, err := s.svc.Create(r.Context(), order)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.svc.ToAPIMap(svc))
}

// handleGetService handles GET /v1/orders/{id}/service.
func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	svc, err := s.svc.GetByOrderID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.ToAPIMap(svc))
}

// handleOrderAction handles POST /v1/orders/{id}/actions/{action}.
func (s *Server) handleOrderAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := s.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	result, err := s.svc.Action(r.Context(), r.PathValue("action"), order)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

// handleGetEvents handles GET /v1/services/{id}/events.
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	evts, err := s.svc.Events(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
