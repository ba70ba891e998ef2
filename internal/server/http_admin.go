package server

import (
	"net/http"
)

// handleAdminUpdate handles POST /v1/admin/servicebackup/update.
func (s *Server) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	data, _, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if data == nil {
		data = map[string]any{}
	}

	ok, err := s.admin.Update(r.Context(), data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": ok})
}

// handleAdminCall handles POST /v1/admin/servicebackup/{method}, forwarding
// the method and body to the service's plugin.
func (s *Server) handleAdminCall(w http.ResponseWriter, r *http.Request) {
	data, present, err := decodeObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var args []map[string]any
	if present {
		args = append(args, data)
	}
	result, err := s.admin.Call(r.Context(), r.PathValue("method"), args...)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}
