package server

import (
	"errors"
	"net/http"

	"github.com/teemow/mailcal/internal/logging"
	"github.com/teemow/mailcal/internal/registry"
)

func (s *Server) handleServersList(w http.ResponseWriter, r *http.Request) {
	servers, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to list servers")
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

func (s *Server) handleServersCreate(w http.ResponseWriter, r *http.Request) {
	var req registry.NewServer
	if !decodeJSON(w, r, &req) {
		return
	}
	sessionID := s.sessions.Ensure(w, r)

	srv, err := s.registry.Create(r.Context(), sessionID, req)
	if err != nil {
		var verr *registry.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "invalid_request", verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", "failed to register server")
		return
	}
	writeJSON(w, http.StatusOK, srv)
}

func (s *Server) handleServersDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.registry.Delete(r.Context(), id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "server not found")
	case err != nil:
		s.logger.Error("failed to delete server", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "server_error", "failed to delete server")
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
