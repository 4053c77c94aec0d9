package api

import (
	"net/http"

	"github.com/jkrishnancp/phishing-report-app/internal/actions"
)

// actionPreviewRequest wraps an action spec with optional preview fields.
type actionPreviewRequest struct {
	actions.Spec
	Fields []string `json:"fields,omitempty"`
}

func (s *Server) previewAction(w http.ResponseWriter, r *http.Request) {
	var req actionPreviewRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	preview, err := s.actions.Preview(r.Context(), &req.Spec, req.Fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, preview, http.StatusOK)
}

func (s *Server) applyAction(w http.ResponseWriter, r *http.Request) {
	var spec actions.Spec
	if err := s.decodeJSON(r, &spec); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	affected, err := s.actions.Apply(r.Context(), &spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Infow("Investigation action applied",
		"affected", affected,
		"field", spec.Field,
		"match_type", spec.MatchType)
	s.respondJSON(w, map[string]int64{"affected": affected}, http.StatusOK)
}
