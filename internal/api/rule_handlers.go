package api

import (
	"fmt"
	"net/http"

	"github.com/jkrishnancp/phishing-report-app/internal/rules"
)

// rulePreviewRequest wraps a rule spec with optional preview columns.
type rulePreviewRequest struct {
	rules.Spec
	Columns []string `json:"columns,omitempty"`
}

func (s *Server) previewRule(w http.ResponseWriter, r *http.Request) {
	var req rulePreviewRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	preview, err := s.rules.Preview(r.Context(), &req.Spec, req.Columns)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, preview, http.StatusOK)
}

func (s *Server) applyRule(w http.ResponseWriter, r *http.Request) {
	var spec rules.Spec
	if err := s.decodeJSON(r, &spec); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	ruleID, affected, err := s.rules.Apply(r.Context(), &spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.logger.Infow("Rule applied",
		"rule_id", ruleID,
		"affected", affected,
		"field", spec.FieldLabel,
		"match_type", spec.MatchType)
	s.respondJSON(w, map[string]int64{"rule_id": ruleID, "affected": affected}, http.StatusCreated)
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	list, err := s.rules.List(r.Context(), activeOnly)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, list, http.StatusOK)
}

func (s *Server) deactivateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	updated, err := s.rules.Deactivate(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if updated == 0 {
		s.respondJSON(w, errorResponse{Error: fmt.Sprintf("rule %d not found", id)}, http.StatusNotFound)
		return
	}
	s.respondJSON(w, map[string]int64{"deactivated": updated}, http.StatusOK)
}

func (s *Server) listRuleRuns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	runs, err := s.rules.Runs(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, runs, http.StatusOK)
}
