package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

func pathMonth(r *http.Request) (model.Month, error) {
	raw := mux.Vars(r)["month"]
	m := model.Month(raw)
	if !m.Valid() {
		return "", fmt.Errorf("invalid month %q, expected YYYY-MM", raw)
	}
	return m, nil
}

// excludeFP defaults to true: reports hide false positives unless asked.
func excludeFP(r *http.Request) bool {
	return r.URL.Query().Get("include_false_positives") != "true"
}

func (s *Server) inventoryReport(w http.ResponseWriter, r *http.Request) {
	inv, err := s.reports.Inventory(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, inv, http.StatusOK)
}

func (s *Server) monthlyReport(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	rep, err := s.reports.Monthly(r.Context(), month, excludeFP(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, rep, http.StatusOK)
}

func (s *Server) repeatOffendersReport(w http.ResponseWriter, r *http.Request) {
	month, err := pathMonth(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	rep, err := s.reports.RepeatOffenders(r.Context(), month, excludeFP(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, rep, http.StatusOK)
}

func (s *Server) quarterlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year < 2000 || year > 2100 {
		s.badRequest(w, fmt.Sprintf("invalid year %q", r.URL.Query().Get("year")))
		return
	}
	quarter := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("quarter")))
	if quarter == "" {
		s.badRequest(w, "quarter query parameter is required (Q1-Q4)")
		return
	}
	stats, err := s.reports.Quarterly(r.Context(), year, quarter, excludeFP(r))
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.respondJSON(w, map[string]any{"year": year, "quarter": quarter, "months": stats}, http.StatusOK)
}
