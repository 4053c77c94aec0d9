package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/fields"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
	"github.com/jkrishnancp/phishing-report-app/internal/search"
)

func (s *Server) searchEvents(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := s.decodeJSON(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	for _, f := range req.Filters {
		if err := s.validate.Struct(f); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	res, err := s.search.Search(r.Context(), &req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, res, http.StatusOK)
}

// exportSearch streams every match of a search as CSV, paging through
// the store internally.
func (s *Server) exportSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := s.decodeJSON(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}

	columns := req.DisplayFields
	if len(columns) == 0 {
		columns = fields.DefaultDisplay
	}
	if columns[0] != "id" {
		columns = append([]string{"id"}, columns...)
	}

	req.PageSize = s.cfg.Search.MaxPageSize
	req.PageNum = 1

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="search_export.csv"`)
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return
	}

	for {
		res, err := s.search.Search(r.Context(), &req)
		if err != nil {
			if req.PageNum == 1 {
				s.respondError(w, r, err)
				return
			}
			s.logger.Errorw("Export aborted mid-stream", "page", req.PageNum, "error", err)
			return
		}
		for _, row := range res.Rows {
			record := make([]string, len(columns))
			for i, col := range columns {
				record[i] = csvCell(row[col])
			}
			if err := cw.Write(record); err != nil {
				return
			}
		}
		if int64(req.PageNum)*int64(res.PageSize) >= res.Total || len(res.Rows) == 0 {
			break
		}
		req.PageNum++
	}
	cw.Flush()
}

func csvCell(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// fetchRequest selects specific events by id with caller display fields.
type fetchRequest struct {
	IDs           []int64  `json:"ids" validate:"required,min=1"`
	DisplayFields []string `json:"display_fields,omitempty"`
}

func (s *Server) fetchByIDs(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, r, err)
		return
	}
	rows, err := s.search.FetchByIDs(r.Context(), req.IDs, req.DisplayFields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, map[string]any{"rows": rows}, http.StatusOK)
}

// queryMonths parses the comma-separated months query parameter.
func queryMonths(r *http.Request) ([]model.Month, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("months"))
	if raw == "" {
		return nil, nil
	}
	var months []model.Month
	for _, part := range strings.Split(raw, ",") {
		m := model.Month(strings.TrimSpace(part))
		if !m.Valid() {
			return nil, fmt.Errorf("invalid month %q", part)
		}
		months = append(months, m)
	}
	return months, nil
}

func (s *Server) availableFields(w http.ResponseWriter, r *http.Request) {
	months, err := queryMonths(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	names, err := s.search.AvailableFields(r.Context(), months)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, map[string]any{"fields": names}, http.StatusOK)
}

func (s *Server) distinctValues(w http.ResponseWriter, r *http.Request) {
	field := strings.TrimSpace(r.URL.Query().Get("field"))
	if field == "" {
		s.badRequest(w, "field query parameter is required")
		return
	}
	months, err := queryMonths(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	includeFP := r.URL.Query().Get("include_false_positives") == "true"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 1 {
			s.badRequest(w, fmt.Sprintf("invalid limit %q", raw))
			return
		}
	}

	values, err := s.search.DistinctValues(r.Context(), field, months, includeFP, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, map[string]any{"field": field, "values": values}, http.StatusOK)
}
