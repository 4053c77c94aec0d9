package api

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/importer"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// uploadFile pulls the "file" part out of a multipart import request.
func (s *Server) uploadFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(s.cfg.Server.MaxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("missing file upload: %w", err)
	}
	return file, header, nil
}

// importMonth resolves the month for an upload: explicit form value
// first, then the filename.
func importMonth(r *http.Request, filename string) (model.Month, bool) {
	if raw := strings.TrimSpace(r.FormValue("month")); raw != "" {
		m := model.Month(raw)
		return m, m.Valid()
	}
	return importer.MonthFromFilename(filename)
}

func (s *Server) importCampaign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	file, header, err := s.uploadFile(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	defer file.Close()

	month, ok := importMonth(r, header.Filename)
	if !ok {
		s.badRequest(w, "month is required: pass a month form value (YYYY-MM) or use a filename containing one")
		return
	}
	replace := r.FormValue("replace") == "true"

	result, err := s.importer.ImportCampaignCSV(r.Context(), file, header.Filename, month, replace)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Infow("Campaign import complete",
		"filename", header.Filename,
		"month", month,
		"batch_id", result.BatchID,
		"inserted", result.Inserted,
		"replaced", result.Replaced)
	s.respondJSON(w, result, http.StatusCreated)
}

func (s *Server) importReported(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxUploadBytes)

	file, header, err := s.uploadFile(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	defer file.Close()

	// Reported tickets default to the month the import runs in.
	month, ok := importMonth(r, header.Filename)
	if !ok {
		month = model.Month(time.Now().Format("2006-01"))
	}

	var result *database.ImportResult
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xlsm":
		result, err = s.importer.ImportReportedExcel(r.Context(), file, header.Filename, month)
	default:
		result, err = s.importer.ImportReportedCSV(r.Context(), file, header.Filename, month)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Infow("Reported import complete",
		"filename", header.Filename,
		"month", month,
		"batch_id", result.BatchID,
		"inserted", result.Inserted)
	s.respondJSON(w, result, http.StatusCreated)
}

func (s *Server) listBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.store.ListBatches(r.Context(), 500)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, batches, http.StatusOK)
}

func (s *Server) deleteBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	events, batches, err := s.store.DeleteBatch(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if batches == 0 {
		s.respondJSON(w, errorResponse{Error: fmt.Sprintf("batch %d not found", id)}, http.StatusNotFound)
		return
	}
	s.respondJSON(w, map[string]int64{"deleted_events": events}, http.StatusOK)
}

func (s *Server) listReportedBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.store.ListReportedBatches(r.Context(), 500)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, batches, http.StatusOK)
}

func (s *Server) deleteReportedBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	events, batches, err := s.store.DeleteReportedBatch(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if batches == 0 {
		s.respondJSON(w, errorResponse{Error: fmt.Sprintf("batch %d not found", id)}, http.StatusNotFound)
		return
	}
	s.respondJSON(w, map[string]int64{"deleted_events": events}, http.StatusOK)
}
