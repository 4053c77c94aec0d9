// Package api exposes the campaign tracker over HTTP: imports, search,
// false-positive rules and actions, and reporting.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jkrishnancp/phishing-report-app/internal/actions"
	"github.com/jkrishnancp/phishing-report-app/internal/config"
	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/importer"
	"github.com/jkrishnancp/phishing-report-app/internal/reports"
	"github.com/jkrishnancp/phishing-report-app/internal/rules"
	"github.com/jkrishnancp/phishing-report-app/internal/search"
)

// Server wires the engines behind a mux router.
type Server struct {
	router   *mux.Router
	server   *http.Server
	store    database.Store
	importer *importer.Importer
	search   *search.Engine
	rules    *rules.Engine
	actions  *actions.Engine
	reports  *reports.Engine
	cfg      *config.Config
	logger   *zap.SugaredLogger
	validate *validator.Validate
}

// NewServer builds a fully routed server around a store.
func NewServer(store database.Store, cfg *config.Config, logger *zap.SugaredLogger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		store:    store,
		importer: importer.New(store),
		search:   search.NewEngine(store, cfg.Search.MaxPageSize),
		rules:    rules.NewEngine(store, cfg.Rules.PreviewLimit),
		actions:  actions.NewEngine(store, cfg.Rules.PreviewLimit),
		reports:  reports.NewEngine(store),
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestLogMiddleware)

	s.router.HandleFunc("/api/import/campaign", s.importCampaign).Methods("POST")
	s.router.HandleFunc("/api/import/reported", s.importReported).Methods("POST")
	s.router.HandleFunc("/api/batches", s.listBatches).Methods("GET")
	s.router.HandleFunc("/api/batches/{id}", s.deleteBatch).Methods("DELETE")
	s.router.HandleFunc("/api/reported-batches", s.listReportedBatches).Methods("GET")
	s.router.HandleFunc("/api/reported-batches/{id}", s.deleteReportedBatch).Methods("DELETE")

	s.router.HandleFunc("/api/search", s.searchEvents).Methods("POST")
	s.router.HandleFunc("/api/search/export", s.exportSearch).Methods("POST")
	s.router.HandleFunc("/api/search/fetch", s.fetchByIDs).Methods("POST")
	s.router.HandleFunc("/api/fields", s.availableFields).Methods("GET")
	s.router.HandleFunc("/api/fields/values", s.distinctValues).Methods("GET")

	s.router.HandleFunc("/api/rules/preview", s.previewRule).Methods("POST")
	s.router.HandleFunc("/api/rules", s.applyRule).Methods("POST")
	s.router.HandleFunc("/api/rules", s.listRules).Methods("GET")
	s.router.HandleFunc("/api/rules/{id}/deactivate", s.deactivateRule).Methods("POST")
	s.router.HandleFunc("/api/rules/{id}/runs", s.listRuleRuns).Methods("GET")

	s.router.HandleFunc("/api/actions/preview", s.previewAction).Methods("POST")
	s.router.HandleFunc("/api/actions", s.applyAction).Methods("POST")

	s.router.HandleFunc("/api/reports/inventory", s.inventoryReport).Methods("GET")
	s.router.HandleFunc("/api/reports/monthly/{month}", s.monthlyReport).Methods("GET")
	s.router.HandleFunc("/api/reports/repeat-offenders/{month}", s.repeatOffendersReport).Methods("GET")
	s.router.HandleFunc("/api/reports/quarterly", s.quarterlyReport).Methods("GET")

	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins serving and blocks until the listener fails or the
// server is shut down.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) respondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps engine validation failures to 400 and everything
// else to 500, logging server-side failures.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, filter.ErrInvalid) || errors.Is(err, rules.ErrInvalid) ||
		errors.Is(err, actions.ErrInvalid) {
		status = http.StatusBadRequest
	}
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Errorw("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
	}
	s.respondJSON(w, errorResponse{Error: err.Error()}, status)
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.respondJSON(w, errorResponse{Error: msg}, http.StatusBadRequest)
}

// decodeJSON binds a request body, rejecting unknown fields.
func (s *Server) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// pathID extracts the {id} route variable as an int64.
func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
