package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkrishnancp/phishing-report-app/internal/api"
	"github.com/jkrishnancp/phishing-report-app/internal/config"
	"github.com/jkrishnancp/phishing-report-app/internal/database"
)

const campaignCSV = `Email Address,First Name,Last Name,Department,Executive Name,Primary Clicked,Multi Click Event
Alice@Example.com,Alice,Adams,Finance,Pat Lee,1,2
bob@example.com,Bob,Baker,Engineering,Pat Lee,0,0
`

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Addr = ":0"
	cfg.Server.MaxUploadBytes = 8 << 20
	cfg.Rules.PreviewLimit = 200
	cfg.Search.MaxPageSize = 500
	return cfg
}

func newTestServer(t *testing.T) (*api.Server, *database.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "phish.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return api.NewServer(db, testConfig(), zap.NewNop().Sugar()), db
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func uploadCSV(t *testing.T, h http.Handler, path, filename, content string, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range form {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func importCampaign(t *testing.T, h http.Handler) {
	t.Helper()
	rec := uploadCSV(t, h, "/api/import/campaign", "phish_2026-03_results.csv", campaignCSV, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestImportCampaignFromFilenameMonth(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	var result database.ImportResult
	rec := uploadCSV(t, h, "/api/import/campaign", "no_month_here.csv", campaignCSV,
		map[string]string{"month": "2026-04"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.EqualValues(t, 2, result.Inserted)
}

func TestImportCampaignRequiresMonth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := uploadCSV(t, srv.Handler(), "/api/import/campaign", "no_month_here.csv", campaignCSV, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "month is required")
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/search", map[string]any{
		"months": []string{"2026-03"},
		"filters": []map[string]any{
			{"field": "department", "op": "EQUALS", "value": "Finance"},
		},
		"include_false_positives": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res struct {
		Total int64            `json:"total"`
		Rows  []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.EqualValues(t, 1, res.Total)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Alice@Example.com", res.Rows[0]["email_address"])
}

func TestSearchRejectsInvalidFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/search", map[string]any{
		"filters": []map[string]any{{"field": "department", "op": "NO_SUCH_OP", "value": "x"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportSearchCSV(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/search/export", map[string]any{
		"include_false_positives": true,
		"display_fields":          []string{"email_address", "department"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3, "header plus two rows")
	assert.Equal(t, "id,email_address,department", lines[0])
}

func TestFetchByIDs(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/search/fetch", map[string]any{
		"ids":            []int64{1},
		"display_fields": []string{"email_norm"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "alice@example.com")

	rec = doJSON(t, h, http.MethodPost, "/api/search/fetch", map[string]any{"ids": []int64{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuleApplyAndList(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/rules", map[string]any{
		"scope":       "ALL",
		"field_label": "Email (normalized)",
		"match_type":  "EXACT",
		"value":       "alice@example.com",
		"comment":     "known tester",
		"created_by":  "analyst",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var applied map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	assert.EqualValues(t, 1, applied["affected"])

	rec = doJSON(t, h, http.MethodGet, "/api/rules?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice@example.com")
}

func TestRuleValidationError(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/rules", map[string]any{
		"scope":       "MONTH",
		"field_label": "Email (normalized)",
		"match_type":  "EXACT",
		"value":       "x",
		"comment":     "c",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "month_key is required")
}

func TestActionPreviewAndApply(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/actions/preview", map[string]any{
		"scope":      "ALL",
		"field":      "email_norm",
		"match_type": "EQUALS",
		"value":      "alice@example.com",
		"comment":    "test click",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview struct {
		ExactCount int64 `json:"exact_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.EqualValues(t, 1, preview.ExactCount)

	rec = doJSON(t, h, http.MethodPost, "/api/actions", map[string]any{
		"scope":      "ALL",
		"field":      "email_norm",
		"match_type": "EQUALS",
		"value":      "alice@example.com",
		"comment":    "test click",
		"set_by":     "analyst",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"affected":1`)
}

func TestBatchesLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/batches", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var batches []struct {
		BatchID int64 `json:"batch_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batches))
	require.Len(t, batches, 1)

	rec = doJSON(t, h, http.MethodDelete, "/api/batches/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodDelete,
		"/api/batches/"+jsonNumber(batches[0].BatchID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestInventoryReportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/reports/inventory", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var inv struct {
		Totals struct {
			Events      int64 `json:"events"`
			ClickEvents int64 `json:"click_events"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.EqualValues(t, 2, inv.Totals.Events)
	assert.EqualValues(t, 1, inv.Totals.ClickEvents)
}

func TestMonthlyReportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/reports/monthly/2026-03", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pat Lee")

	rec = doJSON(t, h, http.MethodGet, "/api/reports/monthly/March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuarterlyReportEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	importCampaign(t, h)

	rec := doJSON(t, h, http.MethodGet, "/api/reports/quarterly?year=2026&quarter=Q1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/reports/quarterly?year=2026&quarter=Q7", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
