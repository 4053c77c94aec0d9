package search_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
	"github.com/jkrishnancp/phishing-report-app/internal/search"
)

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "phish.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func strp(s string) *string { return &s }

func seed(t *testing.T, db *database.DB) {
	t.Helper()
	ctx := context.Background()

	jan := []*model.Event{
		{MonthKey: "2026-01", EmailAddress: strp("alice@example.com"), EmailNorm: strp("alice@example.com"),
			Department: strp("Finance"), ClickCount: 2,
			Raw: model.RawPayload{"Browser Family": "Chrome"}},
		{MonthKey: "2026-01", EmailAddress: strp("bob@example.com"), EmailNorm: strp("bob@example.com"),
			Department: strp("Engineering"), ClickCount: 0,
			Raw: model.RawPayload{"Browser Family": "Firefox"}},
	}
	_, err := db.ImportEvents(ctx, "jan.csv", "2026-01", jan, false)
	require.NoError(t, err)

	feb := []*model.Event{
		{MonthKey: "2026-02", EmailAddress: strp("carol@example.com"), EmailNorm: strp("carol@example.com"),
			Department: strp("Finance"), ClickCount: 1,
			Raw: model.RawPayload{"Browser Family": "Chrome"}},
		{MonthKey: "2026-02", EmailAddress: strp("bot@example.com"), EmailNorm: strp("bot@example.com"),
			Department: strp("Security"), ClickCount: 5,
			Raw: model.RawPayload{"Browser Family": "Headless"}},
	}
	_, err = db.ImportEvents(ctx, "feb.csv", "2026-02", feb, false)
	require.NoError(t, err)
}

func TestSearchOrdersNewestFirst(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)

	res, err := eng.Search(context.Background(), &search.Request{IncludeFalsePositives: true})
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.Total)
	require.Len(t, res.Rows, 4)

	assert.Equal(t, "2026-02", res.Rows[0]["month_key"])
	assert.Equal(t, "bot@example.com", res.Rows[0]["email_address"])
	assert.Equal(t, "2026-02", res.Rows[1]["month_key"])
	assert.Equal(t, "2026-01", res.Rows[2]["month_key"])
}

func TestSearchPaging(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)

	req := &search.Request{IncludeFalsePositives: true, PageSize: 3, PageNum: 2}
	res, err := eng.Search(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.Total, "total ignores paging")
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.PageNum)

	// page numbers below 1 clamp to the first page
	req = &search.Request{IncludeFalsePositives: true, PageSize: 3, PageNum: 0}
	res, err = eng.Search(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PageNum)
	assert.Len(t, res.Rows, 3)
}

func TestSearchClampsPageSize(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 2)

	res, err := eng.Search(context.Background(), &search.Request{IncludeFalsePositives: true, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageSize)
	assert.Len(t, res.Rows, 2)
}

func TestSearchExcludesFalsePositivesByDefault(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	ctx := context.Background()

	_, err := db.MarkFalsePositives(ctx,
		"email_norm = "+db.Dialect().Placeholder(database.FalsePositiveSetArgs+1),
		[]any{"bot@example.com"}, "scanner", "", "analyst")
	require.NoError(t, err)

	eng := search.NewEngine(db, 500)
	res, err := eng.Search(ctx, &search.Request{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Total)

	res, err = eng.Search(ctx, &search.Request{IncludeFalsePositives: true})
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.Total)
}

func TestSearchWithFiltersAndDynamicDisplay(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)

	req := &search.Request{
		IncludeFalsePositives: true,
		Months:                []model.Month{"2026-01", "2026-02"},
		Filters: []filter.Spec{
			{Field: "Browser Family", Op: filter.OpEquals, Value: "chrome", CaseInsensitive: true},
			{Field: "department", Op: filter.OpEquals, Value: "Finance"},
		},
		DisplayFields: []string{"email_address", "Browser Family"},
	}
	res, err := eng.Search(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	require.Len(t, res.Rows, 2)

	assert.Equal(t, "carol@example.com", res.Rows[0]["email_address"])
	assert.Equal(t, "Chrome", res.Rows[0]["Browser Family"])
	assert.NotNil(t, res.Rows[0]["id"], "id is always selected")
}

func TestSearchInvalidFilter(t *testing.T) {
	db := newTestStore(t)
	eng := search.NewEngine(db, 500)

	_, err := eng.Search(context.Background(), &search.Request{
		Filters: []filter.Spec{{Field: "department", Op: "BOGUS", Value: "x"}},
	})
	assert.ErrorIs(t, err, filter.ErrInvalid)
}

func TestSearchRejectsQuotedDisplayFields(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)
	ctx := context.Background()

	// A display field carrying a quote could otherwise break out of the
	// SELECT alias and smuggle a subquery into the statement.
	crafted := `x", (SELECT created_by FROM fp_rules LIMIT 1) AS "leak`

	_, err := eng.Search(ctx, &search.Request{
		IncludeFalsePositives: true,
		DisplayFields:         []string{crafted},
	})
	assert.ErrorIs(t, err, filter.ErrInvalid)

	_, err = eng.FetchByIDs(ctx, []int64{1}, []string{crafted})
	assert.ErrorIs(t, err, filter.ErrInvalid)

	_, err = eng.DistinctValues(ctx, `Size "approx"`, nil, true, 0)
	assert.ErrorIs(t, err, filter.ErrInvalid)

	// Quote-free dynamic names still resolve as bound payload keys.
	res, err := eng.Search(ctx, &search.Request{
		IncludeFalsePositives: true,
		DisplayFields:         []string{"Browser Family"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Headless", res.Rows[0]["Browser Family"])
}

func TestFetchByIDs(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)
	ctx := context.Background()

	all, err := eng.Search(ctx, &search.Request{IncludeFalsePositives: true})
	require.NoError(t, err)
	id0 := all.Rows[0]["id"].(int64)
	id3 := all.Rows[3]["id"].(int64)

	rows, err := eng.FetchByIDs(ctx, []int64{id3, id0}, []string{"email_address"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, all.Rows[0]["email_address"], rows[0]["email_address"])

	rows, err = eng.FetchByIDs(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDistinctValues(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)
	ctx := context.Background()

	values, err := eng.DistinctValues(ctx, "department", nil, true, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Engineering", "Finance", "Security"}, values)

	values, err = eng.DistinctValues(ctx, "Browser Family", []model.Month{"2026-02"}, true, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chrome", "Headless"}, values)

	_, err = db.MarkFalsePositives(ctx,
		"email_norm = "+db.Dialect().Placeholder(database.FalsePositiveSetArgs+1),
		[]any{"bot@example.com"}, "scanner", "", "analyst")
	require.NoError(t, err)

	values, err = eng.DistinctValues(ctx, "department", nil, false, 0)
	require.NoError(t, err)
	assert.NotContains(t, values, "Security")
}

func TestAvailableFields(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := search.NewEngine(db, 500)

	got, err := eng.AvailableFields(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, got, "email_address")
	assert.Contains(t, got, "Browser Family")
	assert.Equal(t, "id", got[0])
}
