package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

func TestEmptyQuery(t *testing.T) {
	where, args := filter.New(&database.SQLiteDialect{}, 1).Where()
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}

func TestMonthsClause(t *testing.T) {
	q := filter.New(&database.PostgresDialect{}, 1)
	q.Months([]model.Month{"2026-01", "2026-02"}).ExcludeFalsePositives()

	where, args := q.Where()
	assert.Equal(t, "month_key IN ($1, $2) AND is_false_positive = FALSE", where)
	assert.Equal(t, []any{"2026-01", "2026-02"}, args)
}

func TestEqualsCaseInsensitive(t *testing.T) {
	q := filter.New(&database.PostgresDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{
		Field: "department", Op: filter.OpEquals, Value: "Finance", CaseInsensitive: true,
	}))

	where, args := q.Where()
	assert.Equal(t, "lower(coalesce(CAST(department AS TEXT), '')) = lower($1)", where)
	assert.Equal(t, []any{"Finance"}, args)
}

func TestContainsDynamicFieldSQLite(t *testing.T) {
	q := filter.New(&database.SQLiteDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{
		Field: "Browser Family", Op: filter.OpContains, Value: "Chrome",
	}))

	where, args := q.Where()
	assert.Equal(t, "coalesce(CAST(json_extract(raw_json, ?) AS TEXT), '') LIKE ?", where)
	assert.Equal(t, []any{`$."Browser Family"`, "%Chrome%"}, args)
}

func TestStartsWithAndEndsWithPatterns(t *testing.T) {
	q := filter.New(&database.SQLiteDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{Field: "email_norm", Op: filter.OpStartsWith, Value: "adm"}))
	require.NoError(t, q.AddSpec(filter.Spec{Field: "email_norm", Op: filter.OpEndsWith, Value: ".org"}))

	_, args := q.Where()
	assert.Equal(t, []any{"adm%", "%.org"}, args)
}

func TestNumericComparison(t *testing.T) {
	q := filter.New(&database.PostgresDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{Field: "click_count", Op: filter.OpGT, Value: "2"}))

	where, args := q.Where()
	assert.Equal(t, "COALESCE(CAST(click_count AS NUMERIC), 0) > CAST($1 AS NUMERIC)", where)
	assert.Equal(t, []any{"2"}, args)
}

func TestLexicalComparisonForTextField(t *testing.T) {
	q := filter.New(&database.SQLiteDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{Field: "date_clicked", Op: filter.OpGTE, Value: "2026-01-01 00:00:00"}))

	where, _ := q.Where()
	assert.Equal(t, "CAST(date_clicked AS TEXT) >= ?", where)
}

func TestIsEmptyDynamicField(t *testing.T) {
	q := filter.New(&database.PostgresDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{Field: "Vendor", Op: filter.OpIsEmpty}))

	where, args := q.Where()
	assert.Equal(t, "(raw_json->>$1 IS NULL OR raw_json->>$2 = '')", where)
	assert.Equal(t, []any{"Vendor", "Vendor"}, args)
}

func TestIsNotEmptyPromoted(t *testing.T) {
	q := filter.New(&database.SQLiteDialect{}, 1)
	require.NoError(t, q.AddSpec(filter.Spec{Field: "clicked_ip", Op: filter.OpIsNotEmpty}))

	where, args := q.Where()
	assert.Equal(t, "(CAST(clicked_ip AS TEXT) IS NOT NULL AND CAST(clicked_ip AS TEXT) <> '')", where)
	assert.Empty(t, args)
}

func TestArgStartOffset(t *testing.T) {
	q := filter.New(&database.PostgresDialect{}, database.FalsePositiveSetArgs+1)
	q.MonthEquals("2026-03").ClickedOnly()
	require.NoError(t, q.MatchColumn("email_norm", model.MatchExact, "bot@example.com", false))

	where, args := q.Where()
	assert.Equal(t, "month_key = $4 AND click_count > 0 AND coalesce(email_norm, '') = $5", where)
	assert.Equal(t, []any{"2026-03", "bot@example.com"}, args)
	assert.Equal(t, 6, q.Next())
}

func TestMatchColumnRegex(t *testing.T) {
	q := filter.New(&database.PostgresDialect{}, 1)
	require.NoError(t, q.MatchColumn("whois_org", model.MatchRegex, "(?i)hosting|cloud", true))
	where, _ := q.Where()
	assert.Equal(t, "coalesce(whois_org, '') ~* $1", where)

	q = filter.New(&database.SQLiteDialect{}, 1)
	require.NoError(t, q.MatchColumn("whois_org", model.MatchRegex, "hosting", false))
	where, args := q.Where()
	assert.Equal(t, "regexp(?, coalesce(whois_org, ''))", where)
	assert.Equal(t, []any{"hosting"}, args)
}

func TestValidation(t *testing.T) {
	cases := []filter.Spec{
		{Field: "", Op: filter.OpEquals, Value: "x"},
		{Field: "department", Op: "LIKE", Value: "x"},
		{Field: "department", Op: filter.OpEquals, Value: "   "},
		{Field: `Size "approx"`, Op: filter.OpEquals, Value: "x"},
	}
	for _, s := range cases {
		err := filter.New(&database.SQLiteDialect{}, 1).AddSpec(s)
		assert.ErrorIs(t, err, filter.ErrInvalid)
	}

	// operators without a value requirement
	err := filter.New(&database.SQLiteDialect{}, 1).AddSpec(filter.Spec{Field: "department", Op: filter.OpIsEmpty})
	assert.NoError(t, err)
}

func TestUnknownMatchType(t *testing.T) {
	err := filter.New(&database.SQLiteDialect{}, 1).MatchColumn("email_norm", "GLOB", "x", false)
	assert.ErrorIs(t, err, filter.ErrInvalid)
}
