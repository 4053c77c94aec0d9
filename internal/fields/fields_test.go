package fields_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/fields"
)

func TestResolvePromoted(t *testing.T) {
	r := fields.Resolve("email_address")
	assert.True(t, r.Promoted())
	assert.False(t, r.Numeric())
	assert.Equal(t, "email_address", r.Name())
}

func TestResolveNumeric(t *testing.T) {
	for _, name := range []string{"id", "batch_id", "primary_clicked", "multi_click_event", "click_count"} {
		r := fields.Resolve(name)
		assert.True(t, r.Numeric(), name)
	}
	assert.False(t, fields.Resolve("email_address").Numeric())
	assert.False(t, fields.Resolve("Custom Score").Numeric(), "dynamic fields never compare numerically")
}

func TestResolveDynamic(t *testing.T) {
	r := fields.Resolve("Browser Family")
	assert.False(t, r.Promoted())
}

func TestExprSQLite(t *testing.T) {
	d := &database.SQLiteDialect{}

	expr, args := fields.Resolve("department").Expr(d, 1)
	assert.Equal(t, "CAST(department AS TEXT)", expr)
	assert.Empty(t, args)

	expr, args = fields.Resolve("Browser Family").Expr(d, 1)
	assert.Equal(t, "CAST(json_extract(raw_json, ?) AS TEXT)", expr)
	assert.Equal(t, []any{`$."Browser Family"`}, args)
}

func TestExprPostgres(t *testing.T) {
	d := &database.PostgresDialect{}

	expr, args := fields.Resolve("Browser Family").Expr(d, 3)
	assert.Equal(t, "raw_json->>$3", expr)
	assert.Equal(t, []any{"Browser Family"}, args)
}

func TestSelectExpr(t *testing.T) {
	d := &database.PostgresDialect{}

	expr, args := fields.Resolve("month_key").SelectExpr(d, 1)
	assert.Equal(t, `month_key AS "month_key"`, expr)
	assert.Empty(t, args)

	expr, args = fields.Resolve("Vendor").SelectExpr(d, 2)
	assert.Equal(t, `raw_json->>$2 AS "Vendor"`, expr)
	assert.Equal(t, []any{"Vendor"}, args)
}

func TestSelectExprEscapesAlias(t *testing.T) {
	d := &database.PostgresDialect{}

	expr, args := fields.Resolve(`x", (SELECT created_by FROM fp_rules LIMIT 1) AS "leak`).SelectExpr(d, 1)
	assert.Equal(t, `raw_json->>$1 AS "x"", (SELECT created_by FROM fp_rules LIMIT 1) AS ""leak"`, expr)
	assert.Len(t, args, 1)
	assert.NotContains(t, expr, `AS "x",`, "embedded quotes must not close the alias")
}

func TestValidName(t *testing.T) {
	assert.True(t, fields.ValidName("Browser Family"))
	assert.True(t, fields.ValidName("email_address"))
	assert.False(t, fields.ValidName(""))
	assert.False(t, fields.ValidName(`Size "approx"`))
	assert.False(t, fields.ValidName(`x", (SELECT 1) AS "y`))
}

func TestAvailableDeduplicates(t *testing.T) {
	got := fields.Available([]string{"Browser Family", "email_address", "Vendor"})
	assert.Len(t, got, len(fields.Promoted)+2)
	assert.Contains(t, got, "Browser Family")
	assert.Contains(t, got, "Vendor")

	seen := map[string]int{}
	for _, f := range got {
		seen[f]++
	}
	assert.Equal(t, 1, seen["email_address"])
}
