package rules_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
	"github.com/jkrishnancp/phishing-report-app/internal/rules"
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
	events := []*model.Event{
		{MonthKey: "2026-01", EmailNorm: strp("bot@example.com"), EmailAddress: strp("Bot@Example.com"), ClickCount: 3},
		{MonthKey: "2026-01", EmailNorm: strp("BOT@EXAMPLE.COM"), EmailAddress: strp("BOT@EXAMPLE.COM"), ClickCount: 1},
		{MonthKey: "2026-01", EmailNorm: strp("human@example.com"), EmailAddress: strp("human@example.com"), ClickCount: 2},
		{MonthKey: "2026-01", EmailNorm: strp("bot@example.com"), EmailAddress: strp("bot@example.com"), ClickCount: 0},
		{MonthKey: "2025-12", EmailNorm: strp("bot@example.com"), EmailAddress: strp("bot@example.com"), ClickCount: 1},
	}
	_, err := db.ImportEvents(context.Background(), "seed.csv", "2026-01", events, false)
	require.NoError(t, err)
}

func month(s string) *model.Month {
	m := model.Month(s)
	return &m
}

func validSpec() *rules.Spec {
	return &rules.Spec{
		Scope:      model.ScopeMonth,
		MonthKey:   month("2026-01"),
		FieldLabel: "Email (normalized)",
		Value:      "bot@example.com",
		MatchType:  model.MatchExact,
		Comment:    "known scanner",
		CreatedBy:  "analyst",
	}
}

func TestSpecValidation(t *testing.T) {
	cases := map[string]func(*rules.Spec){
		"bad scope":        func(s *rules.Spec) { s.Scope = "WEEK" },
		"month required":   func(s *rules.Spec) { s.MonthKey = nil },
		"bad field":        func(s *rules.Spec) { s.FieldLabel = "Browser Family" },
		"bad match type":   func(s *rules.Spec) { s.MatchType = "GLOB" },
		"value required":   func(s *rules.Spec) { s.Value = "  " },
		"comment required": func(s *rules.Spec) { s.Comment = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := validSpec()
			mutate(s)
			assert.ErrorIs(t, s.Validate(), rules.ErrInvalid)
		})
	}

	s := validSpec()
	s.Scope = model.ScopeAll
	s.MonthKey = nil
	assert.NoError(t, s.Validate(), "ALL scope needs no month")
}

func TestPreviewCountsAndHint(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)

	p, err := eng.Preview(context.Background(), validSpec(), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.ExactCount, "only clicked rows in the scoped month")
	assert.EqualValues(t, 2, p.CaseInsensitiveCount)
	assert.Contains(t, p.CaseVariantHint, "case variants")
	require.Len(t, p.Rows, 1)
	assert.Equal(t, "bot@example.com", p.Rows[0]["email_norm"])
}

func TestPreviewCaseInsensitiveMode(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)

	s := validSpec()
	s.CaseInsensitive = true
	p, err := eng.Preview(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Len(t, p.Rows, 2, "preview uses the requested case mode")
}

func TestPreviewZeroExactHint(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)

	s := validSpec()
	s.Value = "BOT@example.COM"
	p, err := eng.Preview(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Zero(t, p.ExactCount)
	assert.Contains(t, p.CaseVariantHint, "Enable case-insensitive")
}

func TestPreviewColumnAllowList(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)

	p, err := eng.Preview(context.Background(), validSpec(),
		[]string{"email_norm", "raw_json; DROP TABLE phish_events"})
	require.NoError(t, err)
	require.Len(t, p.Rows, 1)
	_, hasEmail := p.Rows[0]["email_norm"]
	assert.True(t, hasEmail)
	assert.Len(t, p.Rows[0], 1, "unsafe columns are dropped")
}

func TestApplyFlagsOnlyScopedClickedRows(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)
	ctx := context.Background()

	ruleID, affected, err := eng.Apply(ctx, validSpec())
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	rows, err := db.SelectMaps(ctx,
		"SELECT month_key, email_norm, click_count, false_positive_reason FROM phish_events WHERE is_false_positive = TRUE")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-01", rows[0]["month_key"])
	assert.EqualValues(t, 3, rows[0]["click_count"])
	assert.Equal(t,
		"Rule 1: Email (normalized) EXACT 'bot@example.com'",
		rows[0]["false_positive_reason"])

	runs, err := eng.Runs(ctx, ruleID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.EqualValues(t, 1, runs[0].AffectedCount)
}

func TestApplyTwiceKeepsFlaggedSetStable(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)
	ctx := context.Background()

	firstID, firstAffected, err := eng.Apply(ctx, validSpec())
	require.NoError(t, err)
	assert.EqualValues(t, 1, firstAffected)

	secondID, secondAffected, err := eng.Apply(ctx, validSpec())
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID, "every apply records its own rule")
	assert.Equal(t, firstAffected, secondAffected)

	// The flagged set and per-row disposition do not grow or change on
	// re-apply; only the reason's rule id moves to the newest rule.
	rows, err := db.SelectMaps(ctx,
		"SELECT email_norm, click_count, false_positive_comment, false_positive_reason"+
			" FROM phish_events WHERE is_false_positive = TRUE")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bot@example.com", rows[0]["email_norm"])
	assert.EqualValues(t, 3, rows[0]["click_count"])
	assert.Equal(t, "known scanner", rows[0]["false_positive_comment"])
	assert.Equal(t,
		"Rule 2: Email (normalized) EXACT 'bot@example.com'",
		rows[0]["false_positive_reason"])

	// Each apply appends its own audit row, two in total.
	firstRuns, err := eng.Runs(ctx, firstID)
	require.NoError(t, err)
	secondRuns, err := eng.Runs(ctx, secondID)
	require.NoError(t, err)
	assert.Len(t, firstRuns, 1)
	assert.Len(t, secondRuns, 1)
	total, err := db.SelectCount(ctx, "SELECT COUNT(*) FROM fp_rule_runs")
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestApplyRegexRule(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)

	s := validSpec()
	s.Scope = model.ScopeAll
	s.MonthKey = nil
	s.MatchType = model.MatchRegex
	s.Value = `^bot@`
	s.CaseInsensitive = true

	_, affected, err := eng.Apply(context.Background(), s)
	require.NoError(t, err)
	assert.EqualValues(t, 3, affected, "clicked bot rows across every month")
}

func TestContainsRule(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)

	s := validSpec()
	s.MatchType = model.MatchContains
	s.Value = "bot@"
	s.CaseInsensitive = true

	p, err := eng.Preview(context.Background(), s, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.CaseInsensitiveCount)
}

func TestListAndDeactivate(t *testing.T) {
	db := newTestStore(t)
	seed(t, db)
	eng := rules.NewEngine(db, 200)
	ctx := context.Background()

	ruleID, _, err := eng.Apply(ctx, validSpec())
	require.NoError(t, err)

	active, err := eng.List(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "email_norm", active[0].FieldColumn)

	updated, err := eng.Deactivate(ctx, ruleID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated)

	active, err = eng.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := eng.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].IsActive)
}
