// Package rules implements false-positive rules: saved, auditable
// predicates that flag matching clicked events so they drop out of
// reporting.
package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// ErrInvalid marks a rule specification problem.
var ErrInvalid = errors.New("invalid rule")

// AllowedFields maps the user-facing field label to the event column a
// rule may match on. Only these columns are ever interpolated into rule
// SQL.
var AllowedFields = map[string]string{
	"Email (normalized)": "email_norm",
	"Email Address":      "email_address",
	"First Name":         "first_name",
	"Last Name":          "last_name",
	"Department":         "department",
	"Manager Name":       "manager_name",
	"Manager Email":      "manager_email",
	"Executive Name":     "executive_name",
	"Executive Email":    "executive_email",
	"Campaign Title":     "campaign_title",
	"Phishing Template":  "phishing_template",
	"Campaign Guid":      "campaign_guid",
	"Users Guid":         "users_guid",
	"Clicked IP":         "clicked_ip",
	"Whois Org":          "whois_org",
}

// SafeColumns lists the event columns a preview may display.
var SafeColumns = []string{
	"id", "month_key", "batch_id",
	"email_address", "email_norm", "first_name", "last_name", "department",
	"manager_name", "manager_email", "executive_name", "executive_email",
	"campaign_guid", "users_guid", "campaign_title", "phishing_template",
	"date_sent", "date_opened", "date_clicked", "date_reported",
	"primary_clicked", "multi_click_event", "click_count",
	"clicked_ip", "whois_org",
	"is_false_positive", "false_positive_reason", "false_positive_comment",
	"false_positive_set_at", "false_positive_set_by",
}

// DefaultPreviewColumns is the display set used when the caller selects
// no valid columns.
var DefaultPreviewColumns = []string{
	"id", "month_key", "email_address", "email_norm", "executive_name",
	"department", "manager_name", "campaign_title", "phishing_template",
	"clicked_ip", "whois_org", "click_count", "date_clicked",
	"is_false_positive",
}

var safeColumnSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(SafeColumns))
	for _, c := range SafeColumns {
		m[c] = struct{}{}
	}
	return m
}()

// Spec describes a rule to preview or apply.
type Spec struct {
	Scope           string       `json:"scope"`
	MonthKey        *model.Month `json:"month_key,omitempty"`
	FieldLabel      string       `json:"field_label"`
	Value           string       `json:"value"`
	MatchType       string       `json:"match_type"`
	CaseInsensitive bool         `json:"case_insensitive"`
	Comment         string       `json:"comment"`
	CreatedBy       string       `json:"created_by"`
}

// Validate checks the spec without touching the database.
func (s *Spec) Validate() error {
	if s.Scope != model.ScopeMonth && s.Scope != model.ScopeAll {
		return fmt.Errorf("%w: scope must be MONTH or ALL", ErrInvalid)
	}
	if s.Scope == model.ScopeMonth && (s.MonthKey == nil || !s.MonthKey.Valid()) {
		return fmt.Errorf("%w: month_key is required when scope is MONTH", ErrInvalid)
	}
	if _, ok := AllowedFields[s.FieldLabel]; !ok {
		return fmt.Errorf("%w: invalid field: %s", ErrInvalid, s.FieldLabel)
	}
	switch s.MatchType {
	case model.MatchExact, model.MatchContains, model.MatchRegex:
	default:
		return fmt.Errorf("%w: match_type must be EXACT, CONTAINS, or REGEX", ErrInvalid)
	}
	if strings.TrimSpace(s.Value) == "" {
		return fmt.Errorf("%w: value is required", ErrInvalid)
	}
	if strings.TrimSpace(s.Comment) == "" {
		return fmt.Errorf("%w: comment is required", ErrInvalid)
	}
	return nil
}

// Preview reports what a rule would do, before anything is written.
type Preview struct {
	ExactCount           int64            `json:"exact_count"`
	CaseInsensitiveCount int64            `json:"case_insensitive_count"`
	Rows                 []map[string]any `json:"rows"`
	CaseVariantHint      string           `json:"case_variant_hint,omitempty"`
	PreviewLimit         int              `json:"preview_limit"`
}

// Engine evaluates and applies rules against a store.
type Engine struct {
	store        database.Store
	previewLimit int
}

// NewEngine returns an engine capping previews at previewLimit rows.
func NewEngine(store database.Store, previewLimit int) *Engine {
	if previewLimit <= 0 {
		previewLimit = 200
	}
	return &Engine{store: store, previewLimit: previewLimit}
}

// buildWhere compiles the rule predicate: scope, the clicked restriction,
// and the field match. Rules only ever target events the data considers
// clicked.
func (e *Engine) buildWhere(s *Spec, caseInsensitive bool, argStart int) (string, []any, int, error) {
	q := filter.New(e.store.Dialect(), argStart)
	if s.Scope == model.ScopeMonth {
		q.MonthEquals(*s.MonthKey)
	}
	q.ClickedOnly()
	if err := q.MatchColumn(AllowedFields[s.FieldLabel], s.MatchType, s.Value, caseInsensitive); err != nil {
		return "", nil, 0, err
	}
	where, args := q.Where()
	return where, args, q.Next(), nil
}

// safeSelectedColumns keeps only displayable columns, falling back to the
// default set when nothing valid remains.
func safeSelectedColumns(selected []string) []string {
	var cols []string
	for _, c := range selected {
		if _, ok := safeColumnSet[c]; ok {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return DefaultPreviewColumns
	}
	return cols
}

// Preview counts matches in both case modes, fetches a capped sample in
// the requested mode, and hints when the two counts diverge.
func (e *Engine) Preview(ctx context.Context, s *Spec, selectedColumns []string) (*Preview, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	whereExact, argsExact, nextExact, err := e.buildWhere(s, false, 1)
	if err != nil {
		return nil, err
	}
	whereIns, argsIns, nextIns, err := e.buildWhere(s, true, 1)
	if err != nil {
		return nil, err
	}

	exactCount, err := e.store.SelectCount(ctx,
		"SELECT COUNT(*) FROM phish_events WHERE "+whereExact, argsExact...)
	if err != nil {
		return nil, fmt.Errorf("counting exact matches: %w", err)
	}
	insCount, err := e.store.SelectCount(ctx,
		"SELECT COUNT(*) FROM phish_events WHERE "+whereIns, argsIns...)
	if err != nil {
		return nil, fmt.Errorf("counting case-insensitive matches: %w", err)
	}

	where, args, next := whereExact, argsExact, nextExact
	if s.CaseInsensitive {
		where, args, next = whereIns, argsIns, nextIns
	}

	cols := safeSelectedColumns(selectedColumns)
	rows, err := e.store.SelectMaps(ctx,
		"SELECT "+strings.Join(cols, ", ")+" FROM phish_events WHERE "+where+
			" ORDER BY month_key DESC, id DESC LIMIT "+e.store.Dialect().Placeholder(next),
		append(args, e.previewLimit)...)
	if err != nil {
		return nil, fmt.Errorf("fetching preview rows: %w", err)
	}

	p := &Preview{
		ExactCount:           exactCount,
		CaseInsensitiveCount: insCount,
		Rows:                 rows,
		PreviewLimit:         e.previewLimit,
	}
	if exactCount == 0 && insCount > 0 {
		p.CaseVariantHint = "Exact match found 0, but case-insensitive match found results. Enable case-insensitive to include them."
	} else if exactCount != insCount && exactCount > 0 {
		p.CaseVariantHint = "There are case variants (e.g., ABC vs abc). Enable case-insensitive if you want to include them."
	}
	return p, nil
}

// Apply persists the rule as active and flags every matching event. The
// store performs the whole operation in one transaction and records a
// run audit row.
func (e *Engine) Apply(ctx context.Context, s *Spec) (ruleID, affected int64, err error) {
	if err := s.Validate(); err != nil {
		return 0, 0, err
	}

	where, args, _, err := e.buildWhere(s, s.CaseInsensitive, database.FalsePositiveSetArgs+1)
	if err != nil {
		return 0, 0, err
	}

	r := &model.Rule{
		CreatedBy:       s.CreatedBy,
		Scope:           s.Scope,
		MonthKey:        s.MonthKey,
		FieldLabel:      s.FieldLabel,
		FieldColumn:     AllowedFields[s.FieldLabel],
		MatchType:       s.MatchType,
		Value:           strings.TrimSpace(s.Value),
		CaseInsensitive: s.CaseInsensitive,
		Comment:         strings.TrimSpace(s.Comment),
	}
	return e.store.ApplyRule(ctx, r, where, args)
}

// List returns rules, newest first.
func (e *Engine) List(ctx context.Context, activeOnly bool) ([]*model.Rule, error) {
	return e.store.ListRules(ctx, activeOnly)
}

// Deactivate soft-deletes a rule. Events the rule already flagged keep
// their disposition.
func (e *Engine) Deactivate(ctx context.Context, ruleID int64) (int64, error) {
	return e.store.DeactivateRule(ctx, ruleID)
}

// Runs returns the audit trail for one rule, newest first.
func (e *Engine) Runs(ctx context.Context, ruleID int64) ([]*model.RuleRun, error) {
	return e.store.ListRuleRuns(ctx, ruleID)
}
