// Package actions implements one-off false-positive marking: immediate
// updates driven by an ad-hoc predicate, with no saved rule behind them.
// Unlike rules, an action may target any field, including payload keys.
package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/fields"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// ErrInvalid marks an action specification problem.
var ErrInvalid = errors.New("invalid action")

// defaultPreviewFields is the display set used when the caller selects
// nothing.
var defaultPreviewFields = []string{
	"id", "month_key", "email_address", "clicked_ip", "whois_org",
	"campaign_title", "date_clicked", "click_count", "is_false_positive",
}

// Spec describes one ad-hoc false-positive action.
type Spec struct {
	Scope           string        `json:"scope"`
	Months          []model.Month `json:"months,omitempty"`
	Field           string        `json:"field"`
	Value           string        `json:"value"`
	MatchType       string        `json:"match_type"`
	CaseInsensitive bool          `json:"case_insensitive"`
	Comment         string        `json:"comment"`
	SetBy           string        `json:"set_by"`
}

// Validate checks the spec without touching the database.
func (s *Spec) Validate() error {
	if s.Scope != model.ScopeMonth && s.Scope != model.ScopeAll {
		return fmt.Errorf("%w: scope must be MONTH or ALL", ErrInvalid)
	}
	if s.Scope == model.ScopeMonth && len(s.Months) == 0 {
		return fmt.Errorf("%w: months required when scope is MONTH", ErrInvalid)
	}
	if s.MatchType != filter.OpEquals && s.MatchType != filter.OpContains {
		return fmt.Errorf("%w: match_type must be EQUALS or CONTAINS", ErrInvalid)
	}
	if s.Field == "" {
		return fmt.Errorf("%w: field required", ErrInvalid)
	}
	if !fields.ValidName(s.Field) {
		return fmt.Errorf("%w: field name %q is not addressable", ErrInvalid, s.Field)
	}
	if strings.TrimSpace(s.Value) == "" {
		return fmt.Errorf("%w: value required", ErrInvalid)
	}
	if strings.TrimSpace(s.Comment) == "" {
		return fmt.Errorf("%w: comment required", ErrInvalid)
	}
	return nil
}

// Preview reports what an action would do, before anything is written.
type Preview struct {
	ExactCount           int64            `json:"exact_count"`
	CaseInsensitiveCount int64            `json:"case_insensitive_count"`
	Rows                 []map[string]any `json:"rows"`
	Hint                 string           `json:"hint,omitempty"`
}

// Engine evaluates and applies ad-hoc actions against a store.
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

// buildWhere compiles the action predicate: scope months, the clicked
// restriction, and the field match.
func (e *Engine) buildWhere(s *Spec, caseInsensitive bool, argStart int) (string, []any, int, error) {
	q := filter.New(e.store.Dialect(), argStart)
	if s.Scope == model.ScopeMonth {
		q.Months(s.Months)
	}
	q.ClickedOnly()
	err := q.AddSpec(filter.Spec{
		Field:           s.Field,
		Op:              s.MatchType,
		Value:           strings.TrimSpace(s.Value),
		CaseInsensitive: caseInsensitive,
	})
	if err != nil {
		return "", nil, 0, err
	}
	where, args := q.Where()
	return where, args, q.Next(), nil
}

// Preview counts matches in both case modes and fetches a capped sample
// in the requested mode.
func (e *Engine) Preview(ctx context.Context, s *Spec, previewFields []string) (*Preview, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	whereExact, argsExact, _, err := e.buildWhere(s, false, 1)
	if err != nil {
		return nil, err
	}
	whereIns, argsIns, _, err := e.buildWhere(s, true, 1)
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

	d := e.store.Dialect()

	names := previewFields
	if len(names) == 0 {
		names = defaultPreviewFields
	}
	hasID := false
	for _, n := range names {
		if n == "id" {
			hasID = true
			break
		}
	}
	if !hasID {
		names = append([]string{"id"}, names...)
	}

	next := 1
	selectExprs := make([]string, len(names))
	var args []any
	for i, n := range names {
		if !fields.ValidName(n) {
			return nil, fmt.Errorf("%w: preview field %q is not addressable", ErrInvalid, n)
		}
		expr, a := fields.Resolve(n).SelectExpr(d, next)
		selectExprs[i] = expr
		next += len(a)
		args = append(args, a...)
	}

	where, whereArgs, next, err := e.buildWhere(s, s.CaseInsensitive, next)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)
	args = append(args, e.previewLimit)

	rows, err := e.store.SelectMaps(ctx,
		"SELECT "+strings.Join(selectExprs, ", ")+" FROM phish_events WHERE "+where+
			" ORDER BY month_key DESC, id DESC LIMIT "+d.Placeholder(next),
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetching preview rows: %w", err)
	}

	p := &Preview{ExactCount: exactCount, CaseInsensitiveCount: insCount, Rows: rows}
	if exactCount == 0 && insCount > 0 {
		p.Hint = "Exact match found 0, but case-insensitive match found results. Enable case-insensitive."
	} else if exactCount != insCount && exactCount > 0 {
		p.Hint = "Case variants exist (ABC vs abc). Enable case-insensitive if desired."
	}
	return p, nil
}

// Apply flags every matching event in one update. Nothing about the
// action itself is persisted beyond the per-row audit fields.
func (e *Engine) Apply(ctx context.Context, s *Spec) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	where, args, _, err := e.buildWhere(s, s.CaseInsensitive, database.FalsePositiveSetArgs+1)
	if err != nil {
		return 0, err
	}

	setBy := strings.TrimSpace(s.SetBy)
	if setBy == "" {
		setBy = "unknown"
	}
	reason := fmt.Sprintf("Investigation FP: %s %s '%s'",
		s.Field, s.MatchType, strings.TrimSpace(s.Value))

	return e.store.MarkFalsePositives(ctx, where, args, reason,
		strings.TrimSpace(s.Comment), setBy)
}
