// Package search runs paged, filtered queries over imported events and
// exposes the field universe those queries can address.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/fields"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// DefaultPageSize applies when a request leaves page_size unset.
const DefaultPageSize = 50

// Request describes one search.
type Request struct {
	Months                []model.Month `json:"months"`
	IncludeFalsePositives bool          `json:"include_false_positives"`
	Filters               []filter.Spec `json:"filters"`
	DisplayFields         []string      `json:"display_fields"`
	PageSize              int           `json:"page_size"`
	PageNum               int           `json:"page_num"`
}

// Result is one page plus the total match count. Total is computed
// independently of paging, so callers can derive page counts.
type Result struct {
	Rows     []map[string]any `json:"rows"`
	Total    int64            `json:"total"`
	PageNum  int              `json:"page_num"`
	PageSize int              `json:"page_size"`
}

// Engine runs searches against a store.
type Engine struct {
	store       database.Store
	maxPageSize int
}

// NewEngine returns an engine clamping page sizes at maxPageSize.
func NewEngine(store database.Store, maxPageSize int) *Engine {
	if maxPageSize <= 0 {
		maxPageSize = 500
	}
	return &Engine{store: store, maxPageSize: maxPageSize}
}

// displayRefs resolves the requested display fields, defaulting when the
// list is empty and always leading with id so rows stay addressable.
// Names the resolver cannot address are rejected.
func displayRefs(requested []string) ([]fields.Ref, error) {
	names := requested
	if len(names) == 0 {
		names = fields.DefaultDisplay
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

	refs := make([]fields.Ref, len(names))
	for i, n := range names {
		if !fields.ValidName(n) {
			return nil, fmt.Errorf("%w: display field %q is not addressable", filter.ErrInvalid, n)
		}
		refs[i] = fields.Resolve(n)
	}
	return refs, nil
}

// buildWhere compiles the request predicate starting at argStart.
func (e *Engine) buildWhere(req *Request, argStart int) (string, []any, int, error) {
	q := filter.New(e.store.Dialect(), argStart)
	q.Months(req.Months)
	if !req.IncludeFalsePositives {
		q.ExcludeFalsePositives()
	}
	for _, s := range req.Filters {
		if err := q.AddSpec(s); err != nil {
			return "", nil, 0, err
		}
	}
	where, args := q.Where()
	return where, args, q.Next(), nil
}

// Search returns one page of matches and the total count. Page numbers
// below 1 are treated as the first page.
func (e *Engine) Search(ctx context.Context, req *Request) (*Result, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > e.maxPageSize {
		pageSize = e.maxPageSize
	}
	pageNum := req.PageNum
	if pageNum < 1 {
		pageNum = 1
	}

	// The count query carries no select-list parameters, so its WHERE
	// numbering starts at 1.
	countWhere, countArgs, _, err := e.buildWhere(req, 1)
	if err != nil {
		return nil, err
	}
	total, err := e.store.SelectCount(ctx,
		"SELECT COUNT(*) FROM phish_events WHERE "+countWhere, countArgs...)
	if err != nil {
		return nil, fmt.Errorf("counting matches: %w", err)
	}

	d := e.store.Dialect()
	refs, err := displayRefs(req.DisplayFields)
	if err != nil {
		return nil, err
	}

	next := 1
	selectExprs := make([]string, len(refs))
	var args []any
	for i, ref := range refs {
		expr, a := ref.SelectExpr(d, next)
		selectExprs[i] = expr
		next += len(a)
		args = append(args, a...)
	}

	where, whereArgs, next, err := e.buildWhere(req, next)
	if err != nil {
		return nil, err
	}
	args = append(args, whereArgs...)

	limitPH := d.Placeholder(next)
	offsetPH := d.Placeholder(next + 1)
	args = append(args, pageSize, (pageNum-1)*pageSize)

	rows, err := e.store.SelectMaps(ctx,
		"SELECT "+strings.Join(selectExprs, ", ")+" FROM phish_events WHERE "+where+
			" ORDER BY month_key DESC, id DESC LIMIT "+limitPH+" OFFSET "+offsetPH,
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	return &Result{Rows: rows, Total: total, PageNum: pageNum, PageSize: pageSize}, nil
}

// FetchByIDs returns the given events with the requested display fields,
// newest first. An empty id list yields an empty result.
func (e *Engine) FetchByIDs(ctx context.Context, ids []int64, displayFields []string) ([]map[string]any, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	d := e.store.Dialect()
	refs, err := displayRefs(displayFields)
	if err != nil {
		return nil, err
	}

	next := 1
	selectExprs := make([]string, len(refs))
	var args []any
	for i, ref := range refs {
		expr, a := ref.SelectExpr(d, next)
		selectExprs[i] = expr
		next += len(a)
		args = append(args, a...)
	}

	ph := make([]string, len(ids))
	for i, id := range ids {
		ph[i] = d.Placeholder(next)
		next++
		args = append(args, id)
	}

	return e.store.SelectMaps(ctx,
		"SELECT "+strings.Join(selectExprs, ", ")+" FROM phish_events WHERE id IN ("+
			strings.Join(ph, ", ")+") ORDER BY month_key DESC, id DESC",
		args...)
}

// DistinctValues returns the distinct non-empty values of one field,
// sorted, capped at limit.
func (e *Engine) DistinctValues(ctx context.Context, field string, months []model.Month, includeFalsePositives bool, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 2000
	}

	d := e.store.Dialect()
	if !fields.ValidName(field) {
		return nil, fmt.Errorf("%w: field %q is not addressable", filter.ErrInvalid, field)
	}
	ref := fields.Resolve(field)

	// The field expression appears three times; dynamic fields bind their
	// key once per occurrence so positional parameters line up.
	next := 1
	var args []any
	expr := func() string {
		s, a := ref.Expr(d, next)
		next += len(a)
		args = append(args, a...)
		return s
	}

	selectExpr := expr()

	q := filter.New(d, next)
	q.Months(months)
	if !includeFalsePositives {
		q.ExcludeFalsePositives()
	}
	where, whereArgs := q.Where()
	next = q.Next()
	args = append(args, whereArgs...)

	notNull := expr()
	notEmpty := expr()
	limitPH := d.Placeholder(next)
	args = append(args, limit)

	rows, err := e.store.SelectMaps(ctx,
		"SELECT DISTINCT "+selectExpr+" AS v FROM phish_events WHERE "+where+
			" AND "+notNull+" IS NOT NULL AND "+notEmpty+" <> ''"+
			" ORDER BY v LIMIT "+limitPH,
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetching distinct values: %w", err)
	}

	values := make([]string, 0, len(rows))
	for _, r := range rows {
		if v, ok := r["v"].(string); ok && v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}

// AvailableFields returns the promoted columns plus every payload key seen
// in the given months (all months when empty).
func (e *Engine) AvailableFields(ctx context.Context, months []model.Month) ([]string, error) {
	keys, err := e.store.PayloadKeys(ctx, months)
	if err != nil {
		return nil, err
	}
	return fields.Available(keys), nil
}
