// Package filter builds parameterized WHERE clauses for event queries.
//
// All user input reaches SQL through bound parameters; the only strings
// interpolated into clause text are promoted column names from the
// fields allow-list and dialect-generated placeholders.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/fields"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// Filter operators, applied to the text rendering of a field unless the
// field is a promoted numeric column.
const (
	OpEquals     = "EQUALS"
	OpContains   = "CONTAINS"
	OpStartsWith = "STARTS_WITH"
	OpEndsWith   = "ENDS_WITH"
	OpGT         = "GT"
	OpGTE        = "GTE"
	OpLT         = "LT"
	OpLTE        = "LTE"
	OpIsEmpty    = "IS_EMPTY"
	OpIsNotEmpty = "IS_NOT_EMPTY"
)

// Ops lists every supported operator.
var Ops = []string{
	OpEquals, OpContains, OpStartsWith, OpEndsWith,
	OpGT, OpGTE, OpLT, OpLTE, OpIsEmpty, OpIsNotEmpty,
}

var cmpByOp = map[string]string{OpGT: ">", OpGTE: ">=", OpLT: "<", OpLTE: "<="}

// ErrInvalid marks a request problem (unknown operator, missing value)
// as opposed to a backend failure. Callers surface it as a client error.
var ErrInvalid = errors.New("invalid filter")

// Spec is one user-supplied filter condition.
type Spec struct {
	Field           string `json:"field" validate:"required"`
	Op              string `json:"op" validate:"required"`
	Value           string `json:"value"`
	CaseInsensitive bool   `json:"case_insensitive"`
}

// Validate checks the spec without touching the database.
func (s Spec) Validate() error {
	if s.Field == "" {
		return fmt.Errorf("%w: field is required", ErrInvalid)
	}
	if !fields.ValidName(s.Field) {
		return fmt.Errorf("%w: field name %q is not addressable", ErrInvalid, s.Field)
	}
	valid := false
	for _, op := range Ops {
		if s.Op == op {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("%w: unknown operator %q", ErrInvalid, s.Op)
	}
	if s.Op != OpIsEmpty && s.Op != OpIsNotEmpty && strings.TrimSpace(s.Value) == "" {
		return fmt.Errorf("%w: value is required for %s", ErrInvalid, s.Op)
	}
	return nil
}

// Query accumulates AND-joined clauses with dialect-correct placeholders.
// argStart is the 1-based index of the first placeholder this query may
// use; pass a higher value when the clause follows other parameters in
// the same statement.
type Query struct {
	d       fields.Dialect
	clauses []string
	args    []any
	next    int
}

// New returns an empty query starting placeholder numbering at argStart.
func New(d fields.Dialect, argStart int) *Query {
	return &Query{d: d, next: argStart}
}

// take reserves the next placeholder index.
func (q *Query) take() int {
	i := q.next
	q.next++
	return i
}

// Months restricts to a set of months. No-op when months is empty.
func (q *Query) Months(months []model.Month) *Query {
	if len(months) == 0 {
		return q
	}
	ph := make([]string, len(months))
	for i, m := range months {
		ph[i] = q.d.Placeholder(q.take())
		q.args = append(q.args, string(m))
	}
	q.clauses = append(q.clauses, "month_key IN ("+strings.Join(ph, ", ")+")")
	return q
}

// In restricts a column to a set of values. No-op when values is empty.
func (q *Query) In(column string, values []string) *Query {
	if len(values) == 0 {
		return q
	}
	ph := make([]string, len(values))
	for i, v := range values {
		ph[i] = q.d.Placeholder(q.take())
		q.args = append(q.args, v)
	}
	q.clauses = append(q.clauses, column+" IN ("+strings.Join(ph, ", ")+")")
	return q
}

// MonthEquals restricts to a single month.
func (q *Query) MonthEquals(month model.Month) *Query {
	q.clauses = append(q.clauses, "month_key = "+q.d.Placeholder(q.take()))
	q.args = append(q.args, string(month))
	return q
}

// ExcludeFalsePositives drops events already dispositioned as false
// positives.
func (q *Query) ExcludeFalsePositives() *Query {
	q.clauses = append(q.clauses, "is_false_positive = FALSE")
	return q
}

// ClickedOnly restricts to events the data considers clicked.
func (q *Query) ClickedOnly() *Query {
	q.clauses = append(q.clauses, "click_count > 0")
	return q
}

// MatchColumn adds an EXACT, CONTAINS, or REGEX condition on a promoted
// column. NULL column values compare as the empty string.
func (q *Query) MatchColumn(column, matchType, value string, caseInsensitive bool) error {
	value = strings.TrimSpace(value)
	expr := "coalesce(" + column + ", '')"

	switch matchType {
	case model.MatchExact:
		ph := q.d.Placeholder(q.take())
		if caseInsensitive {
			q.clauses = append(q.clauses, "lower("+expr+") = lower("+ph+")")
		} else {
			q.clauses = append(q.clauses, expr+" = "+ph)
		}
		q.args = append(q.args, value)
	case model.MatchContains:
		ph := q.d.Placeholder(q.take())
		if caseInsensitive {
			q.clauses = append(q.clauses, "lower("+expr+") LIKE lower("+ph+")")
		} else {
			q.clauses = append(q.clauses, expr+" LIKE "+ph)
		}
		q.args = append(q.args, "%"+value+"%")
	case model.MatchRegex:
		q.clauses = append(q.clauses, q.d.RegexpSQL(expr, q.take(), caseInsensitive))
		q.args = append(q.args, value)
	default:
		return fmt.Errorf("%w: unknown match type %q", ErrInvalid, matchType)
	}
	return nil
}

// refExpr renders the field expression, reserving placeholders for any
// payload-key arguments. Dynamic fields consume one placeholder per call,
// so an expression needed twice in a clause binds its key twice and stays
// correct under positional parameters.
func (q *Query) refExpr(ref fields.Ref) string {
	expr, args := ref.Expr(q.d, q.next)
	q.next += len(args)
	q.args = append(q.args, args...)
	return expr
}

// AddSpec compiles one filter condition into the query.
func (q *Query) AddSpec(s Spec) error {
	if err := s.Validate(); err != nil {
		return err
	}

	ref := fields.Resolve(s.Field)

	switch s.Op {
	case OpIsEmpty:
		q.clauses = append(q.clauses,
			"("+q.refExpr(ref)+" IS NULL OR "+q.refExpr(ref)+" = '')")
		return nil
	case OpIsNotEmpty:
		q.clauses = append(q.clauses,
			"("+q.refExpr(ref)+" IS NOT NULL AND "+q.refExpr(ref)+" <> '')")
		return nil
	}

	if cmp, ok := cmpByOp[s.Op]; ok {
		if ref.Numeric() {
			q.clauses = append(q.clauses, q.d.NumericCompareSQL(ref.Name(), cmp, q.take()))
			q.args = append(q.args, s.Value)
			return nil
		}
		expr := q.refExpr(ref)
		q.clauses = append(q.clauses, expr+" "+cmp+" "+q.d.Placeholder(q.take()))
		q.args = append(q.args, s.Value)
		return nil
	}

	// text operators
	expr := "coalesce(" + q.refExpr(ref) + ", '')"
	ph := q.d.Placeholder(q.take())

	var pattern string
	var clause string
	switch s.Op {
	case OpEquals:
		pattern = s.Value
		if s.CaseInsensitive {
			clause = "lower(" + expr + ") = lower(" + ph + ")"
		} else {
			clause = expr + " = " + ph
		}
	case OpContains:
		pattern = "%" + s.Value + "%"
		clause = likeClause(expr, ph, s.CaseInsensitive)
	case OpStartsWith:
		pattern = s.Value + "%"
		clause = likeClause(expr, ph, s.CaseInsensitive)
	case OpEndsWith:
		pattern = "%" + s.Value
		clause = likeClause(expr, ph, s.CaseInsensitive)
	}
	q.clauses = append(q.clauses, clause)
	q.args = append(q.args, pattern)
	return nil
}

func likeClause(expr, ph string, caseInsensitive bool) string {
	if caseInsensitive {
		return "lower(" + expr + ") LIKE lower(" + ph + ")"
	}
	return expr + " LIKE " + ph
}

// Next returns the index the next placeholder would use, so callers can
// continue numbering in the surrounding statement.
func (q *Query) Next() int { return q.next }

// Where returns the accumulated clause and its arguments. An empty query
// yields the always-true clause.
func (q *Query) Where() (string, []any) {
	if len(q.clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(q.clauses, " AND "), q.args
}
