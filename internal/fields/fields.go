// Package fields resolves user-facing field names to SQL expressions.
//
// A field is either a promoted column on the phish_events table or a
// dynamic key inside the raw_json payload. Promoted names come from a
// fixed allow-list, so they are safe to interpolate into SQL; dynamic
// keys are always bound as parameters.
package fields

import "strings"

// Dialect is the subset of SQL generation the resolver needs. The
// database package's Dialect satisfies it structurally.
type Dialect interface {
	Placeholder(index int) string
	PayloadTextSQL(index int) string
	PayloadKeyArg(key string) any
	NumericCompareSQL(column, cmp string, index int) string
	RegexpSQL(expr string, index int, caseInsensitive bool) string
}

// Promoted lists the first-class event columns, in display order.
var Promoted = []string{
	"id", "month_key", "batch_id", "filename",
	"email_address", "email_norm", "first_name", "last_name", "department",
	"manager_name", "manager_email", "executive_name", "executive_email",
	"campaign_guid", "users_guid", "campaign_title", "phishing_template",
	"date_sent", "date_opened", "date_clicked", "date_reported",
	"primary_clicked", "multi_click_event", "click_count",
	"clicked_ip", "whois_org",
	"is_false_positive", "false_positive_reason", "false_positive_comment",
	"false_positive_set_at", "false_positive_set_by",
}

// DefaultDisplay is the column set used when a caller asks for no
// particular fields.
var DefaultDisplay = []string{
	"id", "month_key", "email_address", "department", "executive_name",
	"campaign_title", "date_clicked", "clicked_ip", "whois_org",
	"click_count", "is_false_positive",
}

var promotedSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Promoted))
	for _, c := range Promoted {
		m[c] = struct{}{}
	}
	return m
}()

// numeric columns compare as numbers rather than text.
var numericSet = map[string]struct{}{
	"id":                {},
	"batch_id":          {},
	"primary_clicked":   {},
	"multi_click_event": {},
	"click_count":       {},
}

// Ref is a resolved field reference. The zero value is not valid; use
// Resolve.
type Ref struct {
	name     string
	promoted bool
}

// Resolve maps a field name to a Ref. Names on the promoted allow-list
// become column refs; anything else is treated as a payload key.
func Resolve(name string) Ref {
	_, ok := promotedSet[name]
	return Ref{name: name, promoted: ok}
}

// ValidName reports whether a field name is addressable. Names containing
// a double quote cannot be written as a SQLite JSON path member or quoted
// as a SELECT alias, so every entry point that accepts a dynamic field
// rejects them.
func ValidName(name string) bool {
	return name != "" && !strings.Contains(name, `"`)
}

// Name returns the user-facing field name.
func (r Ref) Name() string { return r.name }

// Promoted reports whether the ref addresses a first-class column.
func (r Ref) Promoted() bool { return r.promoted }

// Numeric reports whether ordering comparisons on this field should be
// numeric. Only promoted columns can be numeric.
func (r Ref) Numeric() bool {
	if !r.promoted {
		return false
	}
	_, ok := numericSet[r.name]
	return ok
}

// Expr renders the field as a text-valued SQL expression. Dynamic refs
// consume one placeholder at index and return its argument; promoted
// refs bind nothing.
func (r Ref) Expr(d Dialect, index int) (expr string, args []any) {
	if r.promoted {
		return "CAST(" + r.name + " AS TEXT)", nil
	}
	return d.PayloadTextSQL(index), []any{d.PayloadKeyArg(r.name)}
}

// SelectExpr renders the field for a SELECT list, aliased to its name.
// Dynamic refs consume one placeholder at index. The alias is written as
// a quoted identifier with embedded quotes doubled, so the field name
// never flows into the statement as raw SQL.
func (r Ref) SelectExpr(d Dialect, index int) (expr string, args []any) {
	if r.promoted {
		return r.name + " AS " + quoteAlias(r.name), nil
	}
	return d.PayloadTextSQL(index) + " AS " + quoteAlias(r.name), []any{d.PayloadKeyArg(r.name)}
}

func quoteAlias(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Available returns the full field universe: the promoted columns
// followed by the given payload keys, minus keys shadowed by a promoted
// name and keys that are not addressable.
func Available(payloadKeys []string) []string {
	out := make([]string, 0, len(Promoted)+len(payloadKeys))
	out = append(out, Promoted...)
	for _, k := range payloadKeys {
		if _, shadowed := promotedSet[k]; shadowed || !ValidName(k) {
			continue
		}
		out = append(out, k)
	}
	return out
}
