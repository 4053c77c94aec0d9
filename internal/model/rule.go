package model

// Rule scope values.
const (
	ScopeMonth = "MONTH"
	ScopeAll   = "ALL"
)

// Rule match types.
const (
	MatchExact    = "EXACT"
	MatchContains = "CONTAINS"
	MatchRegex    = "REGEX"
)

// Rule is a persisted false-positive marking rule. A rule is created only by
// applying it; afterwards the only mutable attribute is IsActive.
type Rule struct {
	ID              int64  `json:"id" db:"id"`
	CreatedAt       string `json:"created_at" db:"created_at"`
	CreatedBy       string `json:"created_by" db:"created_by"`
	Scope           string `json:"scope" db:"scope"`
	MonthKey        *Month `json:"month_key" db:"month_key"`
	FieldLabel      string `json:"field_label" db:"field_label"`
	FieldColumn     string `json:"field_column" db:"field_column"`
	MatchType       string `json:"match_type" db:"match_type"`
	Value           string `json:"value" db:"value"`
	CaseInsensitive bool   `json:"case_insensitive" db:"case_insensitive"`
	Comment         string `json:"comment" db:"comment"`
	IsActive        bool   `json:"is_active" db:"is_active"`
}

// RuleRun is one audit row per rule application. Reapplying a rule appends a
// fresh run row; runs are never updated or deleted.
type RuleRun struct {
	ID            int64  `json:"id" db:"id"`
	RuleID        int64  `json:"rule_id" db:"rule_id"`
	RunAt         string `json:"run_at" db:"run_at"`
	AffectedCount int64  `json:"affected_count" db:"affected_count"`
}
