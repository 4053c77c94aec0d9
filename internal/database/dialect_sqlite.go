package database

import "fmt"

// SQLiteDialect implements the Dialect interface for SQLite databases.
// It also satisfies fields.Dialect through structural typing.
//
// Regular-expression matching relies on the regexp/regexpi scalar
// functions registered by this package's init (see regexp_sqlite.go).
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string              { return "sqlite" }
func (d *SQLiteDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *SQLiteDialect) Placeholder(index int) string    { return "?" }
func (d *SQLiteDialect) NowSQL() string                  { return "datetime('now')" }

func (d *SQLiteDialect) PayloadTextSQL(index int) string {
	return "CAST(json_extract(raw_json, ?) AS TEXT)"
}

// PayloadKeyArg builds a JSON path for the key, quoting it so keys with
// dots or spaces resolve as a single object member. SQLite's path syntax
// has no escape for a double quote inside a quoted member, so keys
// containing one are rejected upstream by fields.ValidName.
func (d *SQLiteDialect) PayloadKeyArg(key string) any {
	return `$."` + key + `"`
}

func (d *SQLiteDialect) PayloadKeysSQL(monthsClause string) string {
	q := "SELECT DISTINCT j.key FROM phish_events, json_each(phish_events.raw_json) AS j WHERE raw_json IS NOT NULL"
	if monthsClause != "" {
		q += " AND " + monthsClause
	}
	return q + " ORDER BY 1"
}

func (d *SQLiteDialect) NumericCompareSQL(column, cmp string, index int) string {
	return fmt.Sprintf("COALESCE(CAST(%s AS REAL), 0) %s CAST(? AS REAL)", column, cmp)
}

func (d *SQLiteDialect) RegexpSQL(expr string, index int, caseInsensitive bool) string {
	if caseInsensitive {
		return fmt.Sprintf("regexpi(?, %s)", expr)
	}
	return fmt.Sprintf("regexp(?, %s)", expr)
}

func (d *SQLiteDialect) CreateSchemaVersionTableSQL() string {
	return "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)"
}

func (d *SQLiteDialect) CreateEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS phish_events (
		id INTEGER PRIMARY KEY,
		month_key TEXT NOT NULL,
		batch_id INTEGER,
		filename TEXT,

		email_address TEXT, email_norm TEXT,
		first_name TEXT, last_name TEXT, department TEXT,
		manager_name TEXT, manager_email TEXT,
		executive_name TEXT, executive_email TEXT,

		campaign_guid TEXT, users_guid TEXT,
		campaign_title TEXT, phishing_template TEXT,

		date_sent TEXT, date_opened TEXT,
		date_clicked TEXT, date_reported TEXT,

		primary_clicked INTEGER DEFAULT 0,
		multi_click_event INTEGER DEFAULT 0,
		click_count INTEGER DEFAULT 0,

		clicked_ip TEXT, whois_org TEXT,

		is_false_positive INTEGER NOT NULL DEFAULT 0,
		false_positive_reason TEXT,
		false_positive_comment TEXT,
		false_positive_set_at TEXT,
		false_positive_set_by TEXT,

		raw_json TEXT
	)`
}

func (d *SQLiteDialect) CreateBatchesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS import_batches (
		batch_id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		filename TEXT,
		month_key TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0
	)`
}

func (d *SQLiteDialect) CreateReportedEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS reported_events (
		id INTEGER PRIMARY KEY,
		month_key TEXT NOT NULL,
		batch_id INTEGER,
		filename TEXT,

		issue_type TEXT, issue_key TEXT, issue_id TEXT,
		summary TEXT, created_at TEXT, risk_accepted TEXT,
		assignee TEXT, assignee_id TEXT,
		reporter TEXT, reporter_id TEXT,
		priority TEXT, status TEXT, due_date TEXT,
		remediation_steps TEXT, reason_for_closing TEXT,

		raw_json TEXT
	)`
}

func (d *SQLiteDialect) CreateReportedBatchesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS reported_import_batches (
		batch_id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		filename TEXT,
		row_count INTEGER NOT NULL DEFAULT 0
	)`
}

func (d *SQLiteDialect) CreateRulesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS fp_rules (
		id INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL,
		scope TEXT NOT NULL,
		month_key TEXT,
		field_label TEXT NOT NULL,
		field_column TEXT NOT NULL,
		match_type TEXT NOT NULL,
		value TEXT NOT NULL,
		case_insensitive INTEGER NOT NULL DEFAULT 0,
		comment TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	)`
}

func (d *SQLiteDialect) CreateRuleRunsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS fp_rule_runs (
		id INTEGER PRIMARY KEY,
		rule_id INTEGER NOT NULL REFERENCES fp_rules(id) ON DELETE CASCADE,
		run_at TEXT NOT NULL DEFAULT (datetime('now')),
		affected_count INTEGER NOT NULL DEFAULT 0
	)`
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}
