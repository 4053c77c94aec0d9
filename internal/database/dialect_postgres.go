package database

import "fmt"

// PostgresDialect implements the Dialect interface for PostgreSQL databases.
// It also satisfies fields.Dialect through structural typing.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string              { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }

// NowSQL renders the current instant as text in model.TimeLayout so that
// timestamp columns hold the same representation as the SQLite backend.
func (d *PostgresDialect) NowSQL() string {
	return "to_char(NOW(), 'YYYY-MM-DD HH24:MI:SS')"
}

func (d *PostgresDialect) PayloadTextSQL(index int) string {
	return fmt.Sprintf("raw_json->>$%d", index)
}

func (d *PostgresDialect) PayloadKeyArg(key string) any { return key }

func (d *PostgresDialect) PayloadKeysSQL(monthsClause string) string {
	q := "SELECT DISTINCT jsonb_object_keys(raw_json) AS k FROM phish_events WHERE raw_json IS NOT NULL"
	if monthsClause != "" {
		q += " AND " + monthsClause
	}
	return q + " ORDER BY 1"
}

func (d *PostgresDialect) NumericCompareSQL(column, cmp string, index int) string {
	return fmt.Sprintf("COALESCE(CAST(%s AS NUMERIC), 0) %s CAST($%d AS NUMERIC)", column, cmp, index)
}

func (d *PostgresDialect) RegexpSQL(expr string, index int, caseInsensitive bool) string {
	op := "~"
	if caseInsensitive {
		op = "~*"
	}
	return fmt.Sprintf("%s %s $%d", expr, op, index)
}

func (d *PostgresDialect) CreateSchemaVersionTableSQL() string {
	return "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)"
}

func (d *PostgresDialect) CreateEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS phish_events (
		id BIGSERIAL PRIMARY KEY,
		month_key TEXT NOT NULL,
		batch_id BIGINT,
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

		is_false_positive BOOLEAN NOT NULL DEFAULT FALSE,
		false_positive_reason TEXT,
		false_positive_comment TEXT,
		false_positive_set_at TEXT,
		false_positive_set_by TEXT,

		raw_json JSONB
	)`
}

func (d *PostgresDialect) CreateBatchesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS import_batches (
		batch_id BIGSERIAL PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT to_char(NOW(), 'YYYY-MM-DD HH24:MI:SS'),
		filename TEXT,
		month_key TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0
	)`
}

func (d *PostgresDialect) CreateReportedEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS reported_events (
		id BIGSERIAL PRIMARY KEY,
		month_key TEXT NOT NULL,
		batch_id BIGINT,
		filename TEXT,

		issue_type TEXT, issue_key TEXT, issue_id TEXT,
		summary TEXT, created_at TEXT, risk_accepted TEXT,
		assignee TEXT, assignee_id TEXT,
		reporter TEXT, reporter_id TEXT,
		priority TEXT, status TEXT, due_date TEXT,
		remediation_steps TEXT, reason_for_closing TEXT,

		raw_json JSONB
	)`
}

func (d *PostgresDialect) CreateReportedBatchesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS reported_import_batches (
		batch_id BIGSERIAL PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT to_char(NOW(), 'YYYY-MM-DD HH24:MI:SS'),
		filename TEXT,
		row_count INTEGER NOT NULL DEFAULT 0
	)`
}

func (d *PostgresDialect) CreateRulesTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS fp_rules (
		id BIGSERIAL PRIMARY KEY,
		created_at TEXT NOT NULL DEFAULT to_char(NOW(), 'YYYY-MM-DD HH24:MI:SS'),
		created_by TEXT NOT NULL,
		scope TEXT NOT NULL,
		month_key TEXT,
		field_label TEXT NOT NULL,
		field_column TEXT NOT NULL,
		match_type TEXT NOT NULL,
		value TEXT NOT NULL,
		case_insensitive BOOLEAN NOT NULL DEFAULT FALSE,
		comment TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`
}

func (d *PostgresDialect) CreateRuleRunsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS fp_rule_runs (
		id BIGSERIAL PRIMARY KEY,
		rule_id BIGINT NOT NULL REFERENCES fp_rules(id) ON DELETE CASCADE,
		run_at TEXT NOT NULL DEFAULT to_char(NOW(), 'YYYY-MM-DD HH24:MI:SS'),
		affected_count INTEGER NOT NULL DEFAULT 0
	)`
}

func (d *PostgresDialect) CreateIndexSQL(indexName, tableName, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, tableName, column)
}
