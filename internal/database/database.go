package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// DB manages all store operations for one backend. All SQL that differs
// between backends is generated by the Dialect; everything else is shared.
type DB struct {
	dialect Dialect
	conn    *sql.DB
	dsn     string
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying *sql.DB for advanced usage.
func (db *DB) Conn() *sql.DB { return db.conn }

// Dialect returns the SQL dialect for this backend, for query building.
func (db *DB) Dialect() Dialect { return db.dialect }

// insertSQL builds a parameterized INSERT for the given columns.
func (db *DB) insertSQL(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = db.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(ph, ", "))
}

var eventInsertColumns = []string{
	"month_key", "batch_id", "filename",
	"email_address", "email_norm", "first_name", "last_name", "department",
	"manager_name", "manager_email", "executive_name", "executive_email",
	"campaign_guid", "users_guid", "campaign_title", "phishing_template",
	"date_sent", "date_opened", "date_clicked", "date_reported",
	"primary_clicked", "multi_click_event", "click_count",
	"clicked_ip", "whois_org", "raw_json",
}

func eventInsertArgs(batchID int64, e *model.Event) []any {
	return []any{
		string(e.MonthKey), batchID, e.Filename,
		e.EmailAddress, e.EmailNorm, e.FirstName, e.LastName, e.Department,
		e.ManagerName, e.ManagerEmail, e.ExecName, e.ExecEmail,
		e.CampaignGUID, e.UsersGUID, e.CampaignTitle, e.Template,
		e.DateSent, e.DateOpened, e.DateClicked, e.DateReported,
		e.PrimaryClicked, e.MultiClickEvent, e.ClickCount,
		e.ClickedIP, e.WhoisOrg, e.Raw,
	}
}

// ImportResult reports the outcome of one import operation.
type ImportResult struct {
	BatchID  int64 `json:"batch_id"`
	Inserted int   `json:"inserted"`
	Replaced int64 `json:"replaced"`
}

// ImportEvents records a new import batch and inserts its events in a single
// transaction. When replaceMonth is set, existing rows for the target month
// are deleted first, so a failure partway leaves the month untouched.
func (db *DB) ImportEvents(ctx context.Context, filename string, month model.Month, events []*model.Event, replaceMonth bool) (*ImportResult, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var batchID int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO import_batches (filename, month_key, row_count) VALUES ("+
			db.dialect.Placeholder(1)+", "+db.dialect.Placeholder(2)+", 0) RETURNING batch_id",
		filename, string(month),
	).Scan(&batchID)
	if err != nil {
		return nil, fmt.Errorf("creating import batch: %w", err)
	}

	result := &ImportResult{BatchID: batchID}

	if replaceMonth {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM phish_events WHERE month_key = "+db.dialect.Placeholder(1),
			string(month))
		if err != nil {
			return nil, fmt.Errorf("replacing month %s: %w", month, err)
		}
		result.Replaced, _ = res.RowsAffected()
	}

	stmt, err := tx.PrepareContext(ctx, db.insertSQL("phish_events", eventInsertColumns))
	if err != nil {
		return nil, fmt.Errorf("preparing event insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		if _, err := stmt.ExecContext(ctx, eventInsertArgs(batchID, e)...); err != nil {
			return nil, fmt.Errorf("inserting event %d: %w", i+1, err)
		}
		result.Inserted++
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE import_batches SET row_count = "+db.dialect.Placeholder(1)+
			" WHERE batch_id = "+db.dialect.Placeholder(2),
		result.Inserted, batchID)
	if err != nil {
		return nil, fmt.Errorf("updating batch row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}
	return result, nil
}

var reportedInsertColumns = []string{
	"month_key", "batch_id", "filename",
	"issue_type", "issue_key", "issue_id", "summary",
	"created_at", "risk_accepted",
	"assignee", "assignee_id", "reporter", "reporter_id",
	"priority", "status", "due_date",
	"remediation_steps", "reason_for_closing", "raw_json",
}

// ImportReported records a reported-ticket import batch and inserts its rows
// in a single transaction.
func (db *DB) ImportReported(ctx context.Context, filename string, rows []*model.ReportedEvent) (*ImportResult, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var batchID int64
	err = tx.QueryRowContext(ctx,
		"INSERT INTO reported_import_batches (filename, row_count) VALUES ("+
			db.dialect.Placeholder(1)+", 0) RETURNING batch_id",
		filename,
	).Scan(&batchID)
	if err != nil {
		return nil, fmt.Errorf("creating reported import batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, db.insertSQL("reported_events", reportedInsertColumns))
	if err != nil {
		return nil, fmt.Errorf("preparing reported insert: %w", err)
	}
	defer stmt.Close()

	result := &ImportResult{BatchID: batchID}
	for i, r := range rows {
		_, err := stmt.ExecContext(ctx,
			string(r.MonthKey), batchID, filename,
			r.IssueType, r.IssueKey, r.IssueID, r.Summary,
			r.CreatedAt, r.RiskAccepted,
			r.Assignee, r.AssigneeID, r.Reporter, r.ReporterID,
			r.Priority, r.Status, r.DueDate,
			r.RemediationSteps, r.ReasonForClosing, r.Raw,
		)
		if err != nil {
			return nil, fmt.Errorf("inserting reported row %d: %w", i+1, err)
		}
		result.Inserted++
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE reported_import_batches SET row_count = "+db.dialect.Placeholder(1)+
			" WHERE batch_id = "+db.dialect.Placeholder(2),
		result.Inserted, batchID)
	if err != nil {
		return nil, fmt.Errorf("updating reported batch row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reported import: %w", err)
	}
	return result, nil
}

// ListBatches returns import batches, newest first.
func (db *DB) ListBatches(ctx context.Context, limit int) ([]*model.ImportBatch, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT batch_id, created_at, COALESCE(filename, ''), month_key, row_count "+
			"FROM import_batches ORDER BY created_at DESC, batch_id DESC LIMIT "+
			db.dialect.Placeholder(1), limit)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []*model.ImportBatch
	for rows.Next() {
		b := &model.ImportBatch{}
		var month string
		if err := rows.Scan(&b.BatchID, &b.CreatedAt, &b.Filename, &month, &b.RowCount); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}
		b.MonthKey = model.Month(month)
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// DeleteBatch removes a batch and every event it owns, in one transaction.
// Deleting an unknown batch id affects zero rows and is not an error.
func (db *DB) DeleteBatch(ctx context.Context, batchID int64) (deletedEvents, deletedBatches int64, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM phish_events WHERE batch_id = "+db.dialect.Placeholder(1), batchID)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting batch events: %w", err)
	}
	deletedEvents, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		"DELETE FROM import_batches WHERE batch_id = "+db.dialect.Placeholder(1), batchID)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting batch: %w", err)
	}
	deletedBatches, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing batch delete: %w", err)
	}
	return deletedEvents, deletedBatches, nil
}

// ListReportedBatches returns reported-ticket import batches, newest first.
func (db *DB) ListReportedBatches(ctx context.Context, limit int) ([]*model.ReportedImportBatch, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT batch_id, created_at, COALESCE(filename, ''), row_count "+
			"FROM reported_import_batches ORDER BY created_at DESC, batch_id DESC LIMIT "+
			db.dialect.Placeholder(1), limit)
	if err != nil {
		return nil, fmt.Errorf("listing reported batches: %w", err)
	}
	defer rows.Close()

	var batches []*model.ReportedImportBatch
	for rows.Next() {
		b := &model.ReportedImportBatch{}
		if err := rows.Scan(&b.BatchID, &b.CreatedAt, &b.Filename, &b.RowCount); err != nil {
			return nil, fmt.Errorf("scanning reported batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// DeleteReportedBatch removes a reported batch and its rows in one transaction.
func (db *DB) DeleteReportedBatch(ctx context.Context, batchID int64) (deletedEvents, deletedBatches int64, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM reported_events WHERE batch_id = "+db.dialect.Placeholder(1), batchID)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting reported events: %w", err)
	}
	deletedEvents, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		"DELETE FROM reported_import_batches WHERE batch_id = "+db.dialect.Placeholder(1), batchID)
	if err != nil {
		return 0, 0, fmt.Errorf("deleting reported batch: %w", err)
	}
	deletedBatches, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing reported batch delete: %w", err)
	}
	return deletedEvents, deletedBatches, nil
}

// FalsePositiveSetArgs is the number of placeholders occupied by the SET
// clause of the false-positive update. WHERE clauses passed to ApplyRule and
// MarkFalsePositives must number their placeholders starting at
// FalsePositiveSetArgs+1.
const FalsePositiveSetArgs = 3

func (db *DB) fpUpdateSQL(where string) string {
	return "UPDATE phish_events SET is_false_positive = TRUE" +
		", false_positive_reason = " + db.dialect.Placeholder(1) +
		", false_positive_comment = " + db.dialect.Placeholder(2) +
		", false_positive_set_by = " + db.dialect.Placeholder(3) +
		", false_positive_set_at = " + db.dialect.NowSQL() +
		" WHERE " + where
}

// MarkFalsePositives flags every event matching the WHERE clause. The update
// is one statement and therefore one atomic unit.
func (db *DB) MarkFalsePositives(ctx context.Context, where string, whereArgs []any, reason, comment, setBy string) (int64, error) {
	args := append([]any{reason, comment, setBy}, whereArgs...)
	res, err := db.conn.ExecContext(ctx, db.fpUpdateSQL(where), args...)
	if err != nil {
		return 0, fmt.Errorf("marking false positives: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// ApplyRule persists the rule as active, flags every matching event, and
// appends one run audit row, all in a single transaction. The composed
// reason embeds the new rule id. Returns the rule id and affected count.
func (db *DB) ApplyRule(ctx context.Context, r *model.Rule, where string, whereArgs []any) (ruleID, affected int64, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		db.insertSQL("fp_rules", []string{
			"created_by", "scope", "month_key", "field_label", "field_column",
			"match_type", "value", "case_insensitive", "comment", "is_active",
		})+" RETURNING id",
		r.CreatedBy, r.Scope, r.MonthKey, r.FieldLabel, r.FieldColumn,
		r.MatchType, r.Value, r.CaseInsensitive, r.Comment, true,
	).Scan(&ruleID)
	if err != nil {
		return 0, 0, fmt.Errorf("inserting rule: %w", err)
	}

	reason := fmt.Sprintf("Rule %d: %s %s '%s'", ruleID, r.FieldLabel, r.MatchType, r.Value)
	args := append([]any{reason, r.Comment, r.CreatedBy}, whereArgs...)
	res, err := tx.ExecContext(ctx, db.fpUpdateSQL(where), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("applying rule %d: %w", ruleID, err)
	}
	affected, _ = res.RowsAffected()

	_, err = tx.ExecContext(ctx,
		db.insertSQL("fp_rule_runs", []string{"rule_id", "affected_count"}),
		ruleID, affected)
	if err != nil {
		return 0, 0, fmt.Errorf("recording rule run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing rule apply: %w", err)
	}
	return ruleID, affected, nil
}

// ListRules returns rules, newest first.
func (db *DB) ListRules(ctx context.Context, activeOnly bool) ([]*model.Rule, error) {
	q := "SELECT id, created_at, created_by, scope, month_key, field_label, field_column, " +
		"match_type, value, case_insensitive, comment, is_active FROM fp_rules"
	if activeOnly {
		q += " WHERE is_active = TRUE"
	}
	q += " ORDER BY created_at DESC, id DESC"

	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var rules []*model.Rule
	for rows.Next() {
		r := &model.Rule{}
		var month sql.NullString
		err := rows.Scan(&r.ID, &r.CreatedAt, &r.CreatedBy, &r.Scope, &month,
			&r.FieldLabel, &r.FieldColumn, &r.MatchType, &r.Value,
			&r.CaseInsensitive, &r.Comment, &r.IsActive)
		if err != nil {
			return nil, fmt.Errorf("scanning rule: %w", err)
		}
		if month.Valid {
			m := model.Month(month.String)
			r.MonthKey = &m
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ListRuleRuns returns the audit trail for one rule, newest first.
func (db *DB) ListRuleRuns(ctx context.Context, ruleID int64) ([]*model.RuleRun, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, rule_id, run_at, affected_count FROM fp_rule_runs WHERE rule_id = "+
			db.dialect.Placeholder(1)+" ORDER BY run_at DESC, id DESC", ruleID)
	if err != nil {
		return nil, fmt.Errorf("listing rule runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.RuleRun
	for rows.Next() {
		r := &model.RuleRun{}
		if err := rows.Scan(&r.ID, &r.RuleID, &r.RunAt, &r.AffectedCount); err != nil {
			return nil, fmt.Errorf("scanning rule run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeactivateRule soft-deletes a rule by flipping is_active. Events the rule
// already flagged keep their false-positive disposition.
func (db *DB) DeactivateRule(ctx context.Context, ruleID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE fp_rules SET is_active = FALSE WHERE id = "+db.dialect.Placeholder(1), ruleID)
	if err != nil {
		return 0, fmt.Errorf("deactivating rule %d: %w", ruleID, err)
	}
	updated, _ := res.RowsAffected()
	return updated, nil
}

// SelectMaps runs a SELECT and returns each row as a column-keyed map.
// []byte values are converted to string so results JSON-encode cleanly.
func (db *DB) SelectMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				m[c] = string(b)
			} else {
				m[c] = vals[i]
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SelectCount runs a single-value COUNT query.
func (db *DB) SelectCount(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows: %w", err)
	}
	return count, nil
}

// PayloadKeys returns the distinct raw-payload keys across all events,
// optionally restricted to a set of months. An empty store yields nil.
func (db *DB) PayloadKeys(ctx context.Context, months []model.Month) ([]string, error) {
	var clause string
	var args []any
	if len(months) > 0 {
		ph := make([]string, len(months))
		for i, m := range months {
			ph[i] = db.dialect.Placeholder(i + 1)
			args = append(args, string(m))
		}
		clause = "month_key IN (" + strings.Join(ph, ", ") + ")"
	}

	rows, err := db.conn.QueryContext(ctx, db.dialect.PayloadKeysSQL(clause), args...)
	if err != nil {
		return nil, fmt.Errorf("listing payload keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k sql.NullString
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning payload key: %w", err)
		}
		if k.Valid && k.String != "" {
			keys = append(keys, k.String)
		}
	}
	return keys, rows.Err()
}
