package database

import (
	"context"
	"fmt"
)

// A migration is one versioned, ordered schema change. Migrations are applied
// exactly once, recorded in schema_version, and never re-run: schema drift is
// handled by appending a new migration, not by conditional DDL at startup.
type migration struct {
	version    int
	name       string
	statements func(d Dialect) []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "initial schema",
		statements: func(d Dialect) []string {
			return []string{
				d.CreateEventsTableSQL(),
				d.CreateBatchesTableSQL(),
				d.CreateReportedEventsTableSQL(),
				d.CreateReportedBatchesTableSQL(),
				d.CreateRulesTableSQL(),
				d.CreateRuleRunsTableSQL(),
				d.CreateIndexSQL("ix_pe_month_key", "phish_events", "month_key"),
				d.CreateIndexSQL("ix_pe_email_norm", "phish_events", "email_norm"),
				d.CreateIndexSQL("ix_pe_clicked_ip", "phish_events", "clicked_ip"),
				d.CreateIndexSQL("ix_pe_fp", "phish_events", "is_false_positive"),
				d.CreateIndexSQL("ix_batches_month_key", "import_batches", "month_key"),
				d.CreateIndexSQL("ix_re_month_key", "reported_events", "month_key"),
				d.CreateIndexSQL("ix_re_issue_id", "reported_events", "issue_id"),
				d.CreateIndexSQL("ix_fp_rules_active", "fp_rules", "is_active"),
				d.CreateIndexSQL("ix_fp_rules_month_key", "fp_rules", "month_key"),
			}
		},
	},
}

// Migrate brings the schema up to the current version. Each pending
// migration runs in its own transaction together with its version record,
// so a failure leaves the store at the last fully applied version.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, db.dialect.CreateSchemaVersionTableSQL()); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	err := db.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		for _, stmt := range m.statements(db.dialect) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO schema_version (version, applied_at) VALUES ("+
				db.dialect.Placeholder(1)+", "+db.dialect.NowSQL()+")", m.version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}
