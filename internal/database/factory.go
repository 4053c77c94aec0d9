package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Open connects to the backend selected by driver ("sqlite" or "postgres"),
// verifies the connection, and returns a ready store. Run Migrate before
// issuing queries against a fresh database.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var dialect Dialect
	switch driver {
	case "sqlite", "sqlite3":
		dialect = &SQLiteDialect{}
	case "postgres", "postgresql", "pgx":
		dialect = &PostgresDialect{}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(dialect.DriverName(), dialect.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}

	return &DB{dialect: dialect, conn: conn, dsn: dsn}, nil
}
