package database

// Dialect abstracts all database-specific SQL generation.
// Each backend (SQLite, PostgreSQL) implements this interface. The
// Placeholder, PayloadTextSQL, PayloadKeyArg, NumericCompareSQL, and
// RegexpSQL methods match the fields.Dialect interface through Go
// structural typing, so a Dialect can be handed straight to the filter
// and field-resolver packages.
type Dialect interface {
	// DriverName returns the database/sql driver name ("sqlite" or "pgx").
	DriverName() string

	// DSN returns the data source name for opening a connection.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based
	// index. SQLite: "?" (ignoring index), PostgreSQL: "$1", "$2", ...
	Placeholder(index int) string

	// NowSQL returns an expression producing the current instant rendered
	// in model.TimeLayout, so timestamps are stored uniformly as text.
	NowSQL() string

	// PayloadTextSQL returns an expression reading one raw-payload key as
	// text, with a placeholder at the given index for the key argument.
	// An absent key yields NULL.
	PayloadTextSQL(index int) string

	// PayloadKeyArg converts a payload key name into the argument the
	// PayloadTextSQL placeholder expects (a JSON path for SQLite, the
	// bare key for PostgreSQL).
	PayloadKeyArg(key string) any

	// PayloadKeysSQL returns a query producing the distinct payload keys
	// across phish_events rows, one column, optionally restricted by a
	// months clause ("" for no restriction).
	PayloadKeysSQL(monthsClause string) string

	// NumericCompareSQL returns a clause comparing a promoted numeric
	// column against the argument at the given index, with NULL on the
	// column side coerced to 0.
	NumericCompareSQL(column, cmp string, index int) string

	// RegexpSQL returns a clause matching a text expression against the
	// regular-expression argument at the given index.
	RegexpSQL(expr string, index int, caseInsensitive bool) string

	// DDL for the versioned migrations.
	CreateSchemaVersionTableSQL() string
	CreateEventsTableSQL() string
	CreateBatchesTableSQL() string
	CreateReportedEventsTableSQL() string
	CreateReportedBatchesTableSQL() string
	CreateRulesTableSQL() string
	CreateRuleRunsTableSQL() string
	CreateIndexSQL(indexName, tableName, column string) string
}
