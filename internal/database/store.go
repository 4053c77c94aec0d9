package database

import (
	"context"

	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// Store is the persistence surface the engines program against. *DB
// implements it for every supported backend; tests may substitute fakes.
type Store interface {
	Dialect() Dialect
	Migrate(ctx context.Context) error
	Close() error

	ImportEvents(ctx context.Context, filename string, month model.Month, events []*model.Event, replaceMonth bool) (*ImportResult, error)
	ImportReported(ctx context.Context, filename string, rows []*model.ReportedEvent) (*ImportResult, error)
	ListBatches(ctx context.Context, limit int) ([]*model.ImportBatch, error)
	DeleteBatch(ctx context.Context, batchID int64) (deletedEvents, deletedBatches int64, err error)
	ListReportedBatches(ctx context.Context, limit int) ([]*model.ReportedImportBatch, error)
	DeleteReportedBatch(ctx context.Context, batchID int64) (deletedEvents, deletedBatches int64, err error)

	ApplyRule(ctx context.Context, r *model.Rule, where string, whereArgs []any) (ruleID, affected int64, err error)
	MarkFalsePositives(ctx context.Context, where string, whereArgs []any, reason, comment, setBy string) (int64, error)
	ListRules(ctx context.Context, activeOnly bool) ([]*model.Rule, error)
	ListRuleRuns(ctx context.Context, ruleID int64) ([]*model.RuleRun, error)
	DeactivateRule(ctx context.Context, ruleID int64) (int64, error)

	SelectMaps(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	SelectCount(ctx context.Context, query string, args ...any) (int64, error)
	PayloadKeys(ctx context.Context, months []model.Month) ([]string, error)
}

var _ Store = (*DB)(nil)
