package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// reportedColumns holds the resolved header indexes for one ticket export.
type reportedColumns struct {
	issueType, issueKey, issueID, summary int
	created, risk                         int
	assignee, assigneeID                  int
	reporter, reporterID                  int
	priority, status, due                 int
	remediation, reason                   int
}

func resolveReportedColumns(header []string) reportedColumns {
	return reportedColumns{
		issueType:   pick(header, "Issue Type", "issue_type"),
		issueKey:    pick(header, "Issue key", "Issue Key", "issue_key"),
		issueID:     pick(header, "Issue id", "Issue Id", "issue_id"),
		summary:     pick(header, "Summary", "summary"),
		created:     pick(header, "Created", "created"),
		risk:        pick(header, "Custom field (Risk Accepted)", "Risk Accepted", "risk_accepted"),
		assignee:    pick(header, "Assignee", "assignee"),
		assigneeID:  pick(header, "Assignee Id", "Assignee ID", "assignee_id"),
		reporter:    pick(header, "Reporter", "reporter"),
		reporterID:  pick(header, "Reporter Id", "Reporter ID", "reporter_id"),
		priority:    pick(header, "Priority", "priority"),
		status:      pick(header, "Status", "status"),
		due:         pick(header, "Due date", "Due Date", "due_date"),
		remediation: pick(header, "Custom field (Remediation Steps)", "Remediation Steps", "remediation_steps"),
		reason:      pick(header, "Custom field (Reason For Closing)", "Reason For Closing", "reason_for_closing"),
	}
}

// rowToReported maps one ticket row. Every row lands in fallbackMonth;
// the parsed Created timestamp is kept for display but does not decide
// the month grouping.
func rowToReported(header, row []string, cols reportedColumns, fallbackMonth model.Month) *model.ReportedEvent {
	return &model.ReportedEvent{
		MonthKey:         fallbackMonth,
		IssueType:        optional(row, cols.issueType),
		IssueKey:         optional(row, cols.issueKey),
		IssueID:          optional(row, cols.issueID),
		Summary:          optional(row, cols.summary),
		CreatedAt:        normalizeTimestamp(cell(row, cols.created)),
		RiskAccepted:     optional(row, cols.risk),
		Assignee:         optional(row, cols.assignee),
		AssigneeID:       optional(row, cols.assigneeID),
		Reporter:         optional(row, cols.reporter),
		ReporterID:       optional(row, cols.reporterID),
		Priority:         optional(row, cols.priority),
		Status:           optional(row, cols.status),
		DueDate:          normalizeTimestamp(cell(row, cols.due)),
		RemediationSteps: optional(row, cols.remediation),
		ReasonForClosing: optional(row, cols.reason),
		Raw:              rawPayload(header, row),
	}
}

func (im *Importer) importReportedRows(ctx context.Context, header []string, rows [][]string, filename string, fallbackMonth model.Month) (*database.ImportResult, error) {
	if !fallbackMonth.Valid() {
		return nil, fmt.Errorf("invalid fallback month %q", fallbackMonth)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", filename)
	}

	cols := resolveReportedColumns(header)
	reported := make([]*model.ReportedEvent, len(rows))
	for i, row := range rows {
		reported[i] = rowToReported(header, row, cols, fallbackMonth)
		reported[i].Filename = filename
	}
	return im.store.ImportReported(ctx, filename, reported)
}

// ImportReportedCSV parses a ticket export in CSV form and inserts it as
// one batch.
func (im *Importer) ImportReportedCSV(ctx context.Context, r io.Reader, filename string, fallbackMonth model.Month) (*database.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}
	return im.importReportedRows(ctx, header, rows, filename, fallbackMonth)
}

// ImportReportedExcel parses a ticket export workbook and inserts the
// first sheet as one batch.
func (im *Importer) ImportReportedExcel(ctx context.Context, r io.Reader, filename string, fallbackMonth model.Month) (*database.ImportResult, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", filename)
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: no data rows", filename)
	}

	header := rows[0]
	data := rows[1:]
	// GetRows drops trailing empty cells; pad so column indexes hold.
	for i, row := range data {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			data[i] = padded
		}
	}
	return im.importReportedRows(ctx, header, data, filename, fallbackMonth)
}
