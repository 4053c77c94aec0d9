package model

// ReportedEvent is a user-reported incident ticket. It has no relation to
// Event beyond sharing a month grouping, and is immutable after import.
type ReportedEvent struct {
	ID       int64  `json:"id" db:"id"`
	MonthKey Month  `json:"month_key" db:"month_key"`
	BatchID  int64  `json:"batch_id" db:"batch_id"`
	Filename string `json:"filename" db:"filename"`

	IssueType        *string `json:"issue_type" db:"issue_type"`
	IssueKey         *string `json:"issue_key" db:"issue_key"`
	IssueID          *string `json:"issue_id" db:"issue_id"`
	Summary          *string `json:"summary" db:"summary"`
	CreatedAt        *string `json:"created_at" db:"created_at"`
	RiskAccepted     *string `json:"risk_accepted" db:"risk_accepted"`
	Assignee         *string `json:"assignee" db:"assignee"`
	AssigneeID       *string `json:"assignee_id" db:"assignee_id"`
	Reporter         *string `json:"reporter" db:"reporter"`
	ReporterID       *string `json:"reporter_id" db:"reporter_id"`
	Priority         *string `json:"priority" db:"priority"`
	Status           *string `json:"status" db:"status"`
	DueDate          *string `json:"due_date" db:"due_date"`
	RemediationSteps *string `json:"remediation_steps" db:"remediation_steps"`
	ReasonForClosing *string `json:"reason_for_closing" db:"reason_for_closing"`

	Raw RawPayload `json:"raw_payload" db:"raw_payload"`
}

// ReportedImportBatch records one import operation over reported-ticket data.
type ReportedImportBatch struct {
	BatchID   int64  `json:"batch_id" db:"batch_id"`
	CreatedAt string `json:"created_at" db:"created_at"`
	Filename  string `json:"filename" db:"filename"`
	RowCount  int64  `json:"row_count" db:"row_count"`
}
