package model

// TimeLayout is the canonical storage format for every timestamp, regardless
// of what format the source file used.
const TimeLayout = "2006-01-02 15:04:05"

// Event represents a single phishing-simulation engagement row.
// Promoted columns are a normalized projection of the imported source row;
// the full source row survives verbatim in Raw.
type Event struct {
	ID       int64  `json:"id" db:"id"`
	MonthKey Month  `json:"month_key" db:"month_key"`
	BatchID  int64  `json:"batch_id" db:"batch_id"`
	Filename string `json:"filename" db:"filename"`

	EmailAddress *string `json:"email_address" db:"email_address"`
	EmailNorm    *string `json:"email_norm" db:"email_norm"`
	FirstName    *string `json:"first_name" db:"first_name"`
	LastName     *string `json:"last_name" db:"last_name"`
	Department   *string `json:"department" db:"department"`
	ManagerName  *string `json:"manager_name" db:"manager_name"`
	ManagerEmail *string `json:"manager_email" db:"manager_email"`
	ExecName     *string `json:"executive_name" db:"executive_name"`
	ExecEmail    *string `json:"executive_email" db:"executive_email"`

	CampaignGUID  *string `json:"campaign_guid" db:"campaign_guid"`
	UsersGUID     *string `json:"users_guid" db:"users_guid"`
	CampaignTitle *string `json:"campaign_title" db:"campaign_title"`
	Template      *string `json:"phishing_template" db:"phishing_template"`

	DateSent     *string `json:"date_sent" db:"date_sent"`
	DateOpened   *string `json:"date_opened" db:"date_opened"`
	DateClicked  *string `json:"date_clicked" db:"date_clicked"`
	DateReported *string `json:"date_reported" db:"date_reported"`

	PrimaryClicked  int64 `json:"primary_clicked" db:"primary_clicked"`
	MultiClickEvent int64 `json:"multi_click_event" db:"multi_click_event"`
	ClickCount      int64 `json:"click_count" db:"click_count"`

	ClickedIP *string `json:"clicked_ip" db:"clicked_ip"`
	WhoisOrg  *string `json:"whois_org" db:"whois_org"`

	IsFalsePositive      bool    `json:"is_false_positive" db:"is_false_positive"`
	FalsePositiveReason  *string `json:"false_positive_reason" db:"false_positive_reason"`
	FalsePositiveComment *string `json:"false_positive_comment" db:"false_positive_comment"`
	FalsePositiveSetAt   *string `json:"false_positive_set_at" db:"false_positive_set_at"`
	FalsePositiveSetBy   *string `json:"false_positive_set_by" db:"false_positive_set_by"`

	Raw RawPayload `json:"raw_payload" db:"raw_payload"`
}

// ImportBatch records one import operation over campaign data.
// Deleting a batch cascades to the events it owns.
type ImportBatch struct {
	BatchID   int64  `json:"batch_id" db:"batch_id"`
	CreatedAt string `json:"created_at" db:"created_at"`
	Filename  string `json:"filename" db:"filename"`
	MonthKey  Month  `json:"month_key" db:"month_key"`
	RowCount  int64  `json:"row_count" db:"row_count"`
}
