// Package reports produces the management views over imported events:
// the store inventory, the monthly executive summary, repeat-offender
// tracking, and quarterly statistics.
package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/filter"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// Engine runs report queries against a store.
type Engine struct {
	store database.Store
}

// NewEngine returns a report engine backed by the given store.
func NewEngine(store database.Store) *Engine {
	return &Engine{store: store}
}

// Totals are the headline dashboard counts.
type Totals struct {
	Events              int64 `json:"events"`
	ClickEvents         int64 `json:"click_events"`
	FalsePositiveEvents int64 `json:"false_positive_events"`
}

// MonthCount is one row of the monthly breakdown.
type MonthCount struct {
	MonthKey model.Month `json:"month_key"`
	Rows     int64       `json:"rows"`
}

// Inventory summarizes everything currently in the store.
type Inventory struct {
	Totals  Totals               `json:"totals"`
	Months  []MonthCount         `json:"months"`
	Batches []*model.ImportBatch `json:"batches"`
}

// Inventory reports event totals, the per-month breakdown, and recent
// import batches.
func (e *Engine) Inventory(ctx context.Context) (*Inventory, error) {
	inv := &Inventory{}

	var err error
	if inv.Totals.Events, err = e.store.SelectCount(ctx,
		"SELECT COUNT(*) FROM phish_events"); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	if inv.Totals.ClickEvents, err = e.store.SelectCount(ctx,
		"SELECT COUNT(*) FROM phish_events WHERE click_count > 0"); err != nil {
		return nil, fmt.Errorf("counting click events: %w", err)
	}
	if inv.Totals.FalsePositiveEvents, err = e.store.SelectCount(ctx,
		"SELECT COUNT(*) FROM phish_events WHERE is_false_positive = TRUE"); err != nil {
		return nil, fmt.Errorf("counting false positives: %w", err)
	}

	rows, err := e.store.SelectMaps(ctx,
		"SELECT month_key, COUNT(*) AS n FROM phish_events GROUP BY month_key ORDER BY month_key DESC")
	if err != nil {
		return nil, fmt.Errorf("monthly breakdown: %w", err)
	}
	for _, r := range rows {
		inv.Months = append(inv.Months, MonthCount{
			MonthKey: model.Month(asString(r["month_key"])),
			Rows:     asInt64(r["n"]),
		})
	}

	if inv.Batches, err = e.store.ListBatches(ctx, 500); err != nil {
		return nil, err
	}
	return inv, nil
}

// ClickedUser is one detail row of the monthly report.
type ClickedUser struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	EmailAddress  string `json:"email_address"`
	Department    string `json:"department"`
	ManagerName   string `json:"manager_name"`
	Region        string `json:"region"`
	ExecutiveName string `json:"executive_name"`
}

// ExecCount is one executive-summary row.
type ExecCount struct {
	Executive string `json:"executive"`
	Count     int64  `json:"count"`
}

// MonthlyReport is the executive summary for one month: who clicked,
// grouped under the executive they report up to.
type MonthlyReport struct {
	Month      model.Month   `json:"month"`
	Summary    []ExecCount   `json:"summary"`
	GrandTotal int64         `json:"grand_total"`
	Details    []ClickedUser `json:"details"`
}

// clickedUserSelect builds the detail-row select list. The payload
// Region key is the only dynamic column, bound through the dialect.
func (e *Engine) clickedUserSelect() (string, []any, int) {
	d := e.store.Dialect()
	return "SELECT first_name, last_name, email_address, department, manager_name, " +
		d.PayloadTextSQL(1) + " AS region, executive_name FROM phish_events", []any{d.PayloadKeyArg("Region")}, 2
}

func scanClickedUser(r map[string]any) ClickedUser {
	return ClickedUser{
		FirstName:     asString(r["first_name"]),
		LastName:      asString(r["last_name"]),
		EmailAddress:  asString(r["email_address"]),
		Department:    asString(r["department"]),
		ManagerName:   asString(r["manager_name"]),
		Region:        asString(r["region"]),
		ExecutiveName: asString(r["executive_name"]),
	}
}

// Monthly builds the executive summary for one month.
func (e *Engine) Monthly(ctx context.Context, month model.Month, excludeFalsePositives bool) (*MonthlyReport, error) {
	if !month.Valid() {
		return nil, fmt.Errorf("invalid month %q", month)
	}

	sel, args, next := e.clickedUserSelect()
	q := filter.New(e.store.Dialect(), next)
	q.MonthEquals(month).ClickedOnly()
	if excludeFalsePositives {
		q.ExcludeFalsePositives()
	}
	where, whereArgs := q.Where()

	rows, err := e.store.SelectMaps(ctx,
		sel+" WHERE "+where+" ORDER BY executive_name, last_name, first_name",
		append(args, whereArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("monthly details: %w", err)
	}

	report := &MonthlyReport{Month: month}
	counts := map[string]int64{}
	var order []string
	for _, r := range rows {
		u := scanClickedUser(r)
		report.Details = append(report.Details, u)
		if _, seen := counts[u.ExecutiveName]; !seen {
			order = append(order, u.ExecutiveName)
		}
		counts[u.ExecutiveName]++
	}
	for _, exec := range order {
		report.Summary = append(report.Summary, ExecCount{Executive: exec, Count: counts[exec]})
	}
	report.GrandTotal = int64(len(report.Details))
	return report, nil
}

// ClickRecord is one row of a repeat offender's click history.
type ClickRecord struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	EmailAddress string `json:"email_address"`
	Month        string `json:"month"`
	Template     string `json:"phishing_template"`
	DateTime     string `json:"date_time"`
	EventType    string `json:"event_type"`
	ClickedIP    string `json:"clicked_ip"`
	Country      string `json:"country"`
}

// RepeatOffenders lists users who clicked in the report month and also
// clicked at least once in the preceding eleven months.
type RepeatOffenders struct {
	Month   model.Month   `json:"month"`
	Users   []ClickedUser `json:"users"`
	History []ClickRecord `json:"history"`
}

// RepeatOffenders builds the rolling-window repeat-offender view for one
// month, with the full click history of each offender across the window.
func (e *Engine) RepeatOffenders(ctx context.Context, month model.Month, excludeFalsePositives bool) (*RepeatOffenders, error) {
	if !month.Valid() {
		return nil, fmt.Errorf("invalid month %q", month)
	}
	start := month.AddMonths(-11)

	current, err := e.clickedEmails(ctx, month, excludeFalsePositives)
	if err != nil {
		return nil, err
	}
	out := &RepeatOffenders{Month: month}
	if len(current) == 0 {
		return out, nil
	}

	d := e.store.Dialect()

	// Offender profiles: current-month clickers with prior clicks in
	// the window, excluding the report month itself.
	sel, args, next := e.clickedUserSelect()
	q := filter.New(d, next)
	q.In("email_address", current).ClickedOnly()
	if excludeFalsePositives {
		q.ExcludeFalsePositives()
	}
	where, whereArgs := q.Where()
	next = q.Next()

	rows, err := e.store.SelectMaps(ctx,
		"SELECT DISTINCT first_name, last_name, email_address, department, manager_name, region, executive_name FROM ("+
			sel+" WHERE "+where+
			" AND month_key >= "+d.Placeholder(next)+
			" AND month_key < "+d.Placeholder(next+1)+") u",
		append(append(args, whereArgs...), string(start), string(month))...)
	if err != nil {
		return nil, fmt.Errorf("repeat offenders: %w", err)
	}
	for _, r := range rows {
		out.Users = append(out.Users, scanClickedUser(r))
	}
	if len(out.Users) == 0 {
		return out, nil
	}

	offenders := make([]string, len(out.Users))
	for i, u := range out.Users {
		offenders[i] = u.EmailAddress
	}

	// Full click history across the window, report month included.
	hq := filter.New(d, 2)
	hq.In("email_address", offenders).ClickedOnly()
	if excludeFalsePositives {
		hq.ExcludeFalsePositives()
	}
	hwhere, hargs := hq.Where()
	hnext := hq.Next()

	histArgs := append([]any{d.PayloadKeyArg("Country")}, hargs...)
	histArgs = append(histArgs, string(start), string(month))
	histRows, err := e.store.SelectMaps(ctx,
		"SELECT first_name, last_name, email_address, month_key, phishing_template, date_clicked, clicked_ip, "+
			d.PayloadTextSQL(1)+" AS country FROM phish_events WHERE "+hwhere+
			" AND month_key >= "+d.Placeholder(hnext)+
			" AND month_key <= "+d.Placeholder(hnext+1)+
			" ORDER BY email_address, month_key, date_clicked",
		histArgs...)
	if err != nil {
		return nil, fmt.Errorf("click history: %w", err)
	}
	for _, r := range histRows {
		out.History = append(out.History, ClickRecord{
			FirstName:    asString(r["first_name"]),
			LastName:     asString(r["last_name"]),
			EmailAddress: asString(r["email_address"]),
			Month:        formatMonthShort(asString(r["month_key"])),
			Template:     asString(r["phishing_template"]),
			DateTime:     formatClickTime(asString(r["date_clicked"])),
			EventType:    "Click",
			ClickedIP:    asString(r["clicked_ip"]),
			Country:      asString(r["country"]),
		})
	}
	return out, nil
}

// MonthStats is one month of the quarterly report.
type MonthStats struct {
	Month           string `json:"month"`
	TotalClicks     int64  `json:"total_clicks"`
	TotalReported   int64  `json:"total_reported"`
	RepeatOffenders int64  `json:"repeat_offenders"`
}

var quarterMonths = map[string][]int{
	"Q1": {1, 2, 3},
	"Q2": {4, 5, 6},
	"Q3": {7, 8, 9},
	"Q4": {10, 11, 12},
}

// Quarterly builds per-month statistics for one quarter: distinct
// clickers, reported tickets, and repeat-offender counts.
func (e *Engine) Quarterly(ctx context.Context, year int, quarter string, excludeFalsePositives bool) ([]MonthStats, error) {
	months, ok := quarterMonths[quarter]
	if !ok {
		return nil, fmt.Errorf("invalid quarter %q", quarter)
	}

	d := e.store.Dialect()
	stats := make([]MonthStats, 0, len(months))
	for _, m := range months {
		month := model.Month(fmt.Sprintf("%04d-%02d", year, m))

		q := filter.New(d, 1)
		q.MonthEquals(month).ClickedOnly()
		if excludeFalsePositives {
			q.ExcludeFalsePositives()
		}
		where, args := q.Where()
		clicks, err := e.store.SelectCount(ctx,
			"SELECT COUNT(DISTINCT email_address) FROM phish_events WHERE "+where, args...)
		if err != nil {
			return nil, fmt.Errorf("quarterly clicks for %s: %w", month, err)
		}

		reported, err := e.store.SelectCount(ctx,
			"SELECT COUNT(*) FROM reported_events WHERE month_key = "+d.Placeholder(1),
			string(month))
		if err != nil {
			return nil, fmt.Errorf("quarterly reported for %s: %w", month, err)
		}

		repeat, err := e.repeatOffenderCount(ctx, month, excludeFalsePositives)
		if err != nil {
			return nil, err
		}

		stats = append(stats, MonthStats{
			Month:           month.Time().Format("January"),
			TotalClicks:     clicks,
			TotalReported:   reported,
			RepeatOffenders: repeat,
		})
	}
	return stats, nil
}

// clickedEmails returns the distinct addresses that clicked in a month.
func (e *Engine) clickedEmails(ctx context.Context, month model.Month, excludeFalsePositives bool) ([]string, error) {
	d := e.store.Dialect()
	q := filter.New(d, 1)
	q.MonthEquals(month).ClickedOnly()
	if excludeFalsePositives {
		q.ExcludeFalsePositives()
	}
	where, args := q.Where()

	rows, err := e.store.SelectMaps(ctx,
		"SELECT DISTINCT email_address FROM phish_events WHERE "+where+
			" AND email_address IS NOT NULL", args...)
	if err != nil {
		return nil, fmt.Errorf("clicked users for %s: %w", month, err)
	}
	emails := make([]string, 0, len(rows))
	for _, r := range rows {
		emails = append(emails, asString(r["email_address"]))
	}
	return emails, nil
}

func (e *Engine) repeatOffenderCount(ctx context.Context, month model.Month, excludeFalsePositives bool) (int64, error) {
	current, err := e.clickedEmails(ctx, month, excludeFalsePositives)
	if err != nil {
		return 0, err
	}
	if len(current) == 0 {
		return 0, nil
	}

	d := e.store.Dialect()
	start := month.AddMonths(-11)

	q := filter.New(d, 1)
	q.In("email_address", current).ClickedOnly()
	if excludeFalsePositives {
		q.ExcludeFalsePositives()
	}
	where, args := q.Where()
	next := q.Next()
	args = append(args, string(start), string(month))

	return e.store.SelectCount(ctx,
		"SELECT COUNT(DISTINCT email_address) FROM phish_events WHERE "+where+
			" AND month_key >= "+d.Placeholder(next)+
			" AND month_key < "+d.Placeholder(next+1),
		args...)
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func asInt64(v any) int64 {
	if n, ok := v.(int64); ok {
		return n
	}
	return 0
}

// formatMonthShort renders "2026-03" as "Mar-26".
func formatMonthShort(monthKey string) string {
	t, err := time.Parse("2006-01", monthKey)
	if err != nil {
		return monthKey
	}
	return t.Format("Jan-06")
}

// formatClickTime renders a stored timestamp as "03/04/26 09:15".
func formatClickTime(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(model.TimeLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("01/02/06 15:04")
}
