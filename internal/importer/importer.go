// Package importer loads campaign result exports and reported-ticket
// exports into the store. Source files vary in header naming and
// timestamp formats; everything is normalized on the way in, and the
// untouched source row is preserved as the event payload.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jkrishnancp/phishing-report-app/internal/database"
	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

// Importer parses source files and writes them to the store.
type Importer struct {
	store database.Store
}

// New returns an importer backed by the given store.
func New(store database.Store) *Importer {
	return &Importer{store: store}
}

// pick returns the index of the first header that matches one of the
// candidate names, tolerating stray whitespace. Returns -1 when none
// match.
func pick(header []string, names ...string) int {
	trimmed := make([]string, len(header))
	for i, h := range header {
		trimmed[i] = strings.TrimSpace(h)
	}
	for _, n := range names {
		for i, h := range header {
			if h == n {
				return i
			}
			if trimmed[i] == strings.TrimSpace(n) {
				return i
			}
		}
	}
	return -1
}

// cell returns the trimmed value at index i, or "" when the column is
// absent or the row is short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// optional returns the cell as a nullable string, "" becoming nil.
func optional(row []string, i int) *string {
	s := cell(row, i)
	if s == "" {
		return nil
	}
	return &s
}

// toInt parses a count that may arrive as "3", "3.0", or garbage.
// Anything unparseable is 0.
func toInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// timestampLayouts covers the formats seen across source exports.
var timestampLayouts = []string{
	model.TimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 3:04:05 PM",
	"01/02/2006 3:04 PM",
	"01/02/2006",
	"2006/01/02 15:04:05",
}

// normalizeTimestamp parses a source timestamp and renders it in the
// canonical storage layout. Unparseable values become nil rather than
// failing the import.
func normalizeTimestamp(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			out := t.Format(model.TimeLayout)
			return &out
		}
	}
	return nil
}

// normEmail lowercases and trims an address, "" becoming nil.
func normEmail(s string) *string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return &s
}

// campaignColumns holds the resolved header indexes for one campaign file.
type campaignColumns struct {
	email, first, last, dept        int
	mgr, mgrEmail, exec, execEmail  int
	campGUID, userGUID, title, tmpl int
	sent, opened, clicked, reported int
	primary, multi, clickCount      int
	ip, whois                       int
}

func resolveCampaignColumns(header []string) campaignColumns {
	return campaignColumns{
		email:      pick(header, "Email", "Email Address", "email", "email_address"),
		first:      pick(header, "First Name", "first_name"),
		last:       pick(header, "Last Name", "last_name"),
		dept:       pick(header, "Department", "department"),
		mgr:        pick(header, "Manager Name", "manager_name"),
		mgrEmail:   pick(header, "Manager Email", "manager_email"),
		exec:       pick(header, "Executive Name", "executive_name"),
		execEmail:  pick(header, "Executive Email", "executive_email"),
		campGUID:   pick(header, "Campaign Guid", "campaign_guid", "Campaign GUID"),
		userGUID:   pick(header, "Users Guid", "users_guid", "User GUID"),
		title:      pick(header, "Campaign Title", "campaign_title"),
		tmpl:       pick(header, "Phishing Template", "Template", "phishing_template"),
		sent:       pick(header, "Date Sent", "date_sent"),
		opened:     pick(header, "Date Opened", "date_opened"),
		clicked:    pick(header, "Date Clicked", "date_clicked"),
		reported:   pick(header, "Date Reported", "date_reported"),
		primary:    pick(header, "Primary Clicked", "primary_clicked"),
		multi:      pick(header, "Multi Click Event", "multi_click_event"),
		clickCount: pick(header, "Click Count", "click_count"),
		ip:         pick(header, "Clicked IP", "Source IP", "clicked_ip"),
		whois:      pick(header, "Whois Organization", "Whois Org", "whois_org"),
	}
}

// rawPayload captures the full source row keyed by header, empty cells
// becoming explicit nulls.
func rawPayload(header, row []string) model.RawPayload {
	raw := make(model.RawPayload, len(header))
	for i, h := range header {
		v := cell(row, i)
		if v == "" {
			raw[strings.TrimSpace(h)] = nil
		} else {
			raw[strings.TrimSpace(h)] = v
		}
	}
	return raw
}

// rowToEvent maps one campaign row into an event. An explicit click
// count wins; otherwise a count is synthesized from the primary and
// multi-click columns so clicked rows never read as zero.
func rowToEvent(header, row []string, cols campaignColumns, month model.Month) *model.Event {
	primary := toInt(cell(row, cols.primary))
	multi := toInt(cell(row, cols.multi))
	clickCount := toInt(cell(row, cols.clickCount))
	if clickCount == 0 && (primary > 0 || multi > 0) {
		clickCount = max(primary, 0) + max(multi, 0)
	}

	return &model.Event{
		MonthKey:        month,
		EmailAddress:    optional(row, cols.email),
		EmailNorm:       normEmail(cell(row, cols.email)),
		FirstName:       optional(row, cols.first),
		LastName:        optional(row, cols.last),
		Department:      optional(row, cols.dept),
		ManagerName:     optional(row, cols.mgr),
		ManagerEmail:    optional(row, cols.mgrEmail),
		ExecName:        optional(row, cols.exec),
		ExecEmail:       optional(row, cols.execEmail),
		CampaignGUID:    optional(row, cols.campGUID),
		UsersGUID:       optional(row, cols.userGUID),
		CampaignTitle:   optional(row, cols.title),
		Template:        optional(row, cols.tmpl),
		DateSent:        normalizeTimestamp(cell(row, cols.sent)),
		DateOpened:      normalizeTimestamp(cell(row, cols.opened)),
		DateClicked:     normalizeTimestamp(cell(row, cols.clicked)),
		DateReported:    normalizeTimestamp(cell(row, cols.reported)),
		PrimaryClicked:  primary,
		MultiClickEvent: multi,
		ClickCount:      clickCount,
		ClickedIP:       optional(row, cols.ip),
		WhoisOrg:        optional(row, cols.whois),
		Raw:             rawPayload(header, row),
	}
}

// ImportCampaignCSV parses a campaign result export and inserts it as one
// batch. When replaceMonth is set, existing events for the month are
// replaced in the same transaction.
func (im *Importer) ImportCampaignCSV(ctx context.Context, r io.Reader, filename string, month model.Month, replaceMonth bool) (*database.ImportResult, error) {
	if !month.Valid() {
		return nil, fmt.Errorf("invalid month %q", month)
	}

	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := resolveCampaignColumns(header)

	var events []*model.Event
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(events)+1, err)
		}
		events = append(events, rowToEvent(header, row, cols, month))
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("%s: no data rows", filename)
	}

	for _, e := range events {
		e.Filename = filename
	}
	return im.store.ImportEvents(ctx, filename, month, events, replaceMonth)
}
