package model

import (
	"fmt"
	"time"
)

// Month is a calendar month in canonical "YYYY-MM" form. The canonical form
// sorts correctly as text, which the stores rely on for ordering.
type Month string

// ParseMonth accepts "YYYY-MM" or "YYYY-MM-DD" (day discarded).
func ParseMonth(s string) (Month, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return Month(t.Format("2006-01")), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Month(t.Format("2006-01")), nil
	}
	return "", fmt.Errorf("invalid month %q: want YYYY-MM", s)
}

func (m Month) String() string { return string(m) }

// Valid reports whether m is in canonical form.
func (m Month) Valid() bool {
	_, err := time.Parse("2006-01", string(m))
	return err == nil
}

// Time returns the first instant of the month.
func (m Month) Time() time.Time {
	t, _ := time.Parse("2006-01", string(m))
	return t
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	return Month(m.Time().AddDate(0, n, 0).Format("2006-01"))
}

// Format renders the month with a time layout, e.g. "January 2006".
func (m Month) Format(layout string) string {
	return m.Time().Format(layout)
}
