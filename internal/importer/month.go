package importer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jkrishnancp/phishing-report-app/internal/model"
)

var monthNumbers = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

const monthNamePattern = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t)?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var (
	numericMonthRe = regexp.MustCompile(`(20\d{2})[-_ ]?(0[1-9]|1[0-2])`)
	nameYearRe     = regexp.MustCompile(`(` + monthNamePattern + `)\s*[-_ ]*\s*(20\d{2})`)
	yearNameRe     = regexp.MustCompile(`(20\d{2})\s*[-_ ]*\s*(` + monthNamePattern + `)`)
)

// MonthFromFilename infers the report month from names like
// "phishing_2026-03.csv", "March 2026 results.csv", or "2026 mar.csv".
// Returns false when no month can be read from the name.
func MonthFromFilename(filename string) (model.Month, bool) {
	if filename == "" {
		return "", false
	}
	name := strings.ToLower(filename)

	if m := numericMonthRe.FindStringSubmatch(name); m != nil {
		return model.Month(m[1] + "-" + m[2]), true
	}
	if m := nameYearRe.FindStringSubmatch(name); m != nil {
		return makeMonth(m[2], monthNumbers[m[1]]), true
	}
	if m := yearNameRe.FindStringSubmatch(name); m != nil {
		return makeMonth(m[1], monthNumbers[m[2]]), true
	}
	return "", false
}

func makeMonth(year string, month int) model.Month {
	y, _ := strconv.Atoi(year)
	return model.Month(fmt.Sprintf("%04d-%02d", y, month))
}
