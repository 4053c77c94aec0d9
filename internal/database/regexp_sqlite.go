package database

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	"modernc.org/sqlite"
)

// SQLite has no built-in regular-expression support, so the two scalar
// functions the dialect emits are registered here: regexp(pattern, subject)
// and its case-insensitive sibling regexpi(pattern, subject). PostgreSQL
// covers the same contract natively with ~ and ~*.

var regexpCache sync.Map // pattern string -> *regexp.Regexp

func compileCached(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexpCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexpCache.Store(pattern, re)
	return re, nil
}

func regexpFunc(caseInsensitive bool) func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		pattern, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("regexp: pattern must be text, got %T", args[0])
		}
		subject, ok := args[1].(string)
		if !ok {
			// NULL subject never matches.
			return int64(0), nil
		}
		if caseInsensitive {
			pattern = "(?i)" + pattern
		}
		re, err := compileCached(pattern)
		if err != nil {
			return nil, fmt.Errorf("regexp: %w", err)
		}
		if re.MatchString(subject) {
			return int64(1), nil
		}
		return int64(0), nil
	}
}

func init() {
	sqlite.MustRegisterDeterministicScalarFunction("regexp", 2, regexpFunc(false))
	sqlite.MustRegisterDeterministicScalarFunction("regexpi", 2, regexpFunc(true))
}
