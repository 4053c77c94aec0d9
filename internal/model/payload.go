package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RawPayload is the full-fidelity capture of one imported source row:
// every source column name mapped to its value as string, number, bool, or
// nil. It is written once at import time and never modified afterwards.
//
// The payload is stored as JSON text (SQLite) or JSONB (PostgreSQL), so it
// implements driver.Valuer and sql.Scanner.
type RawPayload map[string]any

// Value marshals the payload for storage. A nil payload stores SQL NULL.
func (p RawPayload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("marshaling raw payload: %w", err)
	}
	return string(b), nil
}

// Scan unmarshals a stored payload. NULL scans to a nil map.
func (p *RawPayload) Scan(src any) error {
	if src == nil {
		*p = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RawPayload", src)
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("unmarshaling raw payload: %w", err)
	}
	*p = m
	return nil
}

// Text returns the value for key rendered as a string, with ok=false when
// the key is absent or null.
func (p RawPayload) Text(key string) (string, bool) {
	v, present := p[key]
	if !present || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case float64:
		// JSON numbers decode as float64; render integers without a decimal.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)), true
		}
		return fmt.Sprintf("%g", t), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}
