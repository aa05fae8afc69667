// Package remote translates between in-memory records and the snake_case rows
// stored in the remote tables.
package remote

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one record in the remote column shape.
type Row map[string]any

const dateLayout = "2006-01-02"

// DecodeError reports a remote row that is missing a required column or
// carries a value of the wrong type.
type DecodeError struct {
	Table  string
	Column string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s.%s: %s", e.Table, e.Column, e.Reason)
}

type decoder struct {
	table string
	row   Row
	err   error
}

func newDecoder(table string, row Row) *decoder {
	return &decoder{table: table, row: row}
}

func (d *decoder) fail(column, reason string) {
	if d.err == nil {
		d.err = &DecodeError{Table: d.table, Column: column, Reason: reason}
	}
}

func (d *decoder) lookup(column string, required bool) (any, bool) {
	v, ok := d.row[column]
	if !ok || v == nil {
		if required {
			d.fail(column, "missing")
		}
		return nil, false
	}
	return v, true
}

func (d *decoder) str(column string, required bool) string {
	v, ok := d.lookup(column, required)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		d.fail(column, fmt.Sprintf("expected string, got %T", v))
		return ""
	}
}

func (d *decoder) number(column string) float64 {
	v, ok := d.lookup(column, true)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		return d.parseNumber(column, t)
	case []byte:
		return d.parseNumber(column, string(t))
	default:
		d.fail(column, fmt.Sprintf("expected number, got %T", v))
		return 0
	}
}

func (d *decoder) parseNumber(column, raw string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		d.fail(column, fmt.Sprintf("invalid number %q", raw))
		return 0
	}
	return f
}

func (d *decoder) date(column string, required bool) time.Time {
	return d.timeValue(column, required, dateLayout, time.RFC3339Nano)
}

func (d *decoder) timestamp(column string) time.Time {
	return d.timeValue(column, true, time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", dateLayout)
}

func (d *decoder) timeValue(column string, required bool, layouts ...string) time.Time {
	v, ok := d.lookup(column, required)
	if !ok {
		return time.Time{}
	}
	var raw string
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		raw = t
	case []byte:
		raw = string(t)
	default:
		d.fail(column, fmt.Sprintf("expected date, got %T", v))
		return time.Time{}
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC()
		}
	}
	d.fail(column, fmt.Sprintf("invalid date %q", raw))
	return time.Time{}
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Columns returns the row's column names except id, in a stable order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for k := range r {
		if k != "id" {
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)
	return cols
}
