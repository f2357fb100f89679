package dbx

import (
	"database/sql"
	"time"
)

// Timestamps are stored as INTEGER unix nanoseconds so ordering and range
// queries work on plain integers.

func UnixNano(t time.Time) int64 {
	return t.UnixNano()
}

func FromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// NullUnixNano maps a nil time to SQL NULL.
func NullUnixNano(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// FromNullUnixNano maps SQL NULL to a nil time.
func FromNullUnixNano(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromUnixNano(n.Int64)
	return &t
}
