package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// marshalAliases converts aliases to JSON TEXT for storage.
// A nil slice is stored as "[]" so the column never holds NULL.
func marshalAliases(aliases []string) (string, error) {
	if len(aliases) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(aliases)
	if err != nil {
		return "", fmt.Errorf("marshal aliases: %w", err)
	}
	return string(data), nil
}

// unmarshalAliases parses JSON TEXT to aliases. Empty lists come back nil.
func unmarshalAliases(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var aliases []string
	if err := json.Unmarshal([]byte(data), &aliases); err != nil {
		return nil, fmt.Errorf("unmarshal aliases: %w", err)
	}
	return aliases, nil
}

// toNanos converts a timestamp to its stored form.
func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

// fromNanos converts a stored timestamp back to UTC time.
func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// nullableNanos converts an optional timestamp to a nullable column value.
func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

// optionalTime converts a nullable column value back to an optional timestamp.
func optionalTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// canonicalTime strips the monotonic reading and location so a value
// returned from a write compares equal to the same row read back.
func canonicalTime(t time.Time) time.Time {
	return fromNanos(toNanos(t))
}
