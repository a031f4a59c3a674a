// Package store defines the document store an import run writes to.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Store is implemented by firestore, postgres, clickhouse and Memory.
// A store is used from one goroutine at a time.
type Store interface {
	// Ping verifies the store accepts the credential it was opened with.
	Ping(ctx context.Context) error
	// Add inserts fields as a new document and returns its generated ID.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
	// DeleteWhere removes documents whose top-level fields equal every
	// entry of match, compared by Text, and returns how many it removed.
	// Match values are scalars; object and array fields never match.
	DeleteWhere(ctx context.Context, collection string, match map[string]any) (int, error)
	Close() error
}

type serverTimestamp struct{}

// ServerTimestamp, used as a top-level field value, is replaced by the
// store's notion of the current time when the document is written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// ResolveTimestamps returns fields with every ServerTimestamp replaced by now.
// fields itself is not modified.
func ResolveTimestamps(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			v = now
		}
		out[k] = v
	}
	return out
}

// Text is the comparison form of a field value: strings as-is, everything
// else as its JSON literal. This matches what PostgreSQL's ->> operator
// yields for a JSONB field.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// SortedKeys returns the keys of m in order, so generated queries are stable.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
