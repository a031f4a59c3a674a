// Package firestore writes import documents to Cloud Firestore.
package firestore

import (
	"context"
	"encoding/json"
	"strconv"

	"cloud.google.com/go/firestore"
	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/store"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Store wraps a Firestore client authenticated with a service account.
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// Open creates the client. projectID overrides the key's project_id when set.
func Open(ctx context.Context, sa *credential.ServiceAccount, projectID string) (*Store, error) {
	if sa == nil {
		return nil, errors.New("service account is nil")
	}
	if projectID == "" {
		projectID = sa.ProjectID
	}
	client, err := firestore.NewClient(ctx, projectID, option.WithAuthCredentialsFile(option.ServiceAccount, sa.Path))
	if err != nil {
		return nil, errors.Wrap(err, "create firestore client")
	}
	return &Store{client: client}, nil
}

// Ping lists one root collection. NewClient does not contact the server, so
// this is where a revoked or misconfigured key first fails.
func (s *Store) Ping(ctx context.Context) error {
	it := s.client.Collections(ctx)
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return errors.Wrap(err, "ping firestore")
	}
	return nil
}

// Add creates a document with a Firestore generated ID.
func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(fields))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// DeleteWhere deletes every document matching all equality filters. Values
// are compared by store.Text, so "42" matches both the string and the number.
func (s *Store) DeleteWhere(ctx context.Context, collection string, match map[string]any) (int, error) {
	clauses, rest := planWhere(match)
	q := s.client.Collection(collection).Query
	for _, c := range clauses {
		q = q.Where(c.path, c.op, c.value)
	}
	it := q.Documents(ctx)
	defer it.Stop()

	n := 0
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrap(err, "query documents")
		}
		if !matchesText(doc.Data(), rest) {
			continue
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return n, errors.Wrapf(err, "delete %s", doc.Ref.ID)
		}
		n++
	}
}

type clause struct {
	path  string
	op    string
	value any
}

// planWhere splits match into server-side clauses and filters checked on
// the returned documents. A value with one stored form becomes "==". The
// first value with several forms becomes "in"; later ones, and any that
// could be null, are checked locally against their text form.
func planWhere(match map[string]any) ([]clause, map[string]string) {
	var (
		clauses []clause
		rest    = make(map[string]string)
		usedIn  bool
	)
	for _, k := range store.SortedKeys(match) {
		vals := whereValues(match[k])
		switch {
		case len(vals) == 1:
			clauses = append(clauses, clause{k, "==", vals[0]})
		case !usedIn && !hasNil(vals):
			clauses = append(clauses, clause{k, "in", vals})
			usedIn = true
		default:
			rest[k] = store.Text(match[k])
		}
	}
	return clauses, rest
}

// whereValues returns every Firestore value whose text form equals
// store.Text(v). A string that is also a canonical JSON literal matches
// the number, bool or null it spells as well.
func whereValues(v any) []any {
	s, ok := v.(string)
	if !ok {
		return []any{convert(v)}
	}
	switch s {
	case "true":
		return []any{s, true}
	case "false":
		return []any{s, false}
	case "null":
		return []any{s, nil}
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return []any{s, i}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(f, 'f', -1, 64) == s {
		return []any{s, f}
	}
	return []any{s}
}

func hasNil(vals []any) bool {
	for _, v := range vals {
		if v == nil {
			return true
		}
	}
	return false
}

func matchesText(data map[string]any, want map[string]string) bool {
	for k, t := range want {
		v, ok := data[k]
		if !ok || store.Text(v) != t {
			return false
		}
	}
	return true
}

func (s *Store) Close() error {
	return s.client.Close()
}

func toFirestore(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if store.IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = convert(v)
	}
	return out
}

// convert turns decoded JSON into values Firestore stores with their
// natural type. json.Number would otherwise be written as a string.
func convert(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = convert(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = convert(e)
		}
		return out
	}
	return v
}
