package postgres

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	createTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id UUID PRIMARY KEY,
    collection TEXT NOT NULL,
    data JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`
	insertSQL = `INSERT INTO documents (id, collection, data, created_at) VALUES ($1, $2, $3, $4)`
)

// CreatePool creates a pgx connection pool. The importer writes from a
// single goroutine, so one connection is enough.
func CreatePool(ctx context.Context, cred credential.Database) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString(cred))
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 1
	cfg.MinConns = 1
	return pgxpool.NewWithConfig(ctx, cfg)
}

func connString(cred credential.Database) string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cred.Host, fmtPort(cred.Port)),
		Path:   "/" + cred.Database,
	}
	if cred.Password != "" {
		u.User = url.UserPassword(cred.User, cred.Password)
	} else if cred.User != "" {
		u.User = url.User(cred.User)
	}
	return u.String()
}

func fmtPort(p int) string {
	if p <= 0 {
		return "5432"
	}
	return strconv.Itoa(p)
}

// InitSchema creates the documents table if not exists.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, createTableSQL)
	return err
}

// InsertDocument stores fields as JSONB under a new UUID.
func InsertDocument(ctx context.Context, pool *pgxpool.Pool, id, collection string, fields map[string]any, now time.Time) error {
	data, err := json.Marshal(store.ResolveTimestamps(fields, now))
	if err != nil {
		return errors.Wrap(err, "encode document")
	}
	_, err = pool.Exec(ctx, insertSQL, id, collection, data, now)
	return err
}

// buildDeleteSQL renders a DELETE scoped to collection whose JSONB fields
// equal match by text.
func buildDeleteSQL(collection string, match map[string]any) (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM documents WHERE collection = $1")
	args := []any{collection}
	for _, k := range store.SortedKeys(match) {
		args = append(args, k, store.Text(match[k]))
		b.WriteString(" AND data->>$" + strconv.Itoa(len(args)-1) + " = $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

// DeleteWhere removes matching documents and returns the affected row count.
func DeleteWhere(ctx context.Context, pool *pgxpool.Pool, collection string, match map[string]any) (int, error) {
	sql, args := buildDeleteSQL(collection, match)
	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
