package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/catalog-importer/internal/config"
	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/store"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	defaultHost     = "clickhouse"
	defaultPort     = 9000
	defaultDatabase = "default"
	defaultUser     = "default"
)

// Store keeps documents as JSON strings in a MergeTree table.
type Store struct {
	conn driver.Conn
	db   string
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects. CLICKHOUSE_HOST overrides an empty host in cred.
func Open(cred credential.Database) (*Store, error) {
	cred = cred.WithDefaults(config.ClickHouseHost(defaultHost), defaultPort, defaultDatabase, defaultUser)
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	conn, err := Connect(cred)
	if err != nil {
		return nil, errors.Wrap(err, "open clickhouse")
	}
	return &Store{conn: conn, db: cred.Database, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Ping checks the connection and credential, then makes sure the table exists.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.conn.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping clickhouse")
	}
	return errors.Wrap(InitSchema(ctx, s.conn, s.db), "init schema")
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New()
	if err := InsertDocument(ctx, s.conn, s.db, id, collection, fields, s.now()); err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection string, match map[string]any) (int, error) {
	return DeleteWhere(ctx, s.conn, s.db, collection, match)
}

// Close closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
