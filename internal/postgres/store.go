package postgres

import (
	"context"
	"time"

	"github.com/catalog-importer/internal/config"
	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const (
	defaultHost     = "localhost"
	defaultPort     = 5432
	defaultDatabase = "postgres"
	defaultUser     = "postgres"
)

// Store keeps each collection's documents as JSONB rows in one table.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open creates the pool. POSTGRES_HOST overrides an empty host in cred.
func Open(ctx context.Context, cred credential.Database) (*Store, error) {
	cred = cred.WithDefaults(config.PostgresHost(defaultHost), defaultPort, defaultDatabase, defaultUser)
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	pool, err := CreatePool(ctx, cred)
	if err != nil {
		return nil, errors.Wrap(err, "create postgres pool")
	}
	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Ping checks the connection and credential, then makes sure the table exists.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return errors.Wrap(err, "ping postgres")
	}
	return errors.Wrap(InitSchema(ctx, s.pool), "init schema")
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := InsertDocument(ctx, s.pool, id, collection, fields, s.now()); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) DeleteWhere(ctx context.Context, collection string, match map[string]any) (int, error) {
	return DeleteWhere(ctx, s.pool, collection, match)
}

// Close closes the pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}
