package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"IMPORTER_STORE", "IMPORTER_INPUT", "IMPORTER_CREDENTIALS", "IMPORTER_PROJECT_ID",
		"IMPORTER_COLLECTION", "IMPORTER_LABEL_FIELD", "IMPORTER_TIMESTAMP_FIELD",
		"IMPORTER_REPLACE_BY", "IMPORTER_RATE", "IMPORTER_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, StoreFirestore, cfg.Store)
	assert.Equal(t, "brochures", cfg.Collection)
	assert.Equal(t, "title", cfg.LabelField)
	assert.Equal(t, 5*time.Second, cfg.ProgressInterval)
	assert.Equal(t, 1, cfg.Burst)
}

func TestLoadFile(t *testing.T) {
	t.Run("overrides_defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "importer.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
store: postgres
input: brochures.json
credentials: db.json
collection: catalogs
replaceBy: [marketName, language]
rate: 20
progressInterval: 2s
`), 0o600))

		cfg, err := LoadFile(path)
		require.NoError(t, err)
		assert.Equal(t, StorePostgres, cfg.Store)
		assert.Equal(t, "brochures.json", cfg.Input)
		assert.Equal(t, "catalogs", cfg.Collection)
		assert.Equal(t, "title", cfg.LabelField) // default kept
		assert.Equal(t, []string{"marketName", "language"}, cfg.ReplaceBy)
		assert.Equal(t, 20.0, cfg.Rate)
		assert.Equal(t, 2*time.Second, cfg.ProgressInterval)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfigFileUnreadable))
	})

	t.Run("bad_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("store: [unterminated"), 0o600))
		_, err := LoadFile(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConfigFileUnmarshallable))
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("custom_values", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IMPORTER_STORE", "clickhouse")
		t.Setenv("IMPORTER_INPUT", "in.json")
		t.Setenv("IMPORTER_REPLACE_BY", "marketName, language,")
		t.Setenv("IMPORTER_RATE", "2.5")

		cfg := Default()
		require.NoError(t, ApplyEnv(&cfg))
		assert.Equal(t, StoreClickHouse, cfg.Store)
		assert.Equal(t, "in.json", cfg.Input)
		assert.Equal(t, []string{"marketName", "language"}, cfg.ReplaceBy)
		assert.Equal(t, 2.5, cfg.Rate)
	})

	t.Run("invalid_rate", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("IMPORTER_RATE", "fast")
		cfg := Default()
		err := ApplyEnv(&cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid IMPORTER_RATE")
	})
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Input = "brochures.json"
		cfg.Credentials = "serviceAccountKey.json"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"unknown_store", func(c *Config) { c.Store = "mongo" }, ErrUnknownStore},
		{"no_input", func(c *Config) { c.Input = "" }, ErrInputMissing},
		{"no_credentials", func(c *Config) { c.Credentials = "" }, ErrCredentialsMissing},
		{"dry_run_needs_no_credentials", func(c *Config) { c.Credentials = ""; c.DryRun = true }, nil},
		{"memory_needs_no_credentials", func(c *Config) { c.Credentials = ""; c.Store = StoreMemory }, nil},
		{"no_collection", func(c *Config) { c.Collection = "" }, ErrCollectionMissing},
		{"no_label_field", func(c *Config) { c.LabelField = "" }, ErrLabelFieldMissing},
		{"negative_rate", func(c *Config) { c.Rate = -1 }, ErrInvalidRate},
		{"zero_burst", func(c *Config) { c.Rate = 5; c.Burst = 0 }, ErrInvalidBurst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestHostOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	t.Setenv("CLICKHOUSE_HOST", "")
	assert.Equal(t, "localhost", PostgresHost("localhost"))
	assert.Equal(t, "clickhouse", ClickHouseHost("clickhouse"))

	t.Setenv("POSTGRES_HOST", "pg.internal")
	t.Setenv("CLICKHOUSE_HOST", "ch.internal")
	assert.Equal(t, "pg.internal", PostgresHost("localhost"))
	assert.Equal(t, "ch.internal", ClickHouseHost("clickhouse"))
}
