package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/catalog-importer/internal/config"
	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/store"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearImporterEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"IMPORTER_STORE", "IMPORTER_INPUT", "IMPORTER_CREDENTIALS", "IMPORTER_PROJECT_ID",
		"IMPORTER_COLLECTION", "IMPORTER_LABEL_FIELD", "IMPORTER_TIMESTAMP_FIELD",
		"IMPORTER_REPLACE_BY", "IMPORTER_RATE", "IMPORTER_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUploadDryRun(t *testing.T) {
	clearImporterEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "brochures.json", `[{"title":"A"},{"title":"B"}]`)

	out, err := execute(t, "upload", "--dry-run", "-i", input, "--progress-interval", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Starting upload to collection: brochures")
	assert.Contains(t, out, "- Title: A")
	assert.Contains(t, out, "- Title: B")
	assert.Contains(t, out, "Finished uploading. Total brochures uploaded: 2")
}

func TestUploadNonObjectElement(t *testing.T) {
	clearImporterEnv(t)
	input := writeFile(t, t.TempDir(), "mixed.json", `[{"title":"A"}, 5, {"title":"B"}]`)

	out, err := execute(t, "upload", "--dry-run", "-i", input, "--progress-interval", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3 records are not JSON objects")
	assert.Contains(t, out, "Error uploading brochure <untitled #2>")
	assert.Contains(t, out, "Total brochures uploaded: 2")
}

// rejectingStore fails Ping the way a store does for a revoked credential.
type rejectingStore struct {
	adds   int
	closed bool
}

func (s *rejectingStore) Ping(context.Context) error {
	return errors.New("rpc error: code = Unauthenticated")
}

func (s *rejectingStore) Add(context.Context, string, map[string]any) (string, error) {
	s.adds++
	return "x", nil
}

func (s *rejectingStore) DeleteWhere(context.Context, string, map[string]any) (int, error) {
	return 0, nil
}

func (s *rejectingStore) Close() error {
	s.closed = true
	return nil
}

func TestUploadStoreRejectsCredential(t *testing.T) {
	clearImporterEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "brochures.json", `[{"title":"A"},{"title":"B"}]`)
	key := writeFile(t, dir, "key.json", `{}`)

	rs := &rejectingStore{}
	orig := openRemote
	openRemote = func(context.Context, config.Config) (store.Store, error) { return rs, nil }
	t.Cleanup(func() { openRemote = orig })

	out, err := execute(t, "upload", "-c", key, "-i", input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store rejected connection")
	assert.Zero(t, rs.adds)
	assert.True(t, rs.closed)
	assert.NotContains(t, out, "Starting upload")
}

func TestUploadEmptyInput(t *testing.T) {
	clearImporterEnv(t)
	input := writeFile(t, t.TempDir(), "empty.json", `[]`)
	_, err := execute(t, "upload", "--store", "memory", "-i", input)
	require.NoError(t, err)
}

func TestUploadInitErrors(t *testing.T) {
	clearImporterEnv(t)
	dir := t.TempDir()
	input := writeFile(t, dir, "brochures.json", `[{"title":"A"}]`)

	t.Run("invalid_credential", func(t *testing.T) {
		key := writeFile(t, dir, "key.json", `{"type":"authorized_user"}`)
		_, err := execute(t, "upload", "-c", key, "-i", input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, credential.ErrNotServiceAccount), "got %v", err)
	})

	t.Run("missing_credential_file", func(t *testing.T) {
		_, err := execute(t, "upload", "-c", filepath.Join(dir, "nope.json"), "-i", input)
		require.Error(t, err)
		assert.True(t, errors.Is(err, credential.ErrCredentialUnreadable), "got %v", err)
	})

	t.Run("malformed_input", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.json", `{"title":"A"}`)
		_, err := execute(t, "upload", "--dry-run", "-i", bad)
		require.Error(t, err)
	})

	t.Run("missing_input_flag", func(t *testing.T) {
		_, err := execute(t, "upload", "--dry-run")
		require.Error(t, err)
		assert.True(t, errors.Is(err, config.ErrInputMissing), "got %v", err)
	})

	t.Run("bad_log_level", func(t *testing.T) {
		_, err := execute(t, "upload", "--dry-run", "-i", input, "--log-level", "loud")
		require.Error(t, err)
	})
}

func TestLoadConfigLayers(t *testing.T) {
	clearImporterEnv(t)
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "importer.yaml", "store: postgres\ncollection: fromfile\nrate: 3\n")
	t.Setenv("IMPORTER_COLLECTION", "fromenv")

	cmd := newUploadCmd()
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("store", "", "")
	cmd.Flags().String("collection", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{
		"--config", cfgPath,
		"--store", "clickhouse",
		"--replace-by", "marketName,language",
		"--progress-interval", "1s",
	}))

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, config.StoreClickHouse, cfg.Store, "flag beats file")
	assert.Equal(t, "fromenv", cfg.Collection, "env beats file")
	assert.Equal(t, 3.0, cfg.Rate, "file beats default")
	assert.Equal(t, []string{"marketName", "language"}, cfg.ReplaceBy)
	assert.Equal(t, time.Second, cfg.ProgressInterval)
	assert.Equal(t, config.DefaultLabelField, cfg.LabelField)
}

func TestParseWhere(t *testing.T) {
	m, err := parseWhere([]string{"marketName=lidl", "validity=Valid from 01.01.2026 - a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"marketName": "lidl", "validity": "Valid from 01.01.2026 - a=b"}, m)

	_, err = parseWhere(nil)
	assert.Error(t, err)
	_, err = parseWhere([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseWhere([]string{"=x"})
	assert.Error(t, err)
}

func TestClearRequiresWhere(t *testing.T) {
	clearImporterEnv(t)
	_, err := execute(t, "clear", "--store", "memory")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--where")

	_, err = execute(t, "clear", "--store", "memory", "--where", "marketName=lidl")
	require.NoError(t, err)
}

func TestSample(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sample.json")
	_, err := execute(t, "sample", "-n", "3", "--seed", "1", "-o", out)
	require.NoError(t, err)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Weekly Catalog")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "importer dev")
}

func TestMondayOf(t *testing.T) {
	thu := time.Date(2026, 10, 15, 14, 30, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.Local), mondayOf(thu))
	sun := time.Date(2026, 10, 18, 9, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 10, 12, 0, 0, 0, 0, time.Local), mondayOf(sun))
}
