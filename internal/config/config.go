package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultCollection = "brochures"
	DefaultLabelField = "title"
	DefaultStore      = StoreFirestore
	DefaultLogLevel   = "info"
)

// Store backends selectable with --store.
const (
	StoreFirestore  = "firestore"
	StorePostgres   = "postgres"
	StoreClickHouse = "clickhouse"
	StoreMemory     = "memory"
)

var (
	ErrConfigFileUnreadable     = errors.New("config file is unreadable")
	ErrConfigFileUnmarshallable = errors.New("config file is unmarshallable")
	ErrUnknownStore             = errors.New("unknown store")
	ErrInputMissing             = errors.New("input file is required")
	ErrCredentialsMissing       = errors.New("credentials file is required")
	ErrCollectionMissing        = errors.New("collection is required")
	ErrLabelFieldMissing        = errors.New("labelField is required")
	ErrInvalidRate              = errors.New("rate must be >= 0")
	ErrInvalidBurst             = errors.New("burst must be >= 1 when rate is set")
)

// Config is the importer configuration. Values are layered: defaults, then
// the YAML file, then IMPORTER_* environment variables, then flags.
type Config struct {
	Store            string        `yaml:"store"`
	Input            string        `yaml:"input"`
	Credentials      string        `yaml:"credentials"`
	ProjectID        string        `yaml:"projectID,omitempty"`
	Collection       string        `yaml:"collection"`
	LabelField       string        `yaml:"labelField"`
	StrictLabel      bool          `yaml:"strictLabel"`
	TimestampField   string        `yaml:"timestampField,omitempty"`
	ReplaceBy        []string      `yaml:"replaceBy,omitempty"`
	Rate             float64       `yaml:"rate"`  // inserts per second, 0 = unlimited
	Burst            int           `yaml:"burst"` // limiter burst size
	ProgressInterval time.Duration `yaml:"progressInterval"`
	LogLevel         string        `yaml:"logLevel"`
	DryRun           bool          `yaml:"dryRun"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Store:            DefaultStore,
		Collection:       DefaultCollection,
		LabelField:       DefaultLabelField,
		Burst:            1,
		ProgressInterval: 5 * time.Second,
		LogLevel:         DefaultLogLevel,
	}
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(ErrConfigFileUnreadable, err.Error())
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(ErrConfigFileUnmarshallable, err.Error())
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any IMPORTER_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("IMPORTER_STORE"); v != "" {
		cfg.Store = v
	}
	if v := os.Getenv("IMPORTER_INPUT"); v != "" {
		cfg.Input = v
	}
	if v := os.Getenv("IMPORTER_CREDENTIALS"); v != "" {
		cfg.Credentials = v
	}
	if v := os.Getenv("IMPORTER_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := os.Getenv("IMPORTER_COLLECTION"); v != "" {
		cfg.Collection = v
	}
	if v := os.Getenv("IMPORTER_LABEL_FIELD"); v != "" {
		cfg.LabelField = v
	}
	if v := os.Getenv("IMPORTER_TIMESTAMP_FIELD"); v != "" {
		cfg.TimestampField = v
	}
	if v := os.Getenv("IMPORTER_REPLACE_BY"); v != "" {
		cfg.ReplaceBy = SplitList(v)
	}
	if v := os.Getenv("IMPORTER_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "invalid IMPORTER_RATE")
		}
		cfg.Rate = f
	}
	if v := os.Getenv("IMPORTER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

// ValidateConnection checks the settings needed to open the store.
func (c *Config) ValidateConnection() error {
	switch c.Store {
	case StoreFirestore, StorePostgres, StoreClickHouse, StoreMemory:
	default:
		return errors.Wrapf(ErrUnknownStore, "%q", c.Store)
	}
	if c.Credentials == "" && c.Store != StoreMemory && !c.DryRun {
		return ErrCredentialsMissing
	}
	if c.Collection == "" {
		return ErrCollectionMissing
	}
	return nil
}

// Validate checks that the configuration can drive an upload run.
func (c *Config) Validate() error {
	if err := c.ValidateConnection(); err != nil {
		return err
	}
	if c.Input == "" {
		return ErrInputMissing
	}
	if c.LabelField == "" {
		return ErrLabelFieldMissing
	}
	if c.Rate < 0 {
		return ErrInvalidRate
	}
	if c.Rate > 0 && c.Burst < 1 {
		return ErrInvalidBurst
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PostgresHost returns POSTGRES_HOST if set, else fallback.
func PostgresHost(fallback string) string {
	if h := os.Getenv("POSTGRES_HOST"); h != "" {
		return h
	}
	return fallback
}

// ClickHouseHost returns CLICKHOUSE_HOST if set, else fallback.
func ClickHouseHost(fallback string) string {
	if h := os.Getenv("CLICKHOUSE_HOST"); h != "" {
		return h
	}
	return fallback
}

// ClickHouseStoragePolicy for the documents table. Empty means the server default.
func ClickHouseStoragePolicy() string {
	return os.Getenv("CLICKHOUSE_STORAGE_POLICY")
}
