package main

import (
	"context"

	"github.com/catalog-importer/internal/clickhouse"
	"github.com/catalog-importer/internal/config"
	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/firestore"
	"github.com/catalog-importer/internal/importer"
	"github.com/catalog-importer/internal/postgres"
	"github.com/catalog-importer/internal/progress"
	"github.com/catalog-importer/internal/record"
	"github.com/catalog-importer/internal/store"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload every record in the input file as a new document",
		Long: `upload inserts each record of the input JSON array as an independent document
with a store generated ID. A record that fails is logged and skipped; the
command still exits 0. It exits non-zero only when the input or credential
cannot be used, or when interrupted.`,
		Example: `  importer upload -c serviceAccountKey.json -i assets/data/brochures.json
  importer upload --store postgres -c db.json -i brochures.json --replace-by marketName,language`,
		RunE: runUpload,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "", "JSON file holding an array of records")
	f.String("label-field", config.DefaultLabelField, "record field used to name a record in the log")
	f.Bool("strict-label", false, "reject records without a label instead of uploading them")
	f.String("timestamp-field", "", "set this field to the server time on every document")
	f.StringSlice("replace-by", nil, "natural key fields; existing documents with the same key are deleted first")
	f.Float64("rate", 0, "max inserts per second (0 = unlimited)")
	f.Int("burst", 1, "rate limiter burst")
	f.Duration("progress-interval", config.Default().ProgressInterval, "progress report interval (0 disables)")
	f.Bool("dry-run", false, "upload to an in-memory store instead")
	return cmd
}

func runUpload(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config")
	}
	logger, err := newLogger(cmd.OutOrStdout(), cfg.LogLevel)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	recs, err := record.LoadFile(cfg.Input, cfg.LabelField)
	if err != nil {
		return err
	}
	flagged, invalid := countFlagged(recs)
	if invalid > 0 {
		logger.Warnf("%d of %d records are not JSON objects and will fail", invalid, len(recs))
	}
	if n := flagged - invalid; n > 0 {
		logger.Warnf("%d of %d records have no %q field", n, len(recs), cfg.LabelField)
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var counter progress.Counter
	if cfg.ProgressInterval > 0 && len(recs) > 0 {
		progCtx, stop := context.WithCancel(ctx)
		defer stop()
		go progress.Run(progCtx, logger, &counter, len(recs), cfg.ProgressInterval)
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)
	}

	summary := importer.New(st, importer.Options{
		Collection:     cfg.Collection,
		StrictLabel:    cfg.StrictLabel,
		TimestampField: cfg.TimestampField,
		ReplaceBy:      cfg.ReplaceBy,
		Limiter:        limiter,
		Progress:       &counter,
		Logger:         logger,
	}).Run(ctx, recs)

	if summary.Failed > 0 {
		logger.Warnf("%d of %d records failed", summary.Failed, len(recs))
	}
	if summary.Skipped > 0 {
		return errors.Errorf("upload interrupted: %d records not attempted", summary.Skipped)
	}
	return nil
}

func countFlagged(recs []record.Record) (flagged, invalid int) {
	for _, r := range recs {
		if r.Flagged {
			flagged++
		}
		if r.Err != nil {
			invalid++
		}
	}
	return flagged, invalid
}

// openStore loads the credential, opens the configured store and pings it.
// Any error here is fatal: no record has been attempted yet.
func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (store.Store, error) {
	if cfg.DryRun || cfg.Store == config.StoreMemory {
		logger.Info("Using in-memory store; nothing will be written remotely")
		return store.NewMemory(), nil
	}

	st, err := openRemote(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "store rejected connection")
	}
	logger.Infof("Connected to %s", cfg.Store)
	return st, nil
}

// openRemote opens the configured remote store without contacting it.
// Tests replace it.
var openRemote = func(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreFirestore:
		return openFirestore(ctx, cfg)
	case config.StorePostgres:
		return openPostgres(ctx, cfg)
	case config.StoreClickHouse:
		return openClickHouse(cfg)
	}
	return nil, errors.Wrapf(config.ErrUnknownStore, "%q", cfg.Store)
}

func openFirestore(ctx context.Context, cfg config.Config) (store.Store, error) {
	sa, err := credential.LoadServiceAccount(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	s, err := firestore.Open(ctx, sa, cfg.ProjectID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openPostgres(ctx context.Context, cfg config.Config) (store.Store, error) {
	db, err := credential.LoadDatabase(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	s, err := postgres.Open(ctx, *db)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openClickHouse(cfg config.Config) (store.Store, error) {
	db, err := credential.LoadDatabase(cfg.Credentials)
	if err != nil {
		return nil, err
	}
	s, err := clickhouse.Open(*db)
	if err != nil {
		return nil, err
	}
	return s, nil
}
