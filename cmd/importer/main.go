// Brochure importer: seeds a document store from a JSON file of brochure
// records. Records are written one at a time in file order; a failed record
// is logged and skipped.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/catalog-importer/internal/config"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "importer",
		Short: "Seed a document store with brochure records",
		Long: `importer reads brochure records from a local JSON array and writes each one
as a new document to Cloud Firestore, PostgreSQL or ClickHouse.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "YAML config file")
	pf.String("log-level", config.DefaultLogLevel, "debug, info, warn or error")
	pf.String("store", config.DefaultStore, "firestore, postgres, clickhouse or memory")
	pf.StringP("credentials", "c", "", "service account key (firestore) or database credential file")
	pf.String("project", "", "Google Cloud project ID (defaults to the key's project_id)")
	pf.String("collection", config.DefaultCollection, "target collection")

	rootCmd.AddCommand(
		newUploadCmd(),
		newClearCmd(),
		newPagesCmd(),
		newSampleCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version info",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "importer %s (%s, %s)\n", version, commit, buildDate)
			},
		},
	)
	return rootCmd
}

// loadConfig layers defaults, the --config file, IMPORTER_* env and flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd.Flags(), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags into cfg. Flags a command does not
// define are ignored.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	set := func(name string, apply func()) {
		if err == nil && fs.Lookup(name) != nil && fs.Changed(name) {
			apply()
		}
	}
	str := func(name string, dst *string) {
		set(name, func() { *dst, err = fs.GetString(name) })
	}

	str("store", &cfg.Store)
	str("credentials", &cfg.Credentials)
	str("project", &cfg.ProjectID)
	str("collection", &cfg.Collection)
	str("log-level", &cfg.LogLevel)
	str("input", &cfg.Input)
	str("label-field", &cfg.LabelField)
	str("timestamp-field", &cfg.TimestampField)
	set("strict-label", func() { cfg.StrictLabel, err = fs.GetBool("strict-label") })
	set("dry-run", func() { cfg.DryRun, err = fs.GetBool("dry-run") })
	set("replace-by", func() { cfg.ReplaceBy, err = fs.GetStringSlice("replace-by") })
	set("rate", func() { cfg.Rate, err = fs.GetFloat64("rate") })
	set("burst", func() { cfg.Burst, err = fs.GetInt("burst") })
	set("progress-interval", func() { cfg.ProgressInterval, err = fs.GetDuration("progress-interval") })
	return errors.Wrap(err, "read flags")
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
	}), nil
}
