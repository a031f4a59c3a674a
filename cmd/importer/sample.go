package main

import (
	"time"

	"github.com/catalog-importer/internal/brochuregen"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write synthetic brochure records for seeding a development store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			count, _ := f.GetInt("count")
			seed, _ := f.GetInt64("seed")
			out, _ := f.GetString("out")
			level, _ := f.GetString("log-level")
			if count < 0 {
				return errors.New("--count must be >= 0")
			}
			if !f.Changed("seed") {
				seed = time.Now().UnixNano()
			}
			logger, err := newLogger(cmd.OutOrStdout(), level)
			if err != nil {
				return err
			}
			if err := brochuregen.WriteFile(out, brochuregen.Generate(count, seed, mondayOf(time.Now()))); err != nil {
				return err
			}
			logger.Infof("Wrote %d brochures to %s (seed %d)", count, out, seed)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntP("count", "n", 10, "number of brochures")
	f.Int64("seed", 0, "random seed (default: current time)")
	f.StringP("out", "o", "brochures.json", "output file")
	return cmd
}

func mondayOf(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}
