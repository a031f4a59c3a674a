package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clear",
		Short:   "Delete documents matching every --where filter",
		Example: `  importer clear -c serviceAccountKey.json --where marketName=lidl --where language=de`,
		RunE:    runClear,
	}
	cmd.Flags().StringArray("where", nil, "field=value filter (repeatable, at least one)")
	return cmd
}

func runClear(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateConnection(); err != nil {
		return errors.Wrap(err, "config")
	}
	where, _ := cmd.Flags().GetStringArray("where")
	match, err := parseWhere(where)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.OutOrStdout(), cfg.LogLevel)
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.DeleteWhere(cmd.Context(), cfg.Collection, match)
	if err != nil {
		return errors.Wrapf(err, "clear %s", cfg.Collection)
	}
	logger.Infof("Deleted %d documents from %s", n, cfg.Collection)
	return nil
}

// parseWhere turns field=value pairs into an equality match. Values are
// compared as text, so numbers and booleans match their JSON form.
func parseWhere(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, errors.New("at least one --where filter is required")
	}
	match := make(map[string]any, len(pairs))
	for _, p := range pairs {
		field, value, ok := strings.Cut(p, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, errors.Errorf("invalid --where %q, want field=value", p)
		}
		match[field] = value
	}
	return match, nil
}
