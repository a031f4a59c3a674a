package main

import (
	"encoding/json"

	"github.com/catalog-importer/internal/credential"
	"github.com/catalog-importer/internal/pages"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages DIR",
		Short: "Upload brochure page images to Cloud Storage and print their gs:// paths",
		Example: `  importer pages -c serviceAccountKey.json --bucket catalogapp.firebasestorage.app \
    --market lidl --language de ./temp_images`,
		Args: cobra.ExactArgs(1),
		RunE: runPages,
	}
	f := cmd.Flags()
	f.String("bucket", "", "Cloud Storage bucket (required)")
	f.String("market", "", "market name, e.g. lidl (required)")
	f.String("language", "", "catalog language code, e.g. de (required)")
	f.String("catalog", "", "catalog ID (default: a new UUID)")
	_ = cmd.MarkFlagRequired("bucket")
	_ = cmd.MarkFlagRequired("market")
	_ = cmd.MarkFlagRequired("language")
	return cmd
}

func runPages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Credentials == "" {
		return errors.New("--credentials is required")
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	bucket, _ := f.GetString("bucket")
	market, _ := f.GetString("market")
	language, _ := f.GetString("language")
	catalogID, _ := f.GetString("catalog")
	if catalogID == "" {
		catalogID = uuid.NewString()
	}

	files, err := pages.ListImages(args[0])
	if err != nil {
		return err
	}
	sa, err := credential.LoadServiceAccount(cfg.Credentials)
	if err != nil {
		return err
	}
	up, err := pages.NewUploader(cmd.Context(), sa, bucket, logger)
	if err != nil {
		return err
	}
	defer up.Close()

	logger.Infof("Uploading %d pages for %s (%s) as catalog %s", len(files), market, language, catalogID)
	paths, err := up.Upload(cmd.Context(), market, language, catalogID, files)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		CatalogID string   `json:"catalogId"`
		Thumbnail string   `json:"thumbnail"`
		Pages     []string `json:"pages"`
	}{catalogID, paths[0], paths})
}
