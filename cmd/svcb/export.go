package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/svcbackup/internal/config"
	"github.com/alfredjeanlab/svcbackup/internal/export"
	"github.com/alfredjeanlab/svcbackup/internal/store/postgres"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a JSONL snapshot of every service",
	Long: `Write a JSONL snapshot of every service with its owning order.
By default the snapshot goes to stdout; --s3 uploads it to the bucket
configured by SVCB_EXPORT_S3_* instead.`,
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: localCommand,
	RunE: func(cmd *cobra.Command, args []string) error {
		toS3, _ := cmd.Flags().GetBool("s3")
		out, _ := cmd.Flags().GetString("out")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		var dest export.Destination
		switch {
		case toS3:
			if cfg.ExportS3Bucket == "" {
				return fmt.Errorf("--s3 requires SVCB_EXPORT_S3_BUCKET")
			}
			dest, err = export.NewS3Destination(ctx, cfg.ExportS3Bucket, cfg.ExportS3Key, cfg.ExportS3Region, cfg.ExportS3Endpoint)
			if err != nil {
				return err
			}
		case out != "" && out != "-":
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			dest = export.WriterDestination{W: f}
		default:
			dest = export.WriterDestination{W: os.Stdout}
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		return export.NewScheduler(store, []export.Destination{dest}, 0, logger).RunOnce(ctx)
	},
}

func init() {
	exportCmd.Flags().Bool("s3", false, "upload to the configured S3 bucket")
	exportCmd.Flags().StringP("out", "o", "-", "output file (- for stdout)")
}
