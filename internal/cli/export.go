package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corvid-labs/legalscout/internal/export"
	"github.com/corvid-labs/legalscout/internal/legallog"
	"github.com/corvid-labs/legalscout/internal/store"
)

var exportNDJSON bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Project stored results to a schema-strict tabular file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := buildConfig()
		if err != nil {
			return newExitError(ExitConfigError, "config: %v", err)
		}

		runID := uuid.NewString()
		recorder, err := legallog.NewDevelopmentRecorder(runID)
		if err != nil {
			return newExitError(ExitConfigError, "logger: %v", err)
		}
		defer recorder.Sync()

		queueStore, err := store.Open(cfg.StoreDSN(), recorder)
		if err != nil {
			return newExitError(ExitStorageUnavailable, "store: %v", err)
		}
		defer queueStore.Close()

		exporter := export.NewExporter(recorder, queueStore, cfg)
		ctx := context.Background()

		path, err := exporter.ExportCSV(ctx, runID)
		if err != nil {
			return newExitError(ExitStorageUnavailable, "export: %v", err)
		}
		fmt.Println(path)

		if exportNDJSON {
			ndjsonPath, err := exporter.ExportNDJSON(ctx, runID)
			if err != nil {
				return newExitError(ExitStorageUnavailable, "export: %v", err)
			}
			fmt.Println(ndjsonPath)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportNDJSON, "ndjson", false, "also write the record-per-line format")
}
