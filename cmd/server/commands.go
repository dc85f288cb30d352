package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/zipkiosk/internal/app"
	"github.com/charlesng35/zipkiosk/internal/entries"
	"github.com/charlesng35/zipkiosk/internal/operator"
	"github.com/charlesng35/zipkiosk/pkg/logger"
)

func newExportCommand(flags *rootFlags) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [--out file|-]",
		Short: "Write every stored entry as CSV.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEntryStore(cmd.Context(), flags, func(cfg *app.Config, store *entries.Store) error {
				exporter, err := operator.NewExporter(store, operator.WithPrefix(cfg.Kiosk.ExportPrefix))
				if err != nil {
					return err
				}
				export, err := exporter.Export(cmd.Context())
				if err != nil {
					return err
				}

				target := strings.TrimSpace(out)
				if target == "" {
					target = export.Filename
				}
				if target == "-" {
					_, err = cmd.OutOrStdout().Write(export.Body)
					return err
				}
				if err := os.WriteFile(target, export.Body, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d entries to %s\n", export.Rows, target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default: suggested export filename)")
	return cmd
}

func newCountCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored entries.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEntryStore(cmd.Context(), flags, func(_ *app.Config, store *entries.Store) error {
				count, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), operator.CountMessage(count)+"\n")
				return err
			})
		},
	}
}

// withEntryStore opens the configured database for a one-shot command.
func withEntryStore(ctx context.Context, flags *rootFlags, fn func(*app.Config, *entries.Store) error) error {
	cfg, err := loadApplicationConfig(flags.config)
	if err != nil {
		return err
	}
	// Keep stdout clean for piped exports.
	cfg.Server.LogLevel = "warn"
	if err := app.ConfigureLogging(cfg.Server); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	store, err := openEntryStore(ctx, db)
	if err != nil {
		log.Error("entry store unavailable", zap.Error(err))
		return err
	}
	return fn(cfg, store)
}
