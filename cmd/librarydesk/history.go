// cmd/librarydesk/history.go
package main

import (
	"fmt"
	"io"
	"librarydesk/internal/server"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	exportUser string
	exportOut  string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect lending history",
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's transactions as CSV",
	Example: `  librarydesk history export --user 3f1c... --out transactions.csv
  librarydesk history export --user 3f1c... > transactions.csv`,
	RunE: runHistoryExport,
}

func init() {
	historyExportCmd.Flags().StringVar(&exportUser, "user", "", "user id to export")
	historyExportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
	_ = historyExportCmd.MarkFlagRequired("user")
	historyCmd.AddCommand(historyExportCmd)
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	defer cleanup()
	if err != nil {
		return err
	}
	svcs := server.NewServices(deps)

	var w io.Writer = cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", exportOut, err)
		}
		defer f.Close()
		w = f
	}

	if err := svcs.History.ExportCSV(ctx, exportUser, w); err != nil {
		return fmt.Errorf("failed to export history: %w", err)
	}
	if exportOut != "" {
		logger.Info("history exported", zap.String("user_id", exportUser), zap.String("file", exportOut))
	}
	return nil
}
