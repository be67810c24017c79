package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"capatrack/internal/bootstrap"
	"capatrack/internal/bootstrap/logging"
	"capatrack/internal/errs"
	"capatrack/internal/usecase/tracker"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a tenant's full status history as CSV",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		outPath, _ := cmd.Flags().GetString("out")

		var writer io.Writer = cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return errs.Wrapf(err, "create export file %s", outPath)
			}
			defer func() {
				if err := f.Close(); err != nil {
					logging.Warn(ctx, "close export file failed", slog.Any("err", errs.Loggable(err)))
				}
			}()
			writer = f
		}

		if err := svc.ExportHistoryCSV(ctx, tenantID, writer); err != nil {
			logging.Error(ctx, "export history failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "export history")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("tenant", "", "Tenant identifier")
	exportCmd.Flags().String("out", "", "Output file path (default: stdout)")
	_ = exportCmd.MarkFlagRequired("tenant")
}
