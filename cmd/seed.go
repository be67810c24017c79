package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"capatrack/internal/bootstrap"
	"capatrack/internal/bootstrap/logging"
	"capatrack/internal/errs"
	"capatrack/internal/usecase/tracker"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create findings, corrective actions and tasks from a TOML seed file",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		file, _ := cmd.Flags().GetString("file")

		result, err := svc.Seed(ctx, file)
		if err != nil {
			logging.Error(ctx, "seed failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "seed from file")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "seeded findings=%d capas=%d tasks=%d\n",
			result.Findings, result.Capas, result.Tasks); err != nil {
			return errs.Wrap(err, "write seed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("file", "", "Path to the TOML seed file")
	_ = seedCmd.MarkFlagRequired("file")
}
