package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"capatrack/internal/bootstrap"
	"capatrack/internal/bootstrap/logging"
	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/errs"
	"capatrack/internal/usecase/tracker"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the status history ledger for an entity",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		kindRaw, _ := cmd.Flags().GetString("kind")
		entityID, _ := cmd.Flags().GetString("id")

		kind, err := lifecycle.ParseEntityKind(kindRaw)
		if err != nil {
			return err
		}

		entries, err := svc.ListHistory(ctx, tenantID, kind, entityID)
		if err != nil {
			logging.Error(ctx, "list history failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list history")
		}

		items := make([]historyItem, 0, len(entries))
		for _, entry := range entries {
			items = append(items, toHistoryItem(entry))
		}
		return printJSON(cmd, items)
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("tenant", "", "Tenant identifier")
	historyCmd.Flags().String("kind", "", "Entity kind: capa|issue")
	historyCmd.Flags().String("id", "", "Entity identifier")
	_ = historyCmd.MarkFlagRequired("tenant")
	_ = historyCmd.MarkFlagRequired("kind")
	_ = historyCmd.MarkFlagRequired("id")
}
