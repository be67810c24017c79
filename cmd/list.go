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

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's findings or corrective actions",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		kindRaw, _ := cmd.Flags().GetString("kind")

		kind, err := lifecycle.ParseEntityKind(kindRaw)
		if err != nil {
			return err
		}

		switch kind {
		case lifecycle.KindCapa:
			capas, err := svc.ListCorrectiveActions(ctx, tenantID)
			if err != nil {
				logging.Error(ctx, "list corrective actions failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "list corrective actions")
			}
			items := make([]capaItem, 0, len(capas))
			for _, capa := range capas {
				items = append(items, toCapaItem(capa))
			}
			return printJSON(cmd, items)
		default:
			findings, err := svc.ListFindings(ctx, tenantID)
			if err != nil {
				logging.Error(ctx, "list findings failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "list findings")
			}
			items := make([]findingItem, 0, len(findings))
			for _, finding := range findings {
				items = append(items, toFindingItem(finding))
			}
			return printJSON(cmd, items)
		}
	}),
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("tenant", "", "Tenant identifier")
	listCmd.Flags().String("kind", "finding", "Entity kind: capa|issue")
	_ = listCmd.MarkFlagRequired("tenant")
}
