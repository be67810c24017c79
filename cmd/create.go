package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"capatrack/internal/bootstrap"
	"capatrack/internal/bootstrap/logging"
	"capatrack/internal/errs"
	"capatrack/internal/usecase/tracker"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create findings and corrective actions",
}

var createFindingCmd = &cobra.Command{
	Use:   "finding",
	Short: "Create a finding",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		actorID, _ := cmd.Flags().GetString("actor")

		finding, err := svc.CreateFinding(ctx, tracker.CreateFindingInput{
			TenantID:    tenantID,
			Title:       title,
			Description: description,
			ActorID:     actorID,
		})
		if err != nil {
			logging.Error(ctx, "create finding failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create finding")
		}

		return printJSON(cmd, toFindingItem(finding))
	}),
}

var createCapaCmd = &cobra.Command{
	Use:   "capa",
	Short: "Create a corrective action, optionally linked to a finding",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		findingID, _ := cmd.Flags().GetString("finding")
		actorID, _ := cmd.Flags().GetString("actor")

		capa, err := svc.CreateCorrectiveAction(ctx, tracker.CreateCorrectiveActionInput{
			TenantID:    tenantID,
			Title:       title,
			Description: description,
			FindingID:   findingID,
			ActorID:     actorID,
		})
		if err != nil {
			logging.Error(ctx, "create corrective action failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create corrective action")
		}

		return printJSON(cmd, toCapaItem(capa))
	}),
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.AddCommand(createFindingCmd)
	createCmd.AddCommand(createCapaCmd)

	createFindingCmd.Flags().String("tenant", "", "Tenant identifier")
	createFindingCmd.Flags().String("title", "", "Finding title")
	createFindingCmd.Flags().String("description", "", "Finding description")
	createFindingCmd.Flags().String("actor", "", "Acting user identifier")
	_ = createFindingCmd.MarkFlagRequired("tenant")
	_ = createFindingCmd.MarkFlagRequired("title")
	_ = createFindingCmd.MarkFlagRequired("actor")

	createCapaCmd.Flags().String("tenant", "", "Tenant identifier")
	createCapaCmd.Flags().String("title", "", "Corrective action title")
	createCapaCmd.Flags().String("description", "", "Corrective action description")
	createCapaCmd.Flags().String("finding", "", "Owning finding identifier (optional)")
	createCapaCmd.Flags().String("actor", "", "Acting user identifier")
	_ = createCapaCmd.MarkFlagRequired("tenant")
	_ = createCapaCmd.MarkFlagRequired("title")
	_ = createCapaCmd.MarkFlagRequired("actor")
}
