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

var transitionCmd = &cobra.Command{
	Use:   "transition",
	Short: "Request a status transition for a finding or corrective action",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		kindRaw, _ := cmd.Flags().GetString("kind")
		entityID, _ := cmd.Flags().GetString("id")
		targetRaw, _ := cmd.Flags().GetString("to")
		actorID, _ := cmd.Flags().GetString("actor")
		reason, _ := cmd.Flags().GetString("reason")
		overrideReason, _ := cmd.Flags().GetString("override-reason")

		kind, err := lifecycle.ParseEntityKind(kindRaw)
		if err != nil {
			return err
		}
		target, err := lifecycle.ParseStatus(kind, targetRaw)
		if err != nil {
			return err
		}

		result, err := svc.RequestTransition(ctx, tracker.RequestTransitionInput{
			TenantID:       tenantID,
			Kind:           kind,
			EntityID:       entityID,
			Target:         target,
			ActorID:        actorID,
			Reason:         reason,
			OverrideReason: overrideReason,
		})
		if err != nil {
			logging.Error(ctx, "transition failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "request transition")
		}

		if result.NoOp {
			logging.Info(ctx, "transition is a no-op", slog.String("entity_id", entityID))
		}
		switch result.Kind {
		case lifecycle.KindCapa:
			return printJSON(cmd, toCapaItem(*result.Capa))
		default:
			return printJSON(cmd, toFindingItem(*result.Finding))
		}
	}),
}

func init() {
	rootCmd.AddCommand(transitionCmd)

	transitionCmd.Flags().String("tenant", "", "Tenant identifier")
	transitionCmd.Flags().String("kind", "", "Entity kind: capa|issue")
	transitionCmd.Flags().String("id", "", "Entity identifier")
	transitionCmd.Flags().String("to", "", "Target status")
	transitionCmd.Flags().String("actor", "", "Acting user identifier")
	transitionCmd.Flags().String("reason", "", "Free-text reason recorded in history")
	transitionCmd.Flags().String("override-reason", "", "Override justification for closing an issue over unresolved corrective actions")
	_ = transitionCmd.MarkFlagRequired("tenant")
	_ = transitionCmd.MarkFlagRequired("kind")
	_ = transitionCmd.MarkFlagRequired("id")
	_ = transitionCmd.MarkFlagRequired("to")
	_ = transitionCmd.MarkFlagRequired("actor")
}
