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

var allowedCmd = &cobra.Command{
	Use:   "allowed",
	Short: "List the allowed next statuses for an entity",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		kindRaw, _ := cmd.Flags().GetString("kind")
		entityID, _ := cmd.Flags().GetString("id")

		kind, err := lifecycle.ParseEntityKind(kindRaw)
		if err != nil {
			return err
		}

		var current lifecycle.Status
		var allowed []lifecycle.Status
		switch kind {
		case lifecycle.KindCapa:
			detail, err := svc.GetCapaDetail(ctx, tenantID, entityID)
			if err != nil {
				return errs.Wrap(err, "get corrective action")
			}
			current = detail.Capa.Status
			allowed = detail.AllowedNext
		default:
			detail, err := svc.GetFindingDetail(ctx, tenantID, entityID)
			if err != nil {
				return errs.Wrap(err, "get finding")
			}
			current = detail.Finding.Status
			allowed = detail.AllowedNext
		}

		return printJSON(cmd, struct {
			Kind    lifecycle.EntityKind `json:"kind"`
			ID      string               `json:"id"`
			Current lifecycle.Status     `json:"current"`
			Allowed []lifecycle.Status   `json:"allowed"`
		}{Kind: kind, ID: entityID, Current: current, Allowed: allowed})
	}),
}

func init() {
	rootCmd.AddCommand(allowedCmd)

	allowedCmd.Flags().String("tenant", "", "Tenant identifier")
	allowedCmd.Flags().String("kind", "", "Entity kind: capa|issue")
	allowedCmd.Flags().String("id", "", "Entity identifier")
	_ = allowedCmd.MarkFlagRequired("tenant")
	_ = allowedCmd.MarkFlagRequired("kind")
	_ = allowedCmd.MarkFlagRequired("id")
}
