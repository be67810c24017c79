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

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage corrective action tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task to a corrective action",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		capaID, _ := cmd.Flags().GetString("capa")
		title, _ := cmd.Flags().GetString("title")
		actorID, _ := cmd.Flags().GetString("actor")

		task, err := svc.AddTask(ctx, tracker.AddTaskInput{
			TenantID: tenantID,
			CapaID:   capaID,
			Title:    title,
			ActorID:  actorID,
		})
		if err != nil {
			logging.Error(ctx, "add task failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add task")
		}

		return printJSON(cmd, toTaskItem(task))
	}),
}

var taskStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Move a task to a new status",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *tracker.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		tenantID, _ := cmd.Flags().GetString("tenant")
		capaID, _ := cmd.Flags().GetString("capa")
		taskID, _ := cmd.Flags().GetString("id")
		targetRaw, _ := cmd.Flags().GetString("to")
		actorID, _ := cmd.Flags().GetString("actor")

		target, err := lifecycle.ParseTaskStatus(targetRaw)
		if err != nil {
			return err
		}

		result, err := svc.SetTaskStatus(ctx, tracker.SetTaskStatusInput{
			TenantID: tenantID,
			CapaID:   capaID,
			TaskID:   taskID,
			Target:   target,
			ActorID:  actorID,
		})
		if err != nil {
			logging.Error(ctx, "set task status failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "set task status")
		}

		if result.CapaClosed {
			logging.Info(ctx, "corrective action closed by task cascade", slog.String("capa_id", capaID))
		}
		return printJSON(cmd, toTaskItem(result.Task))
	}),
}

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskStatusCmd)

	taskAddCmd.Flags().String("tenant", "", "Tenant identifier")
	taskAddCmd.Flags().String("capa", "", "Owning corrective action identifier")
	taskAddCmd.Flags().String("title", "", "Task title")
	taskAddCmd.Flags().String("actor", "", "Acting user identifier")
	_ = taskAddCmd.MarkFlagRequired("tenant")
	_ = taskAddCmd.MarkFlagRequired("capa")
	_ = taskAddCmd.MarkFlagRequired("title")
	_ = taskAddCmd.MarkFlagRequired("actor")

	taskStatusCmd.Flags().String("tenant", "", "Tenant identifier")
	taskStatusCmd.Flags().String("capa", "", "Owning corrective action identifier")
	taskStatusCmd.Flags().String("id", "", "Task identifier")
	taskStatusCmd.Flags().String("to", "", "Target task status: open|in_progress|completed|cancelled")
	taskStatusCmd.Flags().String("actor", "", "Acting user identifier")
	_ = taskStatusCmd.MarkFlagRequired("tenant")
	_ = taskStatusCmd.MarkFlagRequired("capa")
	_ = taskStatusCmd.MarkFlagRequired("id")
	_ = taskStatusCmd.MarkFlagRequired("to")
	_ = taskStatusCmd.MarkFlagRequired("actor")
}
