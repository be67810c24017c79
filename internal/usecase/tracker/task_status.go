package tracker

import (
	"context"
	"strings"

	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/ports"
)

type SetTaskStatusInput struct {
	TenantID string
	CapaID   string
	TaskID   string
	Target   lifecycle.Status
	ActorID  string
}

type SetTaskStatusResult struct {
	Task ports.CorrectiveActionTask
	NoOp bool
	// CapaClosed reports that this task change completed the CAPA's
	// outstanding work and the cascade closed it.
	CapaClosed bool
}

// SetTaskStatus moves a task through its own graph and runs the task
// cascade in the same transaction: when the last non-terminal task
// completes, the owning CAPA (and possibly its Finding) close with
// system-sourced history entries.
func (s *Service) SetTaskStatus(ctx context.Context, input SetTaskStatusInput) (SetTaskStatusResult, error) {
	if err := s.checkWiring(ctx); err != nil {
		return SetTaskStatusResult{}, err
	}
	if strings.TrimSpace(input.TenantID) == "" {
		return SetTaskStatusResult{}, errTenantRequired
	}
	if strings.TrimSpace(input.ActorID) == "" {
		return SetTaskStatusResult{}, errActorRequired
	}

	var result SetTaskStatusResult
	rec := &recorder{}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		task, err := s.repo.GetTask(txCtx, input.TenantID, input.CapaID, input.TaskID)
		if err != nil {
			return err
		}

		if task.Status == input.Target {
			result = SetTaskStatusResult{Task: task, NoOp: true}
			return nil
		}
		if err := lifecycle.ValidateTaskTransition(task.Status, input.Target); err != nil {
			return err
		}

		now := nowUTCString()
		if err := s.repo.UpdateTaskStatus(txCtx, input.TenantID, input.CapaID, input.TaskID, input.Target, now); err != nil {
			return err
		}
		task.Status = input.Target
		task.UpdatedAt = now

		closed := false
		if lifecycle.IsTerminalTaskStatus(input.Target) {
			closed, err = s.cascadeCapaFromTasksTx(txCtx, rec, input.TenantID, input.CapaID, input.ActorID)
			if err != nil {
				return err
			}
		}

		result = SetTaskStatusResult{Task: task, CapaClosed: closed}
		return nil
	}); err != nil {
		return SetTaskStatusResult{}, err
	}

	s.afterCommit(ctx, rec.entries)
	return result, nil
}
