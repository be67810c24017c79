package tracker

import (
	"context"
	"strings"

	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/ports"
)

type RequestTransitionInput struct {
	TenantID       string
	Kind           lifecycle.EntityKind
	EntityID       string
	Target         lifecycle.Status
	ActorID        string
	Reason         string
	OverrideReason string
}

// TransitionResult carries the refreshed entity after a transition.
// Exactly one of Capa/Finding is set, matching the requested kind.
// NoOp marks a same-status request: nothing was written.
type TransitionResult struct {
	Kind    lifecycle.EntityKind
	Capa    *ports.CorrectiveAction
	Finding *ports.Finding
	NoOp    bool
}

// RequestTransition validates and applies one manual status change.
// The load, validation, precondition checks, entity mutation, history
// append and any cascaded closure all run inside a single transaction;
// any failure before commit leaves stored state unchanged.
func (s *Service) RequestTransition(ctx context.Context, input RequestTransitionInput) (TransitionResult, error) {
	if err := s.checkWiring(ctx); err != nil {
		return TransitionResult{}, err
	}
	if strings.TrimSpace(input.TenantID) == "" {
		return TransitionResult{}, errTenantRequired
	}
	if strings.TrimSpace(input.ActorID) == "" {
		return TransitionResult{}, errActorRequired
	}

	switch input.Kind {
	case lifecycle.KindCapa:
		return s.transitionCapa(ctx, input)
	case lifecycle.KindIssue:
		return s.transitionFinding(ctx, input)
	default:
		return TransitionResult{}, lifecycle.ErrUnknownEntityKind
	}
}

func (s *Service) transitionCapa(ctx context.Context, input RequestTransitionInput) (TransitionResult, error) {
	var result TransitionResult
	rec := &recorder{}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		capa, err := s.repo.GetCorrectiveAction(txCtx, input.TenantID, input.EntityID)
		if err != nil {
			return err
		}

		if capa.Status == input.Target {
			result = TransitionResult{Kind: lifecycle.KindCapa, Capa: &capa, NoOp: true}
			return nil
		}
		if err := lifecycle.Validate(lifecycle.KindCapa, capa.Status, input.Target); err != nil {
			return err
		}

		if input.Target == lifecycle.StatusClosed {
			tasks, err := s.repo.ListTasks(txCtx, input.TenantID, capa.CapaID)
			if err != nil {
				return err
			}
			if err := lifecycle.CheckCapaClosure(lifecycle.CapaClosureInput{
				EntityID: capa.CapaID,
				Verified: capa.VerifiedAt != nil && capa.VerifiedBy != nil,
				Tasks:    taskSnapshots(tasks),
			}); err != nil {
				return err
			}
		}

		now := nowUTCString()
		previous := capa.Status
		applyCapaMutation(&capa, input.Target, input.ActorID, now)

		if err := s.repo.UpdateCorrectiveAction(txCtx, capa); err != nil {
			return err
		}
		capa.Version++

		if err := rec.appendTx(txCtx, s.repo, ports.StatusHistoryEntry{
			TenantID:       input.TenantID,
			EntityKind:     lifecycle.KindCapa,
			EntityID:       capa.CapaID,
			PreviousStatus: statusPtr(previous),
			NewStatus:      input.Target,
			ChangedBy:      input.ActorID,
			Reason:         strings.TrimSpace(input.Reason),
			Source:         lifecycle.SourceManual,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		if input.Target == lifecycle.StatusClosed && capa.FindingID != nil {
			if _, err := s.cascadeFindingTx(txCtx, rec, input.TenantID, *capa.FindingID, input.ActorID); err != nil {
				return err
			}
		}

		result = TransitionResult{Kind: lifecycle.KindCapa, Capa: &capa}
		return nil
	}); err != nil {
		return TransitionResult{}, err
	}

	s.afterCommit(ctx, rec.entries)
	return result, nil
}

func (s *Service) transitionFinding(ctx context.Context, input RequestTransitionInput) (TransitionResult, error) {
	var result TransitionResult
	rec := &recorder{}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		finding, err := s.repo.GetFinding(txCtx, input.TenantID, input.EntityID)
		if err != nil {
			return err
		}

		if finding.Status == input.Target {
			result = TransitionResult{Kind: lifecycle.KindIssue, Finding: &finding, NoOp: true}
			return nil
		}
		if err := lifecycle.Validate(lifecycle.KindIssue, finding.Status, input.Target); err != nil {
			return err
		}

		overrideUsed := false
		if input.Target == lifecycle.StatusClosed {
			capas, err := s.repo.ListCorrectiveActionsByFinding(txCtx, input.TenantID, finding.FindingID)
			if err != nil {
				return err
			}
			overrideUsed, err = lifecycle.CheckIssueClosure(lifecycle.IssueClosureInput{
				EntityID:       finding.FindingID,
				Capas:          capaSnapshots(capas),
				OverrideReason: input.OverrideReason,
			})
			if err != nil {
				return err
			}
		}

		now := nowUTCString()
		previous := finding.Status
		applyFindingMutation(&finding, input.Target, input.ActorID, now)

		if err := s.repo.UpdateFinding(txCtx, finding); err != nil {
			return err
		}
		finding.Version++

		var metadata map[string]string
		if overrideUsed {
			// The override justification is part of the permanent trail.
			metadata = map[string]string{"overrideReason": strings.TrimSpace(input.OverrideReason)}
		}

		if err := rec.appendTx(txCtx, s.repo, ports.StatusHistoryEntry{
			TenantID:       input.TenantID,
			EntityKind:     lifecycle.KindIssue,
			EntityID:       finding.FindingID,
			PreviousStatus: statusPtr(previous),
			NewStatus:      input.Target,
			ChangedBy:      input.ActorID,
			Reason:         strings.TrimSpace(input.Reason),
			Source:         lifecycle.SourceManual,
			Metadata:       metadata,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		result = TransitionResult{Kind: lifecycle.KindIssue, Finding: &finding}
		return nil
	}); err != nil {
		return TransitionResult{}, err
	}

	s.afterCommit(ctx, rec.entries)
	return result, nil
}

// applyCapaMutation sets the field changes implied by the target
// status. The verification pair is set on entering Verified and
// cleared on leaving it backwards, keeping both-or-neither intact.
func applyCapaMutation(capa *ports.CorrectiveAction, target lifecycle.Status, actorID, now string) {
	reopening := capa.Status == lifecycle.StatusClosed && !lifecycle.IsTerminal(target)

	switch target {
	case lifecycle.StatusVerified:
		capa.VerifiedBy = strPtr(actorID)
		capa.VerifiedAt = strPtr(now)
	case lifecycle.StatusImplemented:
		if capa.Status == lifecycle.StatusVerified {
			capa.VerifiedBy = nil
			capa.VerifiedAt = nil
		}
	case lifecycle.StatusClosed:
		capa.ClosedBy = strPtr(actorID)
		capa.ClosedAt = strPtr(now)
	}

	if reopening {
		capa.ClosedBy = nil
		capa.ClosedAt = nil
		capa.ReopenedCount++
		capa.LastReopenedAt = strPtr(now)
	}

	capa.Status = target
	capa.UpdatedAt = now
}

func applyFindingMutation(finding *ports.Finding, target lifecycle.Status, actorID, now string) {
	reopening := finding.Status == lifecycle.StatusClosed && !lifecycle.IsTerminal(target)

	if target == lifecycle.StatusClosed {
		finding.ClosedBy = strPtr(actorID)
		finding.ClosedAt = strPtr(now)
	}

	if reopening {
		finding.ClosedBy = nil
		finding.ClosedAt = nil
		finding.ReopenedCount++
		finding.LastReopenedAt = strPtr(now)
	}

	finding.Status = target
	finding.UpdatedAt = now
}

func taskSnapshots(tasks []ports.CorrectiveActionTask) []lifecycle.TaskSnapshot {
	out := make([]lifecycle.TaskSnapshot, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, lifecycle.TaskSnapshot{Title: task.Title, Status: task.Status})
	}
	return out
}

func capaSnapshots(capas []ports.CorrectiveAction) []lifecycle.CapaSnapshot {
	out := make([]lifecycle.CapaSnapshot, 0, len(capas))
	for _, capa := range capas {
		out = append(out, lifecycle.CapaSnapshot{Title: capa.Title, Status: capa.Status})
	}
	return out
}
