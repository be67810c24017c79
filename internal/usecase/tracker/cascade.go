package tracker

import (
	"context"

	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/ports"
)

// Cascade closures are opportunistic: each check fires only when its
// conditions hold and the target entity is not already closed, so
// repeated triggers converge without duplicate history entries. An
// unmet condition is never an error.

// cascadeCapaFromTasksTx closes a CAPA once every task reached a
// terminal status. This system path deliberately skips the manual
// closure preconditions: task completion stands in for verification.
func (s *Service) cascadeCapaFromTasksTx(ctx context.Context, rec *recorder, tenantID, capaID, actorID string) (bool, error) {
	capa, err := s.repo.GetCorrectiveAction(ctx, tenantID, capaID)
	if err != nil {
		return false, err
	}
	if capa.Status == lifecycle.StatusClosed {
		return false, nil
	}

	tasks, err := s.repo.ListTasks(ctx, tenantID, capaID)
	if err != nil {
		return false, err
	}
	if len(tasks) == 0 {
		return false, nil
	}
	for _, task := range tasks {
		if !lifecycle.IsTerminalTaskStatus(task.Status) {
			return false, nil
		}
	}

	now := nowUTCString()
	previous := capa.Status
	capa.Status = lifecycle.StatusClosed
	capa.ClosedBy = strPtr(actorID)
	capa.ClosedAt = strPtr(now)
	capa.UpdatedAt = now

	if err := s.repo.UpdateCorrectiveAction(ctx, capa); err != nil {
		return false, err
	}

	if err := rec.appendTx(ctx, s.repo, ports.StatusHistoryEntry{
		TenantID:       tenantID,
		EntityKind:     lifecycle.KindCapa,
		EntityID:       capaID,
		PreviousStatus: statusPtr(previous),
		NewStatus:      lifecycle.StatusClosed,
		ChangedBy:      actorID,
		Reason:         "all tasks completed",
		Source:         lifecycle.SourceSystem,
		Metadata:       map[string]string{"taskCascade": "true"},
		CreatedAt:      now,
	}); err != nil {
		return false, err
	}

	if capa.FindingID != nil {
		if _, err := s.cascadeFindingTx(ctx, rec, tenantID, *capa.FindingID, actorID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// cascadeFindingTx closes a Finding once every linked CAPA is closed.
func (s *Service) cascadeFindingTx(ctx context.Context, rec *recorder, tenantID, findingID, actorID string) (bool, error) {
	finding, err := s.repo.GetFinding(ctx, tenantID, findingID)
	if err != nil {
		return false, err
	}
	if finding.Status == lifecycle.StatusClosed {
		return false, nil
	}

	capas, err := s.repo.ListCorrectiveActionsByFinding(ctx, tenantID, findingID)
	if err != nil {
		return false, err
	}
	if len(capas) == 0 {
		return false, nil
	}
	for _, capa := range capas {
		if capa.Status != lifecycle.StatusClosed {
			return false, nil
		}
	}

	now := nowUTCString()
	previous := finding.Status
	finding.Status = lifecycle.StatusClosed
	finding.ClosedBy = strPtr(actorID)
	finding.ClosedAt = strPtr(now)
	finding.UpdatedAt = now

	if err := s.repo.UpdateFinding(ctx, finding); err != nil {
		return false, err
	}

	if err := rec.appendTx(ctx, s.repo, ports.StatusHistoryEntry{
		TenantID:       tenantID,
		EntityKind:     lifecycle.KindIssue,
		EntityID:       findingID,
		PreviousStatus: statusPtr(previous),
		NewStatus:      lifecycle.StatusClosed,
		ChangedBy:      actorID,
		Reason:         "all CAPAs completed",
		Source:         lifecycle.SourceSystem,
		CreatedAt:      now,
	}); err != nil {
		return false, err
	}
	return true, nil
}
