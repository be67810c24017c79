package tracker

import (
	"context"

	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/ports"
)

// CapaDetail is a CAPA with its tasks and allowed next statuses.
type CapaDetail struct {
	Capa        ports.CorrectiveAction
	Tasks       []ports.CorrectiveActionTask
	AllowedNext []lifecycle.Status
}

// FindingDetail is a Finding with its linked CAPAs (derived by query,
// never stored as a back-reference) and allowed next statuses.
type FindingDetail struct {
	Finding     ports.Finding
	Capas       []ports.CorrectiveAction
	AllowedNext []lifecycle.Status
}

func (s *Service) GetCapaDetail(ctx context.Context, tenantID, capaID string) (CapaDetail, error) {
	if err := s.checkWiring(ctx); err != nil {
		return CapaDetail{}, err
	}

	capa, err := s.repo.GetCorrectiveAction(ctx, tenantID, capaID)
	if err != nil {
		return CapaDetail{}, err
	}
	tasks, err := s.repo.ListTasks(ctx, tenantID, capaID)
	if err != nil {
		return CapaDetail{}, err
	}
	return CapaDetail{
		Capa:        capa,
		Tasks:       tasks,
		AllowedNext: lifecycle.AllowedNext(lifecycle.KindCapa, capa.Status),
	}, nil
}

func (s *Service) GetFindingDetail(ctx context.Context, tenantID, findingID string) (FindingDetail, error) {
	if err := s.checkWiring(ctx); err != nil {
		return FindingDetail{}, err
	}

	finding, err := s.repo.GetFinding(ctx, tenantID, findingID)
	if err != nil {
		return FindingDetail{}, err
	}
	capas, err := s.repo.ListCorrectiveActionsByFinding(ctx, tenantID, findingID)
	if err != nil {
		return FindingDetail{}, err
	}
	return FindingDetail{
		Finding:     finding,
		Capas:       capas,
		AllowedNext: lifecycle.AllowedNext(lifecycle.KindIssue, finding.Status),
	}, nil
}

func (s *Service) ListFindings(ctx context.Context, tenantID string) ([]ports.Finding, error) {
	if err := s.checkWiring(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListFindings(ctx, tenantID)
}

func (s *Service) ListCorrectiveActions(ctx context.Context, tenantID string) ([]ports.CorrectiveAction, error) {
	if err := s.checkWiring(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListCorrectiveActions(ctx, tenantID)
}

// ListHistory returns the ledger of one entity, oldest first.
func (s *Service) ListHistory(ctx context.Context, tenantID string, kind lifecycle.EntityKind, entityID string) ([]ports.StatusHistoryEntry, error) {
	if err := s.checkWiring(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, tenantID, kind, entityID)
}
