package tracker

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/ports"
)

// Creation writes the entity together with its "created" ledger entry
// (previous status nil) in one unit of work, so every entity's history
// starts at birth.

type CreateFindingInput struct {
	TenantID    string
	Title       string
	Description string
	ActorID     string
}

func (s *Service) CreateFinding(ctx context.Context, input CreateFindingInput) (ports.Finding, error) {
	if err := s.checkWiring(ctx); err != nil {
		return ports.Finding{}, err
	}
	if strings.TrimSpace(input.TenantID) == "" {
		return ports.Finding{}, errTenantRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return ports.Finding{}, errTitleRequired
	}
	if strings.TrimSpace(input.ActorID) == "" {
		return ports.Finding{}, errActorRequired
	}

	now := nowUTCString()
	finding := ports.Finding{
		TenantID:    input.TenantID,
		FindingID:   uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      lifecycle.StatusOpen,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rec := &recorder{}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.CreateFinding(txCtx, finding); err != nil {
			return err
		}
		return rec.appendTx(txCtx, s.repo, ports.StatusHistoryEntry{
			TenantID:   input.TenantID,
			EntityKind: lifecycle.KindIssue,
			EntityID:   finding.FindingID,
			NewStatus:  lifecycle.StatusOpen,
			ChangedBy:  input.ActorID,
			Reason:     "created",
			Source:     lifecycle.SourceManual,
			CreatedAt:  now,
		})
	}); err != nil {
		return ports.Finding{}, err
	}

	s.afterCommit(ctx, rec.entries)
	return finding, nil
}

type CreateCorrectiveActionInput struct {
	TenantID    string
	Title       string
	Description string
	FindingID   string
	ActorID     string
}

func (s *Service) CreateCorrectiveAction(ctx context.Context, input CreateCorrectiveActionInput) (ports.CorrectiveAction, error) {
	if err := s.checkWiring(ctx); err != nil {
		return ports.CorrectiveAction{}, err
	}
	if strings.TrimSpace(input.TenantID) == "" {
		return ports.CorrectiveAction{}, errTenantRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return ports.CorrectiveAction{}, errTitleRequired
	}
	if strings.TrimSpace(input.ActorID) == "" {
		return ports.CorrectiveAction{}, errActorRequired
	}

	now := nowUTCString()
	capa := ports.CorrectiveAction{
		TenantID:    input.TenantID,
		CapaID:      uuid.NewString(),
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      lifecycle.StatusPlanned,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	rec := &recorder{}
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if findingID := strings.TrimSpace(input.FindingID); findingID != "" {
			// A standalone CAPA has no owning finding; a linked one must
			// point at a real, same-tenant finding.
			if _, err := s.repo.GetFinding(txCtx, input.TenantID, findingID); err != nil {
				return err
			}
			capa.FindingID = strPtr(findingID)
		}

		if err := s.repo.CreateCorrectiveAction(txCtx, capa); err != nil {
			return err
		}
		return rec.appendTx(txCtx, s.repo, ports.StatusHistoryEntry{
			TenantID:   input.TenantID,
			EntityKind: lifecycle.KindCapa,
			EntityID:   capa.CapaID,
			NewStatus:  lifecycle.StatusPlanned,
			ChangedBy:  input.ActorID,
			Reason:     "created",
			Source:     lifecycle.SourceManual,
			CreatedAt:  now,
		})
	}); err != nil {
		return ports.CorrectiveAction{}, err
	}

	s.afterCommit(ctx, rec.entries)
	return capa, nil
}

type AddTaskInput struct {
	TenantID string
	CapaID   string
	Title    string
	ActorID  string
}

func (s *Service) AddTask(ctx context.Context, input AddTaskInput) (ports.CorrectiveActionTask, error) {
	if err := s.checkWiring(ctx); err != nil {
		return ports.CorrectiveActionTask{}, err
	}
	if strings.TrimSpace(input.TenantID) == "" {
		return ports.CorrectiveActionTask{}, errTenantRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return ports.CorrectiveActionTask{}, errTitleRequired
	}

	now := nowUTCString()
	task := ports.CorrectiveActionTask{
		TenantID:  input.TenantID,
		TaskID:    uuid.NewString(),
		CapaID:    input.CapaID,
		Title:     strings.TrimSpace(input.Title),
		Status:    lifecycle.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetCorrectiveAction(txCtx, input.TenantID, input.CapaID); err != nil {
			return err
		}
		return s.repo.CreateTask(txCtx, task)
	}); err != nil {
		return ports.CorrectiveActionTask{}, err
	}
	return task, nil
}
