// Package tracker is the transition coordinator: the only entry point
// through which CAPA and Finding lifecycles are mutated once tracking
// begins. It wires the transition validator, closure precondition
// checks, the history ledger and the closure cascade into one unit of
// work per request.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"capatrack/internal/bootstrap/logging"
	"capatrack/internal/domain/lifecycle"
	"capatrack/internal/errs"
	"capatrack/internal/ports"
)

var (
	errActorRequired  = errors.New("actor id is required")
	errTitleRequired  = errors.New("title is required")
	errTenantRequired = errors.New("tenant id is required")
)

type Service struct {
	repo      ports.TrackerRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	publisher ports.HistoryPublisher
}

// NewService wires tracker usecases with repository and unit of work.
// Cache and publisher are optional post-commit conveniences.
func NewService(repo ports.TrackerRepository, uow ports.UnitOfWork, cache ports.Cache, publisher ports.HistoryPublisher) *Service {
	return &Service{
		repo:      repo,
		uow:       uow,
		cache:     cache,
		publisher: publisher,
	}
}

func (s *Service) checkWiring(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("tracker repository is required")
	}
	if s.uow == nil {
		return errors.New("tracker unit of work is required")
	}
	return nil
}

// AllowedNext exposes the transition graph for UI affordance hints.
func (s *Service) AllowedNext(kind lifecycle.EntityKind, current lifecycle.Status) []lifecycle.Status {
	return lifecycle.AllowedNext(kind, current)
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func strPtr(value string) *string {
	return &value
}

func statusPtr(status lifecycle.Status) *lifecycle.Status {
	return &status
}

func cacheStatusKey(tenantID string, kind lifecycle.EntityKind, entityID string) string {
	return "status:" + tenantID + ":" + string(kind) + ":" + entityID
}

// afterCommit runs the best-effort side effects for history entries
// written by a committed unit of work: status cache refresh and
// read-model publication. Failures are logged, never surfaced.
func (s *Service) afterCommit(ctx context.Context, entries []ports.StatusHistoryEntry) {
	for _, entry := range entries {
		if s.cache != nil {
			key := cacheStatusKey(entry.TenantID, entry.EntityKind, entry.EntityID)
			if err := s.cache.Set(ctx, key, string(entry.NewStatus), 0); err != nil {
				logging.Warn(ctx, "status cache write failed",
					slog.String("key", key), slog.Any("err", errs.Loggable(err)))
			}
		}
		if s.publisher != nil {
			if err := s.publisher.PublishHistory(ctx, entry); err != nil {
				logging.Warn(ctx, "history publish failed",
					slog.Uint64("entry_id", entry.EntryID), slog.Any("err", errs.Loggable(err)))
			}
		}
	}
}

// recorder accumulates the history entries appended inside one unit of
// work so afterCommit can replay them to cache and publisher.
type recorder struct {
	entries []ports.StatusHistoryEntry
}

func (rec *recorder) appendTx(ctx context.Context, repo ports.TrackerRepository, entry ports.StatusHistoryEntry) error {
	id, err := repo.AppendHistory(ctx, entry)
	if err != nil {
		return err
	}
	entry.EntryID = id
	rec.entries = append(rec.entries, entry)
	return nil
}
