package ports

import (
	"context"
	"errors"

	"capatrack/internal/domain/lifecycle"
)

var (
	// ErrNotFound covers entities missing or owned by another tenant;
	// the two cases are indistinguishable to callers on purpose.
	ErrNotFound = errors.New("entity not found")

	// ErrVersionConflict signals a concurrent update detected by the
	// optimistic version check.
	ErrVersionConflict = errors.New("entity was modified concurrently")
)

// CorrectiveAction is a remediation work item, optionally linked to a
// Finding. Timestamps are RFC3339Nano UTC strings.
type CorrectiveAction struct {
	TenantID       string
	CapaID         string
	Title          string
	Description    string
	Status         lifecycle.Status
	FindingID      *string
	VerifiedBy     *string
	VerifiedAt     *string
	ClosedBy       *string
	ClosedAt       *string
	ReopenedCount  int
	LastReopenedAt *string
	Version        uint64
	CreatedAt      string
	UpdatedAt      string
}

// CorrectiveActionTask is the smallest unit of CAPA work; its terminal
// completion drives cascade closure.
type CorrectiveActionTask struct {
	TenantID  string
	TaskID    string
	CapaID    string
	Title     string
	Status    lifecycle.Status
	CreatedAt string
	UpdatedAt string
}

// Finding is an audit/compliance gap remediated by zero or more CAPAs.
// The linked-CAPA collection is always a derived query over
// CorrectiveAction.FindingID, never a stored back-reference.
type Finding struct {
	TenantID       string
	FindingID      string
	Title          string
	Description    string
	Status         lifecycle.Status
	ClosedBy       *string
	ClosedAt       *string
	ReopenedCount  int
	LastReopenedAt *string
	Version        uint64
	CreatedAt      string
	UpdatedAt      string
}

// StatusHistoryEntry is one immutable row of the audit ledger.
// PreviousStatus is nil only for the entry written at entity creation.
type StatusHistoryEntry struct {
	EntryID        uint64
	TenantID       string
	EntityKind     lifecycle.EntityKind
	EntityID       string
	PreviousStatus *lifecycle.Status
	NewStatus      lifecycle.Status
	ChangedBy      string
	Reason         string
	Source         lifecycle.Source
	Metadata       map[string]string
	CreatedAt      string
}

// TrackerRepository is the tenant-scoped storage contract. Every
// method honors a transaction handle supplied via context; outside a
// transaction each call runs standalone.
type TrackerRepository interface {
	GetCorrectiveAction(ctx context.Context, tenantID, capaID string) (CorrectiveAction, error)
	ListCorrectiveActions(ctx context.Context, tenantID string) ([]CorrectiveAction, error)
	ListCorrectiveActionsByFinding(ctx context.Context, tenantID, findingID string) ([]CorrectiveAction, error)
	CreateCorrectiveAction(ctx context.Context, capa CorrectiveAction) error
	// UpdateCorrectiveAction writes the mutable lifecycle fields guarded
	// by capa.Version; a stale version yields ErrVersionConflict.
	UpdateCorrectiveAction(ctx context.Context, capa CorrectiveAction) error

	GetTask(ctx context.Context, tenantID, capaID, taskID string) (CorrectiveActionTask, error)
	ListTasks(ctx context.Context, tenantID, capaID string) ([]CorrectiveActionTask, error)
	CreateTask(ctx context.Context, task CorrectiveActionTask) error
	UpdateTaskStatus(ctx context.Context, tenantID, capaID, taskID string, status lifecycle.Status, updatedAt string) error

	GetFinding(ctx context.Context, tenantID, findingID string) (Finding, error)
	ListFindings(ctx context.Context, tenantID string) ([]Finding, error)
	CreateFinding(ctx context.Context, finding Finding) error
	// UpdateFinding has the same optimistic-version contract as
	// UpdateCorrectiveAction.
	UpdateFinding(ctx context.Context, finding Finding) error

	// AppendHistory inserts one ledger row and returns its entry id.
	// The ledger is append-only: no update or delete exists.
	AppendHistory(ctx context.Context, entry StatusHistoryEntry) (uint64, error)
	ListHistory(ctx context.Context, tenantID string, kind lifecycle.EntityKind, entityID string) ([]StatusHistoryEntry, error)
	ListHistoryByTenant(ctx context.Context, tenantID string) ([]StatusHistoryEntry, error)
}
