// Package lifecycle holds the pure status rules for tracked entities:
// the per-kind transition graphs, terminal-status classification, and
// the closure precondition checks. Nothing in this package touches
// storage; callers feed it snapshots and act on the verdict.
package lifecycle

import (
	"fmt"
	"strings"
)

// EntityKind discriminates the two audited entity kinds sharing one
// history ledger.
type EntityKind string

const (
	KindCapa  EntityKind = "capa"
	KindIssue EntityKind = "issue"
)

// ParseEntityKind accepts the wire spellings of an entity kind.
func ParseEntityKind(raw string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "capa", "corrective_action":
		return KindCapa, nil
	case "issue", "finding":
		return KindIssue, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityKind, raw)
	}
}

// Status is a lifecycle status value. Which values are legal depends on
// the entity kind; the graphs in graph.go are the source of truth.
type Status string

const (
	StatusPlanned     Status = "planned"
	StatusInProgress  Status = "in_progress"
	StatusImplemented Status = "implemented"
	StatusVerified    Status = "verified"
	StatusOpen        Status = "open"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
	StatusRejected    Status = "rejected"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Source tags a history entry as human-initiated or cascade-initiated.
type Source string

const (
	SourceManual Source = "manual"
	SourceSystem Source = "system"
)

// ParseStatus resolves a raw status string against the given entity
// kind's status set.
func ParseStatus(kind EntityKind, raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	graph, ok := graphs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityKind, string(kind))
	}
	if _, ok := graph[candidate]; !ok {
		return "", fmt.Errorf("%w: %q is not a %s status", ErrUnknownStatus, raw, kind)
	}
	return candidate, nil
}

// ParseTaskStatus resolves a raw status string against the task status set.
func ParseTaskStatus(raw string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := taskGraph[candidate]; !ok {
		return "", fmt.Errorf("%w: %q is not a task status", ErrUnknownStatus, raw)
	}
	return candidate, nil
}

// IsTerminal reports whether the status ends an entity's lifecycle
// until it is explicitly reopened.
func IsTerminal(status Status) bool {
	switch status {
	case StatusClosed, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminalTaskStatus reports whether a task no longer counts as
// outstanding work for its owning CAPA.
func IsTerminalTaskStatus(status Status) bool {
	return status == StatusCompleted || status == StatusCancelled
}
