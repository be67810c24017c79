package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEntityKind = errors.New("unknown entity kind")
	ErrUnknownStatus     = errors.New("unknown status")
)

// InvalidTransitionError reports a requested edge absent from the
// entity kind's transition graph. Allowed carries the full set of
// legal next statuses so callers can render actionable feedback.
type InvalidTransitionError struct {
	Kind    EntityKind
	From    Status
	To      Status
	Allowed []Status
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s transition %s -> %s is not allowed", e.Kind, e.From, e.To)
	}
	allowed := make([]string, 0, len(e.Allowed))
	for _, status := range e.Allowed {
		allowed = append(allowed, string(status))
	}
	return fmt.Sprintf(
		"%s transition %s -> %s is not allowed, allowed: %s",
		e.Kind, e.From, e.To, strings.Join(allowed, ", "),
	)
}

// ClosurePreconditionError reports every closure rule the entity
// violates; rules are evaluated in full rather than failing on the
// first so the caller sees all blocking reasons at once.
type ClosurePreconditionError struct {
	Kind       EntityKind
	EntityID   string
	Violations []string
}

func (e *ClosurePreconditionError) Error() string {
	return fmt.Sprintf(
		"%s %s cannot be closed: %s",
		e.Kind, e.EntityID, strings.Join(e.Violations, "; "),
	)
}
