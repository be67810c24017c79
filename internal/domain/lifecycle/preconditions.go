package lifecycle

import (
	"fmt"
	"strings"
)

// TaskSnapshot is the slice of task state the CAPA closure check needs.
type TaskSnapshot struct {
	Title  string
	Status Status
}

// CapaSnapshot is the slice of CAPA state the issue closure check needs.
type CapaSnapshot struct {
	Title  string
	Status Status
}

// CapaClosureInput feeds the manual CAPA closure check. The cascade
// path does not run this check: a CAPA whose tasks all reached a
// terminal status closes without verification fields.
type CapaClosureInput struct {
	EntityID string
	Verified bool
	Tasks    []TaskSnapshot
}

// CheckCapaClosure returns nil when a CAPA may be closed manually, or
// a ClosurePreconditionError listing every violated rule.
func CheckCapaClosure(in CapaClosureInput) error {
	var violations []string

	if !in.Verified {
		violations = append(violations, "must be verified before closing")
	}

	var incomplete []string
	for _, task := range in.Tasks {
		if !IsTerminalTaskStatus(task.Status) {
			incomplete = append(incomplete, fmt.Sprintf("%s (%s)", task.Title, task.Status))
		}
	}
	if len(incomplete) > 0 {
		violations = append(violations, fmt.Sprintf(
			"%d task(s) incomplete: %s", len(incomplete), strings.Join(incomplete, ", "),
		))
	}

	if len(violations) == 0 {
		return nil
	}
	return &ClosurePreconditionError{Kind: KindCapa, EntityID: in.EntityID, Violations: violations}
}

// IssueClosureInput feeds the issue closure check.
type IssueClosureInput struct {
	EntityID       string
	Capas          []CapaSnapshot
	OverrideReason string
}

// CheckIssueClosure returns whether the closure rides on an override
// reason. An issue with no linked CAPAs closes unconditionally; one
// with open CAPAs closes only with a non-empty override reason, which
// the caller must record permanently.
func CheckIssueClosure(in IssueClosureInput) (overrideUsed bool, err error) {
	var unresolved []string
	for _, capa := range in.Capas {
		if capa.Status != StatusClosed {
			unresolved = append(unresolved, fmt.Sprintf("%s (%s)", capa.Title, capa.Status))
		}
	}
	if len(unresolved) == 0 {
		return false, nil
	}

	if strings.TrimSpace(in.OverrideReason) != "" {
		return true, nil
	}

	return false, &ClosurePreconditionError{
		Kind:     KindIssue,
		EntityID: in.EntityID,
		Violations: []string{fmt.Sprintf(
			"%d corrective action(s) not closed: %s",
			len(unresolved), strings.Join(unresolved, ", "),
		)},
	}
}
