package lifecycle

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckCapaClosureCollectsAllViolations(t *testing.T) {
	err := CheckCapaClosure(CapaClosureInput{
		EntityID: "capa-1",
		Verified: false,
		Tasks: []TaskSnapshot{
			{Title: "patch firewall", Status: StatusOpen},
			{Title: "rotate keys", Status: StatusInProgress},
			{Title: "write report", Status: StatusCompleted},
		},
	})

	var precond *ClosurePreconditionError
	if !errors.As(err, &precond) {
		t.Fatalf("CheckCapaClosure() error = %v, want ClosurePreconditionError", err)
	}
	if len(precond.Violations) != 2 {
		t.Fatalf("violations = %v, want 2", precond.Violations)
	}
	if !strings.Contains(precond.Violations[0], "verified") {
		t.Fatalf("first violation = %q", precond.Violations[0])
	}
	if !strings.Contains(precond.Violations[1], "2 task(s) incomplete") {
		t.Fatalf("second violation = %q", precond.Violations[1])
	}
	if !strings.Contains(precond.Violations[1], "patch firewall") {
		t.Fatalf("violation should name the open task: %q", precond.Violations[1])
	}
}

func TestCheckCapaClosureOK(t *testing.T) {
	err := CheckCapaClosure(CapaClosureInput{
		EntityID: "capa-1",
		Verified: true,
		Tasks: []TaskSnapshot{
			{Title: "a", Status: StatusCompleted},
			{Title: "b", Status: StatusCancelled},
		},
	})
	if err != nil {
		t.Fatalf("CheckCapaClosure() error = %v", err)
	}
}

func TestCheckCapaClosureNoTasks(t *testing.T) {
	if err := CheckCapaClosure(CapaClosureInput{EntityID: "capa-1", Verified: true}); err != nil {
		t.Fatalf("CheckCapaClosure() error = %v", err)
	}
}

func TestCheckIssueClosureNoCapas(t *testing.T) {
	override, err := CheckIssueClosure(IssueClosureInput{EntityID: "iss-1"})
	if err != nil {
		t.Fatalf("CheckIssueClosure() error = %v", err)
	}
	if override {
		t.Fatalf("CheckIssueClosure() override = true, want false")
	}
}

func TestCheckIssueClosureUnresolvedCapas(t *testing.T) {
	_, err := CheckIssueClosure(IssueClosureInput{
		EntityID: "iss-1",
		Capas: []CapaSnapshot{
			{Title: "CA", Status: StatusClosed},
			{Title: "CB", Status: StatusPlanned},
		},
	})
	var precond *ClosurePreconditionError
	if !errors.As(err, &precond) {
		t.Fatalf("CheckIssueClosure() error = %v, want ClosurePreconditionError", err)
	}
	if !strings.Contains(precond.Violations[0], "CB (planned)") {
		t.Fatalf("violation should name CB: %q", precond.Violations[0])
	}
	if strings.Contains(precond.Violations[0], "CA (") {
		t.Fatalf("violation should not name closed CA: %q", precond.Violations[0])
	}
}

func TestCheckIssueClosureOverride(t *testing.T) {
	override, err := CheckIssueClosure(IssueClosureInput{
		EntityID:       "iss-1",
		Capas:          []CapaSnapshot{{Title: "CB", Status: StatusPlanned}},
		OverrideReason: "tracked elsewhere",
	})
	if err != nil {
		t.Fatalf("CheckIssueClosure() error = %v", err)
	}
	if !override {
		t.Fatalf("CheckIssueClosure() override = false, want true")
	}

	// A blank override reason does not count.
	if _, err := CheckIssueClosure(IssueClosureInput{
		EntityID:       "iss-1",
		Capas:          []CapaSnapshot{{Title: "CB", Status: StatusPlanned}},
		OverrideReason: "   ",
	}); err == nil {
		t.Fatalf("CheckIssueClosure() expected error for blank override reason")
	}
}
