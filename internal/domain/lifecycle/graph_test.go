package lifecycle

import (
	"errors"
	"testing"
)

func TestAllowedNextCapa(t *testing.T) {
	got := AllowedNext(KindCapa, StatusVerified)
	want := []Status{StatusClosed, StatusImplemented}
	if len(got) != len(want) {
		t.Fatalf("AllowedNext() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AllowedNext() = %v, want %v", got, want)
		}
	}
}

func TestValidateDeclaredEdges(t *testing.T) {
	cases := []struct {
		kind EntityKind
		from Status
		to   Status
	}{
		{KindCapa, StatusPlanned, StatusInProgress},
		{KindCapa, StatusInProgress, StatusImplemented},
		{KindCapa, StatusImplemented, StatusVerified},
		{KindCapa, StatusVerified, StatusClosed},
		{KindCapa, StatusClosed, StatusInProgress},
		{KindCapa, StatusRejected, StatusPlanned},
		{KindIssue, StatusOpen, StatusInProgress},
		{KindIssue, StatusInProgress, StatusResolved},
		{KindIssue, StatusResolved, StatusClosed},
		{KindIssue, StatusClosed, StatusInProgress},
		{KindIssue, StatusRejected, StatusOpen},
	}
	for _, tc := range cases {
		if err := Validate(tc.kind, tc.from, tc.to); err != nil {
			t.Fatalf("Validate(%s, %s, %s) error = %v", tc.kind, tc.from, tc.to, err)
		}
	}
}

func TestValidateSameStatusIsAlwaysOK(t *testing.T) {
	for kind, graph := range graphs {
		for status := range graph {
			if err := Validate(kind, status, status); err != nil {
				t.Fatalf("Validate(%s, %s, %s) error = %v", kind, status, status, err)
			}
		}
	}
}

// Every (current, target) pair must either be a declared edge or fail
// naming exactly the declared allowed-next set.
func TestValidateClosureOverAllPairs(t *testing.T) {
	for kind, graph := range graphs {
		for current := range graph {
			allowed := make(map[Status]struct{})
			for status := range graph[current] {
				allowed[status] = struct{}{}
			}
			for target := range graph {
				err := Validate(kind, current, target)
				_, edge := allowed[target]
				if edge || current == target {
					if err != nil {
						t.Fatalf("Validate(%s, %s, %s) error = %v", kind, current, target, err)
					}
					continue
				}
				var invalid *InvalidTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("Validate(%s, %s, %s) error = %v, want InvalidTransitionError", kind, current, target, err)
				}
				if len(invalid.Allowed) != len(allowed) {
					t.Fatalf("allowed set = %v, want %d entries", invalid.Allowed, len(allowed))
				}
				for _, status := range invalid.Allowed {
					if _, ok := allowed[status]; !ok {
						t.Fatalf("allowed set contains undeclared %s", status)
					}
				}
			}
		}
	}
}

func TestValidateTaskTransition(t *testing.T) {
	if err := ValidateTaskTransition(StatusOpen, StatusCompleted); err != nil {
		t.Fatalf("ValidateTaskTransition() error = %v", err)
	}
	err := ValidateTaskTransition(StatusCompleted, StatusInProgress)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("ValidateTaskTransition() error = %v, want InvalidTransitionError", err)
	}
	if len(invalid.Allowed) != 0 {
		t.Fatalf("completed should be a dead end, allowed = %v", invalid.Allowed)
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus(KindCapa, " Verified ")
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if status != StatusVerified {
		t.Fatalf("ParseStatus() = %q", status)
	}

	if _, err := ParseStatus(KindIssue, "verified"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("ParseStatus() error = %v, want ErrUnknownStatus", err)
	}
}

func TestParseEntityKind(t *testing.T) {
	kind, err := ParseEntityKind("Finding")
	if err != nil {
		t.Fatalf("ParseEntityKind() error = %v", err)
	}
	if kind != KindIssue {
		t.Fatalf("ParseEntityKind() = %q", kind)
	}
	if _, err := ParseEntityKind("widget"); !errors.Is(err, ErrUnknownEntityKind) {
		t.Fatalf("ParseEntityKind() error = %v, want ErrUnknownEntityKind", err)
	}
}
