package lifecycle

import "sort"

// Transition graphs are fixed at compile time; there is no runtime
// mutation, so no synchronization is needed.

var capaGraph = map[Status]map[Status]struct{}{
	StatusPlanned: {
		StatusInProgress: {},
		StatusRejected:   {},
	},
	StatusInProgress: {
		StatusImplemented: {},
		StatusPlanned:     {},
		StatusRejected:    {},
	},
	StatusImplemented: {
		StatusVerified:   {},
		StatusInProgress: {},
	},
	StatusVerified: {
		StatusClosed:      {},
		StatusImplemented: {},
	},
	StatusClosed: {
		StatusInProgress: {},
	},
	StatusRejected: {
		StatusPlanned: {},
	},
}

var issueGraph = map[Status]map[Status]struct{}{
	StatusOpen: {
		StatusInProgress: {},
		StatusRejected:   {},
	},
	StatusInProgress: {
		StatusResolved: {},
		StatusOpen:     {},
		StatusRejected: {},
	},
	StatusResolved: {
		StatusClosed:     {},
		StatusInProgress: {},
	},
	StatusClosed: {
		StatusInProgress: {},
	},
	StatusRejected: {
		StatusOpen: {},
	},
}

// taskGraph is not part of the public transition API; tasks move
// through SetTaskStatus only. Completed is a dead end, a cancelled
// task can be reactivated.
var taskGraph = map[Status]map[Status]struct{}{
	StatusOpen: {
		StatusInProgress: {},
		StatusCompleted:  {},
		StatusCancelled:  {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusCancelled: {},
		StatusOpen:      {},
	},
	StatusCompleted: {},
	StatusCancelled: {
		StatusOpen: {},
	},
}

var graphs = map[EntityKind]map[Status]map[Status]struct{}{
	KindCapa:  capaGraph,
	KindIssue: issueGraph,
}

// AllowedNext returns the statuses directly reachable from current for
// the given entity kind, sorted for stable output.
func AllowedNext(kind EntityKind, current Status) []Status {
	graph, ok := graphs[kind]
	if !ok {
		return nil
	}
	return allowedFrom(graph, current)
}

// TaskAllowedNext returns the statuses directly reachable from current
// for a task.
func TaskAllowedNext(current Status) []Status {
	return allowedFrom(taskGraph, current)
}

// Validate decides whether current→target is a declared edge of the
// kind's graph. A same-status target is valid by definition: callers
// treat it as a no-op, never an error.
func Validate(kind EntityKind, current, target Status) error {
	graph, ok := graphs[kind]
	if !ok {
		return ErrUnknownEntityKind
	}
	return validateEdge(graph, kind, current, target)
}

// ValidateTaskTransition is Validate for the task graph.
func ValidateTaskTransition(current, target Status) error {
	return validateEdge(taskGraph, "task", current, target)
}

func allowedFrom(graph map[Status]map[Status]struct{}, current Status) []Status {
	next, ok := graph[current]
	if !ok {
		return nil
	}
	out := make([]Status, 0, len(next))
	for status := range next {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func validateEdge(graph map[Status]map[Status]struct{}, kind EntityKind, current, target Status) error {
	if current == target {
		return nil
	}
	next, ok := graph[current]
	if !ok {
		return &InvalidTransitionError{Kind: kind, From: current, To: target}
	}
	if _, ok := next[target]; !ok {
		return &InvalidTransitionError{
			Kind:    kind,
			From:    current,
			To:      target,
			Allowed: allowedFrom(graph, current),
		}
	}
	return nil
}
