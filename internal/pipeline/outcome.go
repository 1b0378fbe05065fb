package pipeline

import (
	"github.com/rzbill/txq/internal/classify"
	"github.com/rzbill/txq/internal/executor"
)

// OutcomeKind tags the result of one guarded execution.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeCircuitOpen
	OutcomeRetriable
	OutcomePermanent
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeCircuitOpen:
		return "circuit_open"
	case OutcomeRetriable:
		return "retriable"
	case OutcomePermanent:
		return "permanent"
	}
	return "unknown"
}

// Outcome is what one execution produced. Err is set for every kind but OK.
type Outcome struct {
	Kind   OutcomeKind
	Result executor.Result
	Err    error
	// Reason is the classifier's explanation for failures.
	Reason string
}

func (k OutcomeKind) class() classify.Class {
	if k == OutcomePermanent {
		return classify.Permanent
	}
	return classify.Retriable
}
