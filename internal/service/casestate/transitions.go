package casestate

import (
	"context"

	"github.com/physiodesk/clinic-api/internal/model"
)

// transition is a single allowed edge in the case lifecycle state machine.
// Everything outside this table is rejected as an invalid transition.
type transition struct {
	from           model.CaseStatus
	to             model.CaseStatus
	privileged     bool
	reasonRequired bool
	isReversal     bool
	apply          func(s *Service, ctx context.Context, c *model.Case, actor model.Actor, req *TransitionRequest) error
}

var transitions = []transition{
	// Forward path
	{from: model.CaseStatusPending, to: model.CaseStatusAccepted,
		apply: (*Service).applyAccept},
	{from: model.CaseStatusAccepted, to: model.CaseStatusCompleted,
		apply: (*Service).applyComplete},

	// Cancellation, reachable from either non-terminal state
	{from: model.CaseStatusPending, to: model.CaseStatusCancelled,
		reasonRequired: true, apply: (*Service).applyCancelFromPending},
	{from: model.CaseStatusAccepted, to: model.CaseStatusCancelled,
		reasonRequired: true, apply: (*Service).applyCancelFromAccepted},

	// Privileged reversals
	{from: model.CaseStatusAccepted, to: model.CaseStatusPending,
		privileged: true, reasonRequired: true, isReversal: true,
		apply: (*Service).applyRevertAcceptance},
	{from: model.CaseStatusCompleted, to: model.CaseStatusAccepted,
		privileged: true, reasonRequired: true, isReversal: true,
		apply: (*Service).applyRevertCompletion},
}

// transitionFor returns the allowed transition for a given edge.
func transitionFor(from, to model.CaseStatus) (transition, bool) {
	for _, tr := range transitions {
		if tr.from == from && tr.to == to {
			return tr, true
		}
	}
	return transition{}, false
}
