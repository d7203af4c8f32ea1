package models

import (
	"github.com/pawnest/adoptions_backend/utils"
)

// The legal transitions of an adoption application. Status only moves forward;
// nothing re-enters Submitted, and terminal states have no outgoing edges.
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusSubmitted: {
		ApplicationStatusReview,
		ApplicationStatusApproved,
		ApplicationStatusRejected,
		ApplicationStatusWithdrawn,
	},
	ApplicationStatusReview: {
		ApplicationStatusApproved,
		ApplicationStatusRejected,
		ApplicationStatusWithdrawn,
	},
}

func CanTransition(from, to ApplicationStatus) bool {
	for _, next := range applicationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionRole returns the role allowed to drive a record into the target
// status. Withdrawal is applicant-only; every other transition is shelter-only.
func TransitionRole(to ApplicationStatus) UserRole {
	if to == ApplicationStatusWithdrawn {
		return UserRoleApplicant
	}
	return UserRoleShelterStaff
}

// ValidateTransition checks the state machine edge and the acting role.
// It does not check ownership; callers compare applicant/shelter ids themselves.
func ValidateTransition(from, to ApplicationStatus, actor UserRole) error {
	if !CanTransition(from, to) {
		return &utils.InvalidTransitionError{From: string(from), To: string(to)}
	}
	required := TransitionRole(to)
	if actor != required && !(required == UserRoleShelterStaff && actor == UserRoleAdmin) {
		return &utils.InvalidTransitionError{
			From:    string(from),
			To:      string(to),
			Message: string(actor) + " may not perform this transition",
		}
	}
	return nil
}
