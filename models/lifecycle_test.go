package models

import (
	"testing"

	"github.com/pawnest/adoptions_backend/utils"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    ApplicationStatus
		to      ApplicationStatus
		allowed bool
	}{
		{ApplicationStatusSubmitted, ApplicationStatusReview, true},
		{ApplicationStatusSubmitted, ApplicationStatusApproved, true},
		{ApplicationStatusSubmitted, ApplicationStatusRejected, true},
		{ApplicationStatusSubmitted, ApplicationStatusWithdrawn, true},
		{ApplicationStatusReview, ApplicationStatusApproved, true},
		{ApplicationStatusReview, ApplicationStatusRejected, true},
		{ApplicationStatusReview, ApplicationStatusWithdrawn, true},

		// nothing re-enters Submitted or Review backwards
		{ApplicationStatusReview, ApplicationStatusSubmitted, false},
		{ApplicationStatusApproved, ApplicationStatusSubmitted, false},

		// terminal and approved states have no outgoing edges
		{ApplicationStatusApproved, ApplicationStatusRejected, false},
		{ApplicationStatusApproved, ApplicationStatusWithdrawn, false},
		{ApplicationStatusRejected, ApplicationStatusReview, false},
		{ApplicationStatusRejected, ApplicationStatusApproved, false},
		{ApplicationStatusWithdrawn, ApplicationStatusReview, false},
		{ApplicationStatusWithdrawn, ApplicationStatusApproved, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestTransitionRole(t *testing.T) {
	if got := TransitionRole(ApplicationStatusWithdrawn); got != UserRoleApplicant {
		t.Errorf("withdrawal should be applicant-only, got %s", got)
	}
	for _, to := range []ApplicationStatus{
		ApplicationStatusReview,
		ApplicationStatusApproved,
		ApplicationStatusRejected,
	} {
		if got := TransitionRole(to); got != UserRoleShelterStaff {
			t.Errorf("TransitionRole(%s) = %s, want ShelterStaff", to, got)
		}
	}
}

func TestValidateTransitionRejectsWrongActor(t *testing.T) {
	err := ValidateTransition(ApplicationStatusSubmitted, ApplicationStatusApproved, UserRoleApplicant)
	if err == nil {
		t.Fatal("applicant approving own application should fail")
	}
	if _, ok := utils.AsInvalidTransitionError(err); !ok {
		t.Fatalf("expected InvalidTransitionError, got %T", err)
	}

	err = ValidateTransition(ApplicationStatusReview, ApplicationStatusWithdrawn, UserRoleShelterStaff)
	if err == nil {
		t.Fatal("shelter staff withdrawing should fail")
	}
}

func TestValidateTransitionRejectsTerminalStates(t *testing.T) {
	for _, from := range []ApplicationStatus{ApplicationStatusRejected, ApplicationStatusWithdrawn} {
		for _, to := range []ApplicationStatus{
			ApplicationStatusReview,
			ApplicationStatusApproved,
			ApplicationStatusRejected,
			ApplicationStatusWithdrawn,
		} {
			err := ValidateTransition(from, to, TransitionRole(to))
			if err == nil {
				t.Errorf("transition out of terminal state %s -> %s should fail", from, to)
			}
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	// Approved records stay live: they occupy the slot until archival policy changes.
	if !ApplicationStatusApproved.IsLive() {
		t.Error("Approved must count as live")
	}
	if ApplicationStatusApproved.IsPending() {
		t.Error("Approved is not pending; it cannot be withdrawn")
	}
	if !ApplicationStatusSubmitted.IsPending() || !ApplicationStatusReview.IsPending() {
		t.Error("Submitted and Review are pending")
	}
	if !ApplicationStatusRejected.IsTerminal() || !ApplicationStatusWithdrawn.IsTerminal() {
		t.Error("Rejected and Withdrawn are terminal")
	}
	if ApplicationStatusApproved.IsTerminal() {
		t.Error("Approved is final for the request but still occupies the live slot")
	}
}
