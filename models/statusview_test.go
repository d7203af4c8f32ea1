package models

import (
	"testing"
	"time"
)

func liveApp(status ApplicationStatus, applicantId int) *AdoptionApplication {
	live := true
	return &AdoptionApplication{
		ID:          1,
		PetId:       10,
		LiveSlot:    &live,
		ApplicantId: applicantId,
		Status:      status,
	}
}

func TestComputeStatusViewNoLiveApplication(t *testing.T) {
	view := ComputeStatusView(nil, nil, 7)
	if view.Disabled {
		t.Error("button must be enabled when no live application exists")
	}
	if view.Reason != StatusReasonNone {
		t.Errorf("reason = %q, want empty", view.Reason)
	}
	if view.ActionText != "Select This Pet" {
		t.Errorf("action = %q, want Select This Pet", view.ActionText)
	}
}

func TestComputeStatusViewOwnPending(t *testing.T) {
	for _, status := range []ApplicationStatus{ApplicationStatusSubmitted, ApplicationStatusReview} {
		view := ComputeStatusView(liveApp(status, 7), nil, 7)
		if view.Disabled {
			t.Errorf("%s: owner's button must stay enabled (it becomes Withdraw)", status)
		}
		if view.Reason != StatusReasonOwnSubmitted {
			t.Errorf("%s: reason = %q, want own_submitted", status, view.Reason)
		}
		if view.ActionText != "Withdraw" {
			t.Errorf("%s: action = %q, want Withdraw", status, view.ActionText)
		}
	}
}

func TestComputeStatusViewOtherPending(t *testing.T) {
	view := ComputeStatusView(liveApp(ApplicationStatusReview, 7), nil, 8)
	if !view.Disabled {
		t.Error("another applicant's pending application must disable the button")
	}
	if view.Reason != StatusReasonActiveByOther {
		t.Errorf("reason = %q, want active_by_other", view.Reason)
	}
}

func TestComputeStatusViewOwnApproved(t *testing.T) {
	view := ComputeStatusView(liveApp(ApplicationStatusApproved, 7), nil, 7)
	if !view.Disabled {
		t.Error("approved application disables the button even for its owner")
	}
	if view.Reason != StatusReasonOwnApproved {
		t.Errorf("reason = %q, want own_approved", view.Reason)
	}
}

// Scenario D: the pet is approved for someone else. The viewer sees the same
// code as any other taken pet, not who it was approved for.
func TestComputeStatusViewOtherApproved(t *testing.T) {
	view := ComputeStatusView(liveApp(ApplicationStatusApproved, 7), nil, 8)
	if !view.Disabled {
		t.Error("another applicant's approval must disable the button")
	}
	if view.Reason != StatusReasonActiveByOther {
		t.Errorf("reason = %q, want active_by_other", view.Reason)
	}
}

func TestComputeStatusViewAfterOwnRejection(t *testing.T) {
	mark := &TerminalMark{ApplicantId: 7, DecidedAt: time.Now()}
	view := ComputeStatusView(nil, mark, 7)
	if view.Disabled {
		t.Error("viewer may reapply after their rejection")
	}
	if view.Reason != StatusReasonOwnRejected {
		t.Errorf("reason = %q, want own_rejected", view.Reason)
	}
	if view.ActionText != "Select" {
		t.Errorf("action = %q, want Select", view.ActionText)
	}
}

func TestComputeStatusViewAfterSomeoneElsesRejection(t *testing.T) {
	mark := &TerminalMark{ApplicantId: 9, DecidedAt: time.Now()}
	view := ComputeStatusView(nil, mark, 7)
	if view.Disabled {
		t.Error("pet is open; button enabled")
	}
	if view.Reason != StatusReasonNone {
		t.Errorf("someone else's rejection is not the viewer's business; reason = %q", view.Reason)
	}
}
