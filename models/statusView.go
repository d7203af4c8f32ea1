package models

import (
	"context"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
)

// StatusView drives the pet page's primary button for one viewer.
type StatusView struct {
	Disabled   bool         `json:"disabled"`
	Reason     StatusReason `json:"reason"`
	ActionText string       `json:"action_text"`
}

// TerminalMark is the most recent terminal outcome for a pet, drawn from
// withdrawn records and archived rejections.
type TerminalMark struct {
	ApplicantId int
	DecidedAt   time.Time
}

const (
	actionSelectPet = "Select This Pet"
	actionSelect    = "Select"
	actionWithdraw  = "Withdraw"
)

// ComputeStatusView maps the pet's live record (if any) and its latest
// terminal outcome to the view the client renders. Pure; all lookups happen in
// GetPetApplicationStatus.
func ComputeStatusView(live *AdoptionApplication, lastTerminal *TerminalMark, viewerId int) StatusView {
	if live == nil {
		if lastTerminal != nil && lastTerminal.ApplicantId == viewerId {
			// the viewer's own application was rejected or withdrawn; the pet
			// is open again and they may reapply
			return StatusView{Disabled: false, Reason: StatusReasonOwnRejected, ActionText: actionSelect}
		}
		return StatusView{Disabled: false, Reason: StatusReasonNone, ActionText: actionSelectPet}
	}

	if live.Status == ApplicationStatusApproved {
		if live.ApplicantId == viewerId {
			return StatusView{Disabled: true, Reason: StatusReasonOwnApproved}
		}
		return StatusView{Disabled: true, Reason: StatusReasonActiveByOther}
	}

	// pending (Submitted or Review)
	if live.ApplicantId == viewerId {
		return StatusView{Disabled: false, Reason: StatusReasonOwnSubmitted, ActionText: actionWithdraw}
	}
	return StatusView{Disabled: true, Reason: StatusReasonActiveByOther}
}

// GetPetApplicationStatus answers "what does the button on this pet's page
// look like for this viewer".
func GetPetApplicationStatus(ctx context.Context, petId int, viewerId int) (*StatusView, error) {

	db := config.GetDB()

	if _, err := GetPet(ctx, petId); err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	var live AdoptionApplication
	err := db.WithContext(ctx).
		Where("pet_id = ? AND live_slot IS NOT NULL", petId).
		First(&live).Error
	if err == nil {
		view := ComputeStatusView(&live, nil, viewerId)
		return &view, nil
	}

	lastTerminal, err := latestTerminalMark(ctx, petId)
	if err != nil {
		return nil, err
	}

	view := ComputeStatusView(nil, lastTerminal, viewerId)
	return &view, nil
}

// latestTerminalMark returns the most recent terminal outcome across the
// withdrawn records still in the live table and the rejection archive.
func latestTerminalMark(ctx context.Context, petId int) (*TerminalMark, error) {

	db := config.GetDB()
	var mark *TerminalMark

	var withdrawn AdoptionApplication
	err := db.WithContext(ctx).
		Where("pet_id = ? AND status = ?", petId, ApplicationStatusWithdrawn).
		Order("decided_at DESC").
		First(&withdrawn).Error
	if err == nil && withdrawn.DecidedAt != nil {
		mark = &TerminalMark{ApplicantId: withdrawn.ApplicantId, DecidedAt: *withdrawn.DecidedAt}
	}

	var rejection ArchivedRejection
	err = db.WithContext(ctx).
		Where("pet_id = ?", petId).
		Order("decided_at DESC").
		First(&rejection).Error
	if err == nil {
		if mark == nil || rejection.DecidedAt.After(mark.DecidedAt) {
			mark = &TerminalMark{ApplicantId: rejection.ApplicantId, DecidedAt: rejection.DecidedAt}
		}
	}

	return mark, nil
}
