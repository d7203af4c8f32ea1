package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type PetAvailability string

const (
	PetAvailabilityAvailable PetAvailability = "Available"
	PetAvailabilityPending   PetAvailability = "Pending"
	PetAvailabilityAdopted   PetAvailability = "Adopted"
	PetAvailabilityArchived  PetAvailability = "Archived"
)

func (t *PetAvailability) Scan(value interface{}) error {
	str, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("pet availability must be string")
		}
		*t = PetAvailability(s)
		return nil
	}
	*t = PetAvailability(str)
	return nil
}

func (t PetAvailability) Value() (driver.Value, error) {
	return string(t), nil
}

// Claimed reports whether the pet is currently subject to a live or approved
// application.
func (t PetAvailability) Claimed() bool {
	return t == PetAvailabilityPending || t == PetAvailabilityAdopted
}

type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "Submitted"
	ApplicationStatusReview    ApplicationStatus = "Review"
	ApplicationStatusApproved  ApplicationStatus = "Approved"
	ApplicationStatusRejected  ApplicationStatus = "Rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "Withdrawn"
)

func (s *ApplicationStatus) Scan(value interface{}) error {
	str, ok := value.([]byte)
	if !ok {
		v, ok := value.(string)
		if !ok {
			return errors.New("application status must be string")
		}
		*s = ApplicationStatus(v)
		return nil
	}
	*s = ApplicationStatus(str)
	return nil
}

func (s ApplicationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Terminal statuses never transition again.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case ApplicationStatusRejected, ApplicationStatusWithdrawn:
		return true
	}
	return false
}

// Live statuses occupy the pet's single live slot. Approved records stay live:
// the exclusivity invariant counts them.
func (s ApplicationStatus) IsLive() bool {
	switch s {
	case ApplicationStatusSubmitted, ApplicationStatusReview, ApplicationStatusApproved:
		return true
	}
	return false
}

// Pending statuses can still be withdrawn by the applicant.
func (s ApplicationStatus) IsPending() bool {
	return s == ApplicationStatusSubmitted || s == ApplicationStatusReview
}

// StatusReason is the closed enum of reason codes driving client affordances.
type StatusReason string

const (
	StatusReasonNone          StatusReason = ""
	StatusReasonActiveByOther StatusReason = "active_by_other"
	StatusReasonOwnSubmitted  StatusReason = "own_submitted"
	StatusReasonOwnApproved   StatusReason = "own_approved"
	StatusReasonOwnRejected   StatusReason = "own_rejected"
)

type UserRole string

const (
	UserRoleApplicant    UserRole = "Applicant"
	UserRoleShelterStaff UserRole = "ShelterStaff"
	UserRoleAdmin        UserRole = "Admin"
)

type AdoptionEventType string

const (
	EventApplicationSubmitted AdoptionEventType = "application.submitted"
	EventApplicationApproved  AdoptionEventType = "application.approved"
	EventApplicationRejected  AdoptionEventType = "application.rejected"
	EventApplicationWithdrawn AdoptionEventType = "application.withdrawn"
)

// TransitionAction is the shelter-facing action on transitionApplication.
type TransitionAction string

const (
	TransitionActionReview  TransitionAction = "review"
	TransitionActionApprove TransitionAction = "approve"
	TransitionActionReject  TransitionAction = "reject"
)

func ParseTransitionAction(s string) (TransitionAction, error) {
	switch TransitionAction(s) {
	case TransitionActionReview, TransitionActionApprove, TransitionActionReject:
		return TransitionAction(s), nil
	}
	return "", fmt.Errorf("invalid transition action %q", s)
}
