package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/profiles"
	"github.com/pawnest/adoptions_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validate = validator.New()

// profileClient prefills application forms from the external identity service.
// Nil when PROFILE_SERVICE_URL is unset; prefill is best-effort either way.
var profileClient = profiles.NewClientFromEnv()

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// ApplicationData is the applicant-supplied form content. It travels with the
// record into the rejection archive.
type ApplicationData struct {
	FullName        string `gorm:"size:100;not null" json:"full_name" validate:"required"`
	Email           string `gorm:"size:100;not null" json:"email" validate:"required,email"`
	Phone           string `gorm:"size:30;not null" json:"phone" validate:"required"`
	Address         string `gorm:"type:text;not null" json:"address" validate:"required"`
	HousingType     string `gorm:"size:50;not null" json:"housing_type" validate:"required"`
	HasYard         bool   `gorm:"not null;default:false" json:"has_yard"`
	HouseholdSize   int    `gorm:"not null;default:1" json:"household_size" validate:"min=1"`
	HasOtherPets    bool   `gorm:"not null;default:false" json:"has_other_pets"`
	ExperienceNotes string `gorm:"type:text" json:"experience_notes"`
}

// AdoptionApplication is the live lifecycle record. LiveSlot is true while the
// record occupies the pet's single live slot (Submitted, Review, Approved) and
// NULL once terminal. MySQL unique indexes ignore NULLs, so the composite
// unique index on (pet_id, live_slot) admits at most one live record per pet
// while keeping any number of terminal ones. Claiming the slot is a single
// conditional insert, never a read-then-write.
type AdoptionApplication struct {
	ID          int               `gorm:"primary_key" json:"id"`
	PetId       int               `gorm:"not null;index:uniq_live_application,unique,priority:1" json:"pet_id" binding:"required"`
	LiveSlot    *bool             `gorm:"index:uniq_live_application,unique,priority:2" json:"-"`
	ApplicantId int               `gorm:"index;not null" json:"applicant_id"`
	ShelterId   int               `gorm:"index;not null" json:"shelter_id"`
	Status      ApplicationStatus `gorm:"type:enum('Submitted', 'Review', 'Approved', 'Rejected', 'Withdrawn');default:'Submitted';index" json:"status"`

	ApplicationData ApplicationData `gorm:"embedded;embeddedPrefix:data_" json:"application_data"`
	AgreedToTerms   bool            `gorm:"not null" json:"agreed_to_terms"`

	SubmittedAt time.Time  `gorm:"not null;index" json:"submitted_at"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	DecidedAt   *time.Time `gorm:"index" json:"decided_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewApplication struct {
	PetId           int             `json:"pet_id" binding:"required"`
	ApplicationData ApplicationData `json:"application_data"`
	AgreedToTerms   bool            `json:"agreed_to_terms"`
}

func prefillFromProfile(ctx context.Context, userId int, data *ApplicationData) {
	if profileClient == nil {
		return
	}
	profile, err := profileClient.Resolve(ctx, userId)
	if err != nil {
		return
	}
	if data.FullName == "" {
		data.FullName = profile.FullName
	}
	if data.Email == "" {
		data.Email = profile.Email
	}
	if data.Phone == "" {
		data.Phone = profile.Phone
	}
	if data.Address == "" {
		data.Address = profile.Address
	}
}

// classifySubmitConflict inspects the surviving live record after a lost
// insert race and maps it to the right reason code.
func classifySubmitConflict(tx *gorm.DB, petId int, applicantId int) error {
	var live AdoptionApplication
	err := tx.Where("pet_id = ? AND live_slot IS NOT NULL", petId).First(&live).Error
	if err != nil {
		// slot freed between insert and read; caller may simply retry
		return utils.NewConflictError(utils.ConflictReasonActiveByOther)
	}
	if live.ApplicantId == applicantId {
		return utils.NewConflictError(utils.ConflictReasonOwnSubmitted)
	}
	return utils.NewConflictError(utils.ConflictReasonActiveByOther)
}

// SubmitApplication claims the pet's live slot and creates the record in one
// transaction. Losing the claim returns ConflictError; no partial state is
// left behind.
func SubmitApplication(ctx context.Context, input *NewApplication) (*AdoptionApplication, error) {

	db := config.GetDB()

	applicantId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || applicantId == 0 {
		return nil, errors.New("user id is required")
	}

	pet, err := GetPet(ctx, input.PetId)
	if err != nil {
		return nil, err
	}
	switch pet.Availability {
	case PetAvailabilityAdopted:
		return nil, utils.NewConflictError(utils.ConflictReasonActiveByOther)
	case PetAvailabilityArchived:
		return nil, utils.NewValidationError("pet is not open for adoption", map[string]string{"pet_id": "archived"})
	}

	data := input.ApplicationData
	prefillFromProfile(ctx, applicantId, &data)

	if !input.AgreedToTerms {
		return nil, utils.NewValidationError("terms must be accepted", map[string]string{"agreed_to_terms": "required"})
	}
	if err := validate.Struct(&data); err != nil {
		return nil, utils.NewValidationError("invalid application data", utils.ProcessValidationErrors(err))
	}
	if !utils.IsValidEmail(data.Email) {
		return nil, utils.NewValidationError("invalid email address", map[string]string{"email": "email"})
	}
	if err := utils.ValidatePhoneNumber(data.Phone, utils.CountryCode); err != nil {
		return nil, utils.NewValidationError("invalid phone number", map[string]string{"phone": "phone"})
	}

	application := AdoptionApplication{
		PetId:           pet.ID,
		LiveSlot:        utils.NewTrue(),
		ApplicantId:     applicantId,
		ShelterId:       pet.ShelterId,
		Status:          ApplicationStatusSubmitted,
		ApplicationData: data,
		AgreedToTerms:   input.AgreedToTerms,
		SubmittedAt:     time.Now().UTC(),
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&application).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return classifySubmitConflict(tx, pet.ID, applicantId)
			}
			return err
		}

		// claim the pet itself; 0 rows means another transaction moved it first
		result := tx.Model(&Pet{}).
			Where("id = ? AND availability = ?", pet.ID, PetAvailabilityAvailable).
			Update("availability", PetAvailabilityPending)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return utils.NewConflictError(utils.ConflictReasonActiveByOther)
		}

		if err := SaveHistoryCreate(tx, pet.ShelterId, application.ID, "AdoptionApplication", application,
			fmt.Sprintf("Application submitted for pet %s", pet.Name)); err != nil {
			return err
		}
		return PublishAdoptionEvent(ctx, tx, pet.ShelterId, pet.ID, application.ID, EventApplicationSubmitted, application)
	})
	if err != nil {
		return nil, err
	}
	return &application, nil
}

func actorRoleFromContext(ctx context.Context) UserRole {
	role, _ := utils.GetUserRoleFromContext(ctx)
	return UserRole(role)
}

func fetchApplicationForUpdate(tx *gorm.DB, id int) (*AdoptionApplication, error) {
	var application AdoptionApplication
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&application, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &application, nil
}

func requireShelterOwnership(ctx context.Context, application *AdoptionApplication) error {
	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return errors.New("shelter id is required")
	}
	if application.ShelterId != shelterId {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// MoveToReview advances a submitted application to Review. Shelter staff only.
func MoveToReview(ctx context.Context, id int) (*AdoptionApplication, error) {

	db := config.GetDB()
	var application *AdoptionApplication

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		application, err = fetchApplicationForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := requireShelterOwnership(ctx, application); err != nil {
			return err
		}
		if err := ValidateTransition(application.Status, ApplicationStatusReview, actorRoleFromContext(ctx)); err != nil {
			return err
		}

		before := *application
		now := time.Now().UTC()
		updates := map[string]interface{}{"status": ApplicationStatusReview}
		if application.ReviewedAt == nil {
			updates["reviewed_at"] = now
			application.ReviewedAt = &now
		}
		if err := tx.Model(application).Updates(updates).Error; err != nil {
			return err
		}
		application.Status = ApplicationStatusReview

		return SaveHistoryTransition(tx, application.ShelterId, application.ID, "AdoptionApplication",
			before, application, "Application moved to review")
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// ApproveApplication finalizes the adoption: the record becomes Approved and
// keeps the live slot, the pet becomes Adopted, and a scheduling grant is
// created for exactly this applicant/pet pair. The scheduler is notified via
// the application.approved event.
func ApproveApplication(ctx context.Context, id int) (*AdoptionApplication, error) {

	db := config.GetDB()
	var application *AdoptionApplication

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		application, err = fetchApplicationForUpdate(tx, id)
		if err != nil {
			return err
		}
		if err := requireShelterOwnership(ctx, application); err != nil {
			return err
		}
		if err := ValidateTransition(application.Status, ApplicationStatusApproved, actorRoleFromContext(ctx)); err != nil {
			return err
		}

		before := *application
		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":     ApplicationStatusApproved,
			"decided_at": now,
		}
		if application.ReviewedAt == nil {
			updates["reviewed_at"] = now
			application.ReviewedAt = &now
		}
		if err := tx.Model(application).Updates(updates).Error; err != nil {
			return err
		}
		application.Status = ApplicationStatusApproved
		application.DecidedAt = &now

		result := tx.Model(&Pet{}).
			Where("id = ? AND availability = ?", application.PetId, PetAvailabilityPending).
			Update("availability", PetAvailabilityAdopted)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return &utils.ArchivalConsistencyError{
				ApplicationId: application.ID,
				Message:       fmt.Sprintf("pet %d not pending at approval", application.PetId),
			}
		}

		if _, err := CreateSchedulingGrant(tx, application.PetId, application.ID, application.ApplicantId, application.ShelterId); err != nil {
			return err
		}
		if err := SaveHistoryTransition(tx, application.ShelterId, application.ID, "AdoptionApplication",
			before, application, "Application approved"); err != nil {
			return err
		}
		return PublishAdoptionEvent(ctx, tx, application.ShelterId, application.PetId, application.ID,
			EventApplicationApproved, application)
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

type RejectionInput struct {
	RejectionReason string  `json:"rejection_reason" binding:"required"`
	ShelterNotes    *string `json:"shelter_notes"`
}

// petRedisLock is a best-effort cross-instance lock around the archival move.
// If redis is unavailable the move proceeds; the MySQL advisory lock inside
// the transaction still serializes it safely.
func petRedisLock(ctx context.Context, petId int) func() {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("lock:pet:%d", petId), 30*time.Second, nil)
	if err != nil {
		return func() {}
	}
	return func() { _ = lock.Release(ctx) }
}

// RejectApplication performs the archival move: copy the record into the
// rejection archive, delete the live record, and free the pet, all in one
// transaction. Retrying after a crash converges to the same end state without
// duplicating archive rows.
func RejectApplication(ctx context.Context, id int, input *RejectionInput) (*ArchivedRejection, error) {

	db := config.GetDB()

	if input == nil || strings.TrimSpace(input.RejectionReason) == "" {
		return nil, utils.NewValidationError("rejection reason is required", map[string]string{"rejection_reason": "required"})
	}

	// locate the record outside the transaction to learn the pet id
	var probe AdoptionApplication
	if err := db.WithContext(ctx).First(&probe, id).Error; err != nil {
		// already moved? a retry lands here
		archived, archErr := GetArchivedRejectionByApplicationId(ctx, id)
		if archErr == nil {
			return archived, nil
		}
		return nil, utils.ErrorRecordNotFound
	}

	release := petRedisLock(ctx, probe.PetId)
	defer release()

	var archived *ArchivedRejection
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePetLock(tx, probe.PetId); err != nil {
			return err
		}
		defer ReleasePetLock(tx, probe.PetId)

		var application AdoptionApplication
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&application, id).Error
		if err != nil {
			// live row gone: converge by finishing the cleanup
			var existing ArchivedRejection
			if err := tx.Where("application_id = ?", id).First(&existing).Error; err != nil {
				return &utils.ArchivalConsistencyError{
					ApplicationId: id,
					Message:       "application missing from both live table and archive",
				}
			}
			archived = &existing
			return freePetIfPending(tx, existing.PetId)
		}

		if err := requireShelterOwnership(ctx, &application); err != nil {
			return err
		}
		if err := ValidateTransition(application.Status, ApplicationStatusRejected, actorRoleFromContext(ctx)); err != nil {
			return err
		}

		now := time.Now().UTC()
		record := ArchivedRejection{
			ApplicationId:   application.ID,
			PetId:           application.PetId,
			ApplicantId:     application.ApplicantId,
			ShelterId:       application.ShelterId,
			ApplicationData: application.ApplicationData,
			AgreedToTerms:   application.AgreedToTerms,
			SubmittedAt:     application.SubmittedAt,
			ReviewedAt:      application.ReviewedAt,
			DecidedAt:       now,
			RejectionReason: strings.TrimSpace(input.RejectionReason),
			ShelterNotes:    input.ShelterNotes,
		}
		if err := tx.Create(&record).Error; err != nil {
			if !isDuplicateKeyErr(err) {
				return err
			}
			// a previous attempt archived this record already
			var existing ArchivedRejection
			if err := tx.Where("application_id = ?", application.ID).First(&existing).Error; err != nil {
				return err
			}
			record = existing
		}
		archived = &record

		if err := tx.Where("id = ?", application.ID).Delete(&AdoptionApplication{}).Error; err != nil {
			return err
		}
		if err := freePetIfPending(tx, application.PetId); err != nil {
			return err
		}

		if err := SaveHistoryTransition(tx, application.ShelterId, application.ID, "AdoptionApplication",
			application, record, "Application rejected and archived"); err != nil {
			return err
		}
		return PublishAdoptionEvent(ctx, tx, application.ShelterId, application.PetId, application.ID,
			EventApplicationRejected, record)
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

func freePetIfPending(tx *gorm.DB, petId int) error {
	return tx.Model(&Pet{}).
		Where("id = ? AND availability = ?", petId, PetAvailabilityPending).
		Update("availability", PetAvailabilityAvailable).Error
}

// WithdrawApplication lets the owning applicant retract a pending application.
// The record stays behind as a terminal audit row; the pet goes back to
// Available.
func WithdrawApplication(ctx context.Context, id int) (*AdoptionApplication, error) {

	db := config.GetDB()

	applicantId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || applicantId == 0 {
		return nil, errors.New("user id is required")
	}

	var application *AdoptionApplication
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		application, err = fetchApplicationForUpdate(tx, id)
		if err != nil {
			// rejection is an archival move, so a rejected application has no
			// live row anymore; report the terminal state, not a missing record
			if _, archErr := GetArchivedRejectionByApplicationId(ctx, id); archErr == nil {
				return &utils.InvalidTransitionError{
					From: string(ApplicationStatusRejected),
					To:   string(ApplicationStatusWithdrawn),
				}
			}
			return err
		}
		if application.ApplicantId != applicantId {
			return &utils.InvalidTransitionError{
				From:    string(application.Status),
				To:      string(ApplicationStatusWithdrawn),
				Message: "only the applicant who submitted may withdraw",
			}
		}
		if err := ValidateTransition(application.Status, ApplicationStatusWithdrawn, UserRoleApplicant); err != nil {
			return err
		}

		before := *application
		now := time.Now().UTC()
		if err := tx.Model(application).Updates(map[string]interface{}{
			"status":     ApplicationStatusWithdrawn,
			"live_slot":  nil,
			"decided_at": now,
		}).Error; err != nil {
			return err
		}
		application.Status = ApplicationStatusWithdrawn
		application.LiveSlot = nil
		application.DecidedAt = &now

		if err := freePetIfPending(tx, application.PetId); err != nil {
			return err
		}
		if err := SaveHistoryTransition(tx, application.ShelterId, application.ID, "AdoptionApplication",
			before, application, "Application withdrawn by applicant"); err != nil {
			return err
		}
		return PublishAdoptionEvent(ctx, tx, application.ShelterId, application.PetId, application.ID,
			EventApplicationWithdrawn, application)
	})
	if err != nil {
		return nil, err
	}
	return application, nil
}

// TransitionApplication dispatches a shelter-side lifecycle action.
func TransitionApplication(ctx context.Context, id int, action TransitionAction, input *RejectionInput) (interface{}, error) {
	switch action {
	case TransitionActionReview:
		return MoveToReview(ctx, id)
	case TransitionActionApprove:
		return ApproveApplication(ctx, id)
	case TransitionActionReject:
		return RejectApplication(ctx, id, input)
	}
	return nil, fmt.Errorf("invalid transition action %q", action)
}

// ApplicationListItem merges live records and archived rejections into one
// applicant-facing history view.
type ApplicationListItem struct {
	ApplicationId   int               `json:"application_id"`
	PetId           int               `json:"pet_id"`
	Status          ApplicationStatus `json:"status"`
	SubmittedAt     time.Time         `json:"submitted_at"`
	DecidedAt       *time.Time        `json:"decided_at"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
}

func ListApplicationsForApplicant(ctx context.Context) ([]*ApplicationListItem, error) {

	db := config.GetDB()

	applicantId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || applicantId == 0 {
		return nil, errors.New("user id is required")
	}

	var live []AdoptionApplication
	if err := db.WithContext(ctx).
		Where("applicant_id = ?", applicantId).
		Find(&live).Error; err != nil {
		return nil, err
	}

	var rejected []ArchivedRejection
	if err := db.WithContext(ctx).
		Where("applicant_id = ?", applicantId).
		Find(&rejected).Error; err != nil {
		return nil, err
	}

	results := make([]*ApplicationListItem, 0, len(live)+len(rejected))
	for _, a := range live {
		results = append(results, &ApplicationListItem{
			ApplicationId: a.ID,
			PetId:         a.PetId,
			Status:        a.Status,
			SubmittedAt:   a.SubmittedAt,
			DecidedAt:     a.DecidedAt,
		})
	}
	for _, r := range rejected {
		reason := r.RejectionReason
		decidedAt := r.DecidedAt
		results = append(results, &ApplicationListItem{
			ApplicationId:   r.ApplicationId,
			PetId:           r.PetId,
			Status:          ApplicationStatusRejected,
			SubmittedAt:     r.SubmittedAt,
			DecidedAt:       &decidedAt,
			RejectionReason: &reason,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].SubmittedAt.After(results[j].SubmittedAt)
	})
	return results, nil
}

func GetApplication(ctx context.Context, id int) (*AdoptionApplication, error) {

	db := config.GetDB()
	var result AdoptionApplication

	err := db.WithContext(ctx).First(&result, id).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}
