package models

import (
	"context"
	"errors"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"gorm.io/gorm"
)

// ArchivedRejection is the immutable archive row a rejected application moves
// into. The live row is deleted in the same transaction; the unique
// application_id makes the move idempotent under retry.
type ArchivedRejection struct {
	ID            int  `gorm:"primary_key" json:"id"`
	ApplicationId int  `gorm:"uniqueIndex;not null" json:"application_id"`
	PetId         int  `gorm:"index;not null" json:"pet_id"`
	ApplicantId   int  `gorm:"index;not null" json:"applicant_id"`
	ShelterId     int  `gorm:"index;not null" json:"shelter_id"`

	ApplicationData ApplicationData `gorm:"embedded;embeddedPrefix:data_" json:"application_data"`
	AgreedToTerms   bool            `gorm:"not null" json:"agreed_to_terms"`

	SubmittedAt     time.Time  `gorm:"not null" json:"submitted_at"`
	ReviewedAt      *time.Time `json:"reviewed_at"`
	DecidedAt       time.Time  `gorm:"not null;index" json:"decided_at"`
	RejectionReason string     `gorm:"type:text;not null" json:"rejection_reason"`
	ShelterNotes    *string    `gorm:"type:text" json:"shelter_notes"`

	ArchivedAt time.Time `gorm:"autoCreateTime" json:"archived_at"`
}

// Archive rows are write-once.
func (ArchivedRejection) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("archived rejections are immutable")
}

func (ArchivedRejection) BeforeDelete(tx *gorm.DB) error {
	return errors.New("archived rejections are immutable")
}

func GetArchivedRejectionByApplicationId(ctx context.Context, applicationId int) (*ArchivedRejection, error) {

	db := config.GetDB()
	var result ArchivedRejection

	err := db.WithContext(ctx).Where("application_id = ?", applicationId).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func ListArchivedRejectionsForShelter(ctx context.Context) ([]*ArchivedRejection, error) {

	db := config.GetDB()
	var results []*ArchivedRejection

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	err := db.WithContext(ctx).
		Where("shelter_id = ?", shelterId).
		Order("decided_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
