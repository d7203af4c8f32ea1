package models

import (
	"context"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"gorm.io/gorm"
)

// SchedulingGrant records that exactly one applicant may book a meet-and-greet
// for a pet. Created in the approval transaction; the scheduler learns about
// it from the application.approved event, not by polling status.
type SchedulingGrant struct {
	ID            int       `gorm:"primary_key" json:"id"`
	PetId         int       `gorm:"uniqueIndex;not null" json:"pet_id"`
	ApplicationId int       `gorm:"uniqueIndex;not null" json:"application_id"`
	ApplicantId   int       `gorm:"index;not null" json:"applicant_id"`
	ShelterId     int       `gorm:"index;not null" json:"shelter_id"`
	GrantedAt     time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

func CreateSchedulingGrant(tx *gorm.DB, petId int, applicationId int, applicantId int, shelterId int) (*SchedulingGrant, error) {
	grant := SchedulingGrant{
		PetId:         petId,
		ApplicationId: applicationId,
		ApplicantId:   applicantId,
		ShelterId:     shelterId,
	}
	if err := tx.Create(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

func GetSchedulingGrant(ctx context.Context, petId int) (*SchedulingGrant, error) {

	db := config.GetDB()
	var result SchedulingGrant

	err := db.WithContext(ctx).Where("pet_id = ?", petId).First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func HasSchedulingGrant(ctx context.Context, petId int, applicantId int) (bool, error) {

	db := config.GetDB()
	var count int64

	err := db.WithContext(ctx).Model(&SchedulingGrant{}).
		Where("pet_id = ? AND applicant_id = ?", petId, applicantId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
