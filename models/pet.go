package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Pet struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ShelterId    int             `gorm:"index;not null" json:"shelter_id" binding:"required"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	Species      string          `gorm:"size:50;not null" json:"species" binding:"required"`
	Breed        string          `gorm:"size:100" json:"breed"`
	AgeMonths    int             `gorm:"not null;default:0" json:"age_months"`
	Description  string          `gorm:"type:text" json:"description"`
	AdoptionFee  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"adoption_fee"`
	Availability PetAvailability `gorm:"type:enum('Available', 'Pending', 'Adopted', 'Archived');default:'Available';index" json:"availability"`
	PhotoURL     *string         `json:"photo_url"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPet struct {
	Name        string          `json:"name" binding:"required"`
	Species     string          `json:"species" binding:"required"`
	Breed       string          `json:"breed"`
	AgeMonths   int             `json:"age_months"`
	Description string          `json:"description"`
	AdoptionFee decimal.Decimal `json:"adoption_fee"`
}

func CreatePet(ctx context.Context, input *NewPet) (*Pet, error) {

	db := config.GetDB()

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}
	if input.AdoptionFee.IsNegative() {
		return nil, utils.NewValidationError("adoption fee cannot be negative", map[string]string{"adoption_fee": "min"})
	}
	if input.AgeMonths < 0 {
		return nil, utils.NewValidationError("age cannot be negative", map[string]string{"age_months": "min"})
	}

	pet := Pet{
		ShelterId:    shelterId,
		Name:         input.Name,
		Species:      input.Species,
		Breed:        input.Breed,
		AgeMonths:    input.AgeMonths,
		Description:  input.Description,
		AdoptionFee:  input.AdoptionFee,
		Availability: PetAvailabilityAvailable,
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pet).Error; err != nil {
			return err
		}
		return SaveHistoryCreate(tx, shelterId, pet.ID, "Pet", pet, fmt.Sprintf("Pet %s listed", pet.Name))
	})
	if err != nil {
		return nil, err
	}
	return &pet, nil
}

func GetPet(ctx context.Context, id int) (*Pet, error) {
	return utils.FetchSingleModel[Pet](ctx, id)
}

func ListPetsForShelter(ctx context.Context) ([]*Pet, error) {

	db := config.GetDB()
	var results []*Pet

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	err := db.WithContext(ctx).
		Where("shelter_id = ?", shelterId).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func ListAvailablePets(ctx context.Context) ([]*Pet, error) {

	db := config.GetDB()
	var results []*Pet

	err := db.WithContext(ctx).
		Where("availability = ?", PetAvailabilityAvailable).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

type EditPet struct {
	Name        *string          `json:"name"`
	Species     *string          `json:"species"`
	Breed       *string          `json:"breed"`
	AgeMonths   *int             `json:"age_months"`
	Description *string          `json:"description"`
	AdoptionFee *decimal.Decimal `json:"adoption_fee"`
}

func UpdatePet(ctx context.Context, id int, input *EditPet) (*Pet, error) {

	db := config.GetDB()

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	pet, err := utils.FetchModel[Pet](ctx, shelterId, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Species != nil {
		updates["species"] = *input.Species
	}
	if input.Breed != nil {
		updates["breed"] = *input.Breed
	}
	if input.AgeMonths != nil {
		if *input.AgeMonths < 0 {
			return nil, utils.NewValidationError("age cannot be negative", map[string]string{"age_months": "min"})
		}
		updates["age_months"] = *input.AgeMonths
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.AdoptionFee != nil {
		if input.AdoptionFee.IsNegative() {
			return nil, utils.NewValidationError("adoption fee cannot be negative", map[string]string{"adoption_fee": "min"})
		}
		updates["adoption_fee"] = *input.AdoptionFee
	}
	if len(updates) == 0 {
		return pet, nil
	}

	if err := db.WithContext(ctx).Model(pet).Updates(updates).Error; err != nil {
		return nil, err
	}
	return pet, nil
}

// ArchivePet delists a pet. A pet with a pending application cannot be
// archived; the application must be decided or withdrawn first.
func ArchivePet(ctx context.Context, id int) (*Pet, error) {

	db := config.GetDB()

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	var pet Pet
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND shelter_id = ?", id, shelterId).
			First(&pet).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		if pet.Availability == PetAvailabilityPending {
			return utils.NewValidationError("pet has a pending application", map[string]string{"availability": "pending"})
		}
		if pet.Availability == PetAvailabilityArchived {
			return nil
		}

		before := pet
		if err := tx.Model(&pet).Update("availability", PetAvailabilityArchived).Error; err != nil {
			return err
		}
		pet.Availability = PetAvailabilityArchived
		return SaveHistoryTransition(tx, shelterId, pet.ID, "Pet", before, pet, fmt.Sprintf("Pet %s archived", pet.Name))
	})
	if err != nil {
		return nil, err
	}
	return &pet, nil
}

// SetPetPhoto stores the access URLs of an uploaded photo and its thumbnail.
func SetPetPhoto(ctx context.Context, id int, photoURL string, thumbnailURL string) (*Pet, error) {

	db := config.GetDB()

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	var pet Pet
	if err := db.WithContext(ctx).Where("id = ? AND shelter_id = ?", id, shelterId).First(&pet).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	if err := db.WithContext(ctx).Model(&pet).Updates(map[string]interface{}{
		"photo_url":     photoURL,
		"thumbnail_url": thumbnailURL,
	}).Error; err != nil {
		return nil, err
	}
	pet.PhotoURL = &photoURL
	pet.ThumbnailURL = &thumbnailURL
	return &pet, nil
}
