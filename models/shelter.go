package models

import (
	"context"
	"errors"

	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
)

type Shelter struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:30" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	Timezone  string    `gorm:"size:50" json:"timezone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewShelter struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
}

func CreateShelter(ctx context.Context, input *NewShelter) (*Shelter, error) {
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, utils.NewValidationError("invalid email", map[string]string{"email": "email"})
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return nil, utils.NewValidationError("invalid phone number", map[string]string{"phone": "phone"})
		}
	}

	db := config.GetDB()
	shelter := Shelter{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		Timezone: input.Timezone,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&shelter).Error; err != nil {
		return nil, err
	}
	return &shelter, nil
}

func GetShelter(ctx context.Context, id int) (*Shelter, error) {
	return utils.FetchSingleModel[Shelter](ctx, id)
}

func ValidateShelterId(ctx context.Context, id int) error {
	if id == 0 {
		return errors.New("shelter id is required")
	}

	var count int64
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Shelter{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
