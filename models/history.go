package models

import (
	"context"
	"errors"
	"time"

	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"gorm.io/gorm"
)

type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	ShelterId     int       `gorm:"index;not null" json:"shelter_id"`
	ActionType    string    `gorm:"size:20;not null" json:"action_type" binding:"required"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	shelterId int,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var history History

	b, _ := utils.MarshalToJSON(before)
	a, _ := utils.MarshalToJSON(after)

	ctx := tx.Statement.Context
	// get userId, userName from context
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user name is required")
	}

	history.ShelterId = shelterId
	history.ActionType = actionType
	history.Before = b
	history.After = a
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName

	err = tx.Create(&history).Error
	return err
}

func SaveHistoryCreate(tx *gorm.DB, shelterId int, id int, referenceType string, obj interface{}, description string) error {
	return createHistory(tx, shelterId, "CREATE", id, referenceType, nil, obj, description)
}

func SaveHistoryTransition(tx *gorm.DB, shelterId int, id int, referenceType string, before interface{}, after interface{}, description string) error {
	return createHistory(tx, shelterId, "TRANSITION", id, referenceType, before, after, description)
}

func SaveHistoryDelete(tx *gorm.DB, shelterId int, id int, referenceType string, obj interface{}, description string) error {
	return createHistory(tx, shelterId, "DELETE", id, referenceType, obj, nil, description)
}

func GetHistories(ctx context.Context, referenceId *int, referenceType *string, userId *int) ([]*History, error) {

	db := config.GetDB()
	var results []*History

	shelterId, ok := utils.GetShelterIdFromContext(ctx)
	if !ok || shelterId == 0 {
		return nil, errors.New("shelter id is required")
	}

	dbCtx := db.WithContext(ctx).Where("shelter_id = ?", shelterId)
	if referenceId != nil && *referenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", referenceId)
	}
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", referenceType)
	}
	if userId != nil && *userId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", userId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
