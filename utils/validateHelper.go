package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/pawnest/adoptions_backend/config"
)

// check if id exists, using shelter_id in WHERE, return RecordNotFound Error
func ValidateResourceId[T any](ctx context.Context, shelterId int, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, shelterId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, shelterId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, shelterId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, shelterId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}

// count records, using WHERE shelter_id = ? AND $condition
// shelter_id can be zero for admin user
func ResourceCountWhere[T any](ctx context.Context, shelterId int, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if shelterId != 0 {
		dbCtx.Where("shelter_id = ?", shelterId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
