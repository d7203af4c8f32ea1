package models

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquirePetLock serializes lifecycle writes per pet across instances using
// MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that performs the lifecycle write.
func AcquirePetLock(tx *gorm.DB, petId int) error {
	lockName := fmt.Sprintf("pet:%d", petId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire pet lock for pet_id=%d", petId)
	}
	return nil
}

func ReleasePetLock(tx *gorm.DB, petId int) {
	lockName := fmt.Sprintf("pet:%d", petId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
