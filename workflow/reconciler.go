package workflow

import (
	"context"
	"time"

	"github.com/pawnest/adoptions_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ArchivalReconciler sweeps for partial lifecycle states left behind by a
// crash between the steps of an archival move or withdrawal, and converges
// them to the state a completed operation would have produced.
type ArchivalReconciler struct {
	DB     *gorm.DB
	Logger *logrus.Logger

	Interval time.Duration
}

func NewArchivalReconciler(db *gorm.DB, logger *logrus.Logger) *ArchivalReconciler {
	return &ArchivalReconciler{
		DB:       db,
		Logger:   logger,
		Interval: time.Minute,
	}
}

func (r *ArchivalReconciler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		r.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.Interval):
		}
	}
}

// Sweep runs one reconciliation pass. Run calls it on a timer; it is exported
// so a crashed state can also be converged on demand.
func (r *ArchivalReconciler) Sweep(ctx context.Context) {
	if r.DB == nil {
		return
	}
	r.clearTerminalLiveSlots(ctx)
	r.freeOrphanedPendingPets(ctx)
}

type slotResolution int

const (
	resolveClearSlot slotResolution = iota
	resolveDeleteLiveRow
)

// resolveTerminalSlot decides how to release the live slot a terminal record
// is still holding. A rejected record whose archive copy exists is a
// half-finished archival move; deleting the live row completes it. Everything
// else keeps its row and only drops the slot.
func resolveTerminalSlot(status models.ApplicationStatus, archiveCopyExists bool) slotResolution {
	if status == models.ApplicationStatusRejected && archiveCopyExists {
		return resolveDeleteLiveRow
	}
	return resolveClearSlot
}

// A terminal record still holding the live slot blocks every future
// submission for that pet. Clear the slot; if the record was rejected and its
// archive copy exists, finish the move by deleting the live row.
func (r *ArchivalReconciler) clearTerminalLiveSlots(ctx context.Context) {
	db := r.DB.WithContext(ctx)

	var stuck []models.AdoptionApplication
	err := db.
		Where("live_slot IS NOT NULL AND status IN ?", []models.ApplicationStatus{
			models.ApplicationStatusRejected,
			models.ApplicationStatusWithdrawn,
		}).
		Limit(100).
		Find(&stuck).Error
	if err != nil {
		return
	}

	for _, application := range stuck {
		err := db.Transaction(func(tx *gorm.DB) error {
			archiveCopyExists := false
			if application.Status == models.ApplicationStatusRejected {
				var count int64
				if err := tx.Model(&models.ArchivedRejection{}).
					Where("application_id = ?", application.ID).
					Count(&count).Error; err != nil {
					return err
				}
				archiveCopyExists = count > 0
			}
			if resolveTerminalSlot(application.Status, archiveCopyExists) == resolveDeleteLiveRow {
				return tx.Where("id = ?", application.ID).Delete(&models.AdoptionApplication{}).Error
			}
			return tx.Model(&models.AdoptionApplication{}).
				Where("id = ?", application.ID).
				Update("live_slot", nil).Error
		})
		if err != nil {
			if r.Logger != nil {
				r.Logger.WithFields(logrus.Fields{
					"field":          "ArchivalReconciler",
					"application_id": application.ID,
					"pet_id":         application.PetId,
				}).Error("failed to clear terminal live slot: " + err.Error())
			}
			continue
		}
		if r.Logger != nil {
			r.Logger.WithFields(logrus.Fields{
				"field":          "ArchivalReconciler",
				"application_id": application.ID,
				"pet_id":         application.PetId,
				"status":         application.Status,
			}).Warn("cleared live slot on terminal application")
		}
	}
}

// A Pending pet with no live application is unreachable: nobody can apply and
// no transition will ever free it. Put it back to Available.
func (r *ArchivalReconciler) freeOrphanedPendingPets(ctx context.Context) {
	db := r.DB.WithContext(ctx)

	var petIds []int
	err := db.Model(&models.Pet{}).
		Where("availability = ?", models.PetAvailabilityPending).
		Where("id NOT IN (?)", db.Session(&gorm.Session{NewDB: true}).
			Model(&models.AdoptionApplication{}).
			Select("pet_id").
			Where("live_slot IS NOT NULL")).
		Limit(100).
		Pluck("id", &petIds).Error
	if err != nil || len(petIds) == 0 {
		return
	}

	result := db.Model(&models.Pet{}).
		Where("id IN ? AND availability = ?", petIds, models.PetAvailabilityPending).
		Update("availability", models.PetAvailabilityAvailable)
	if result.Error != nil {
		return
	}
	if r.Logger != nil && result.RowsAffected > 0 {
		r.Logger.WithFields(logrus.Fields{
			"field":   "ArchivalReconciler",
			"pet_ids": petIds,
		}).Warn("freed pending pets with no live application")
	}
}
