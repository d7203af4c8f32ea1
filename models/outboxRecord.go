package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pawnest/adoptions_backend/config"
	"github.com/pawnest/adoptions_backend/utils"
	"gorm.io/gorm"
)

// AdoptionEventRecord is the transactional outbox row for lifecycle events
// (application.submitted/.approved/.rejected/.withdrawn). The record is written
// inside the caller's DB transaction; the dispatcher publishes it to Pub/Sub
// after commit. Delivery is best-effort and never part of transition correctness.
type AdoptionEventRecord struct {
	ID            int               `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	ShelterId     int               `gorm:"not null;index" json:"shelter_id"`
	OccurredAt    time.Time         `gorm:"index;not null" json:"occurred_at"`
	PetId         int               `gorm:"index" json:"pet_id"`
	ApplicationId int               `gorm:"index" json:"application_id"`
	EventType     AdoptionEventType `gorm:"size:40;not null;index" json:"event_type"`
	Payload       []byte            `gorm:"type:blob" json:"payload"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishAdoptionEvent enqueues an event in the caller's transaction but does
// NOT publish to Pub/Sub. Publishing is performed asynchronously by the outbox
// dispatcher after commit.
func PublishAdoptionEvent(ctx context.Context, tx *gorm.DB, shelterId int, petId int, applicationId int, eventType AdoptionEventType, obj interface{}) error {
	payload, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	record := AdoptionEventRecord{
		ShelterId:     shelterId,
		OccurredAt:    time.Now().UTC(),
		PetId:         petId,
		ApplicationId: applicationId,
		EventType:     eventType,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToPubSubMessage(record AdoptionEventRecord) config.PubSubMessage {
	return config.PubSubMessage{
		ID:            record.ID,
		ShelterId:     record.ShelterId,
		OccurredAt:    record.OccurredAt,
		PetId:         record.PetId,
		ApplicationId: record.ApplicationId,
		EventType:     string(record.EventType),
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
