package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent stores the delivery trace, returning false when the same
	// (provider, provider_event_id) pair was already recorded.
	InsertEvent(ctx context.Context, tx *gorm.DB, rec *EventRecord) (bool, error)
	FindEvent(ctx context.Context, tx *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error
	MarkFailed(ctx context.Context, tx *gorm.DB, id int64, reason string, at time.Time) error
}
