package repository

import (
	"context"
	"time"

	"github.com/edusocial/edusocial/internal/payment/domain"
	"gorm.io/gorm"
)

type repositoryImpl struct{}

func Provide() domain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) InsertEvent(ctx context.Context, tx *gorm.DB, rec *domain.EventRecord) (bool, error) {
	res := tx.WithContext(ctx).Exec(`
		INSERT INTO payment_events
			(id, provider, provider_event_id, event_type, order_id, status, payload, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, rec.ID, rec.Provider, rec.ProviderEventID, rec.EventType, rec.OrderID,
		rec.Status, rec.Payload, rec.ReceivedAt)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repositoryImpl) FindEvent(ctx context.Context, tx *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error) {
	var rec domain.EventRecord
	res := tx.WithContext(ctx).Raw(`
		SELECT id, provider, provider_event_id, event_type, order_id, status, payload, received_at, processed_at, last_error
		FROM payment_events
		WHERE provider = ? AND provider_event_id = ?
	`, provider, providerEventID).Scan(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repositoryImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, id int64, at time.Time) error {
	return tx.WithContext(ctx).Exec(`
		UPDATE payment_events SET status = ?, processed_at = ?, last_error = '' WHERE id = ?
	`, domain.EventStatusProcessed, at, id).Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, tx *gorm.DB, id int64, reason string, at time.Time) error {
	// processed_at stays NULL so a retried delivery of this event id runs
	// the pipeline again.
	return tx.WithContext(ctx).Exec(`
		UPDATE payment_events SET status = ?, last_error = ?, processed_at = NULL WHERE id = ?
	`, domain.EventStatusFailed, reason, id).Error
}
