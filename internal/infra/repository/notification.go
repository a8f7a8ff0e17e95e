package repository

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/backline/internal/domain"
	"github.com/totegamma/backline/internal/infra/database/models"
	"github.com/totegamma/backline/internal/usecase"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create materializes one notification. The (recipient, dedupe key) unique
// guard makes retried sends return the already-stored record instead of
// inserting a duplicate.
func (r *NotificationRepository) Create(ctx context.Context, notification domain.Notification) (domain.Notification, error) {
	payload := "{}"
	if notification.Payload != nil {
		raw, err := json.Marshal(notification.Payload)
		if err != nil {
			return domain.Notification{}, err
		}
		payload = string(raw)
	}

	record := models.Notification{
		ID:             notification.ID,
		Type:           string(notification.Type),
		Sender:         notification.Sender,
		Recipient:      notification.Recipient,
		DedupeKey:      notification.DedupeKey,
		Title:          notification.Title,
		Message:        notification.Message,
		EntityID:       notification.EntityID,
		Payload:        payload,
		IsRead:         notification.IsRead,
		ActionRequired: notification.ActionRequired,
		ExpiresAt:      notification.ExpiresAt,
	}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient"}, {Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(&record)
	if res.Error != nil {
		return domain.Notification{}, res.Error
	}

	if res.RowsAffected == 0 {
		var existing models.Notification
		err := r.db.WithContext(ctx).
			Where("recipient = ? AND dedupe_key = ?", notification.Recipient, notification.DedupeKey).
			Take(&existing).Error
		if err != nil {
			return domain.Notification{}, err
		}
		return toDomainNotification(existing)
	}

	return r.Get(ctx, notification.ID)
}

func (r *NotificationRepository) Get(ctx context.Context, id string) (domain.Notification, error) {
	var record models.Notification
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		Take(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Notification{}, domain.NotFoundError{Resource: "notification"}
		}
		return domain.Notification{}, err
	}
	return toDomainNotification(record)
}

func (r *NotificationRepository) ListByRecipient(ctx context.Context, accountID string, limit, offset int) ([]domain.Notification, error) {
	var records []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient = ?", accountID).
		Order("cdate DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		notification, err := toDomainNotification(record)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkHandled(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_read":         true,
			"action_required": false,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "notification"}
	}
	return nil
}

func (r *NotificationRepository) MarkInvitationHandled(ctx context.Context, entityID, accountID string) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("entity_id = ? AND recipient = ? AND type = ? AND action_required = ?",
			entityID, accountID, string(domain.NotificationInvitation), true).
		Updates(map[string]any{
			"is_read":         true,
			"action_required": false,
		}).Error
}

func toDomainNotification(record models.Notification) (domain.Notification, error) {
	var payload map[string]any
	if record.Payload != "" {
		if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
			return domain.Notification{}, err
		}
	}

	return domain.Notification{
		ID:             record.ID,
		Type:           domain.NotificationType(record.Type),
		Sender:         record.Sender,
		Recipient:      record.Recipient,
		Title:          record.Title,
		Message:        record.Message,
		EntityID:       record.EntityID,
		Payload:        payload,
		DedupeKey:      record.DedupeKey,
		IsRead:         record.IsRead,
		ActionRequired: record.ActionRequired,
		ExpiresAt:      record.ExpiresAt,
		CreatedAt:      record.CDate,
	}, nil
}

var _ usecase.NotificationRepository = (*NotificationRepository)(nil)
