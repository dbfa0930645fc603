package repository

import (
	"context"
	"errors"
	"time"

	"insurance-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MaxOutboxAttempts is how many delivery attempts an outbox entry gets
// before it is left FAILED for good.
const MaxOutboxAttempts = 5

// SendLogKey is the dedupe identity of one logical notification delivery.
type SendLogKey struct {
	Audience   string
	EventKey   string
	EntityType string
	EntityID   string
	Milestone  string
	Channel    string
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error

	HasSendLog(ctx context.Context, key SendLogKey) (bool, error)
	// RecordSend inserts the dedupe row. A concurrent duplicate insert is
	// reported as alreadySent=true rather than an error.
	RecordSend(ctx context.Context, key SendLogKey) (alreadySent bool, err error)

	Enqueue(ctx context.Context, entry *model.NotificationOutbox) error
	// ListPendingOutbox returns entries still owed a delivery attempt:
	// PENDING rows plus FAILED rows below MaxOutboxAttempts.
	ListPendingOutbox(ctx context.Context, limit int) ([]model.NotificationOutbox, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
	MarkOutboxFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	return GetDB(ctx, r.db).Create(n).Error
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]model.Notification, int64, error) {
	db := GetDB(ctx, r.db)
	query := db.Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("read = false")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []model.Notification
	offset := (page - 1) * limit
	fetch := db.Where("user_id = ?", userID)
	if unreadOnly {
		fetch = fetch.Where("read = false")
	}
	if err := fetch.Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	return notifications, total, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true).Error
}

func (r *notificationRepository) HasSendLog(ctx context.Context, key SendLogKey) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.NotificationSendLog{}).
		Where("audience = ? AND event_key = ? AND entity_type = ? AND entity_id = ? AND milestone = ? AND channel = ?",
			key.Audience, key.EventKey, key.EntityType, key.EntityID, key.Milestone, key.Channel).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *notificationRepository) RecordSend(ctx context.Context, key SendLogKey) (bool, error) {
	entry := model.NotificationSendLog{
		Audience:   key.Audience,
		EventKey:   key.EventKey,
		EntityType: key.EntityType,
		EntityID:   key.EntityID,
		Milestone:  key.Milestone,
		Channel:    key.Channel,
	}
	res := GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return true, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 0, nil
}

func (r *notificationRepository) Enqueue(ctx context.Context, entry *model.NotificationOutbox) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *notificationRepository) ListPendingOutbox(ctx context.Context, limit int) ([]model.NotificationOutbox, error) {
	var entries []model.NotificationOutbox
	err := GetDB(ctx, r.db).
		Where("status = ? OR (status = ? AND attempts < ?)",
			model.OutboxPending, model.OutboxFailed, MaxOutboxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (r *notificationRepository) MarkOutboxSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return GetDB(ctx, r.db).Model(&model.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":  model.OutboxSent,
			"sent_at": &now,
		}).Error
}

func (r *notificationRepository) MarkOutboxFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return GetDB(ctx, r.db).Model(&model.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.OutboxFailed,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": reason,
		}).Error
}
