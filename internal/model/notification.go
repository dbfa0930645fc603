package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification audiences
const (
	AudienceUser  = "user"  // the proposal/policy owner
	AudienceStaff = "staff" // role-based staff set (reviewers)
)

// Notification channels
const (
	ChannelInApp = "inapp"
	ChannelEmail = "email"
)

// Outbox status enum constants
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
	OutboxFailed  = "FAILED"
)

// Notification is one persisted in-app notification for one recipient.
type Notification struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	EventKey   string    `gorm:"type:varchar(60);not null" json:"event_key"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	EntityType string    `gorm:"type:varchar(30);not null" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(64);not null" json:"entity_id"`
	Read       bool      `gorm:"not null;default:false;index" json:"read"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// NotificationSendLog is the sole dedupe mechanism for notification delivery.
// Existence of a row means "already sent"; absence is the only signal a
// scanner or the outbox drain needs to decide to send again.
type NotificationSendLog struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Audience   string    `gorm:"type:varchar(10);not null;uniqueIndex:udx_send_log_key" json:"audience"`
	EventKey   string    `gorm:"type:varchar(60);not null;uniqueIndex:udx_send_log_key" json:"event_key"`
	EntityType string    `gorm:"type:varchar(30);not null;uniqueIndex:udx_send_log_key" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(64);not null;uniqueIndex:udx_send_log_key" json:"entity_id"`
	Milestone  string    `gorm:"type:varchar(20);not null;default:'';uniqueIndex:udx_send_log_key" json:"milestone"`
	Channel    string    `gorm:"type:varchar(10);not null;uniqueIndex:udx_send_log_key" json:"channel"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationOutbox is an intent record appended inside the business
// transaction and drained asynchronously after commit, so a slow or failing
// notification channel can never stall or roll back a lifecycle transition.
type NotificationOutbox struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EventKey string    `gorm:"type:varchar(60);not null" json:"event_key"`

	Audience        string     `gorm:"type:varchar(10);not null" json:"audience"`
	RecipientUserID *uuid.UUID `gorm:"type:uuid" json:"recipient_user_id,omitempty"`     // set when audience=user
	RecipientRole   string     `gorm:"type:varchar(30)" json:"recipient_role,omitempty"` // set when audience=staff

	EntityType string `gorm:"type:varchar(30);not null" json:"entity_type"`
	EntityID   string `gorm:"type:varchar(64);not null" json:"entity_id"`
	Milestone  string `gorm:"type:varchar(20);not null;default:''" json:"milestone"`
	// Comma-separated channels to deliver on ("inapp" or "inapp,email").
	Channels     string         `gorm:"type:varchar(30);not null;default:'inapp'" json:"channels"`
	TemplateCode string         `gorm:"type:varchar(60);not null" json:"template_code"`
	Payload      datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`

	Status    string     `gorm:"type:varchar(10);not null;default:'PENDING';index" json:"status"`
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
