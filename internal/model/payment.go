package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment status enum constants (gateway side)
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// Payment is one gateway payment attempt against a proposal. A proposal can
// accumulate several attempts; only the first SUCCESS drives the lifecycle.
type Payment struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	ApplicationKind    string    `gorm:"type:varchar(30);not null" json:"application_kind"`
	ApplicationSubtype *string   `gorm:"type:varchar(10)" json:"application_subtype,omitempty"` // travel package code, nil for motor
	ApplicationID      uuid.UUID `gorm:"type:uuid;not null;index" json:"application_id"`

	Amount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Status string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	// GatewayOrderID is the identifier we hand to the gateway and the key the
	// webhook uses to find this row.
	GatewayOrderID     string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"gateway_order_id"`
	GatewayTxnID       string         `gorm:"type:varchar(64)" json:"gateway_txn_id,omitempty"`
	RawCallbackPayload datatypes.JSON `gorm:"type:jsonb" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
