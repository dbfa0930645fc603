package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionSubmitProposal  = "SUBMIT_PROPOSAL"
	ActionInitiatePayment = "INITIATE_PAYMENT"
	ActionPaymentSuccess  = "PAYMENT_SUCCESS"
	ActionPaymentFailed   = "PAYMENT_FAILED"

	// Review workflow actions
	ActionApproveProposal = "APPROVE_PROPOSAL"
	ActionRejectProposal  = "REJECT_PROPOSAL"
	ActionRequireReupload = "REQUIRE_REUPLOAD"
	ActionResubmitDocs    = "RESUBMIT_DOCS"
	ActionProcessRefund   = "PROCESS_REFUND"
	ActionCloseRefund     = "CLOSE_REFUND"

	// Issuance / lifecycle actions
	ActionIssuePolicy   = "ISSUE_POLICY"
	ActionRenewPolicy   = "RENEW_POLICY"
	ActionExpirePolicy  = "EXPIRE_POLICY"
	ActionLapseProposal = "LAPSE_PROPOSAL"
)

// AuditLog tracks Who, What, and When for critical lifecycle changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable gracefully when triggered by a scan or webhook
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(64);index" json:"entity_id"`        // Reference string (uuid/policy no)
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string     `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
