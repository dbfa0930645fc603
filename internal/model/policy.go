package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Policy is the issued contract for an approved, paid proposal. Rows are
// never deleted; renewal supersedes an expired row with a fresh one.
//
// The primary key is a bigserial rather than a uuid: the policy number is
// formatted from the assigned row id after insert (two-phase generation), so
// the key must be a monotonically assigned integer.
type Policy struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	ProposalKind string    `gorm:"type:varchar(30);not null;uniqueIndex:udx_policies_active_once,where:status = 'active'" json:"proposal_kind"`
	ProposalID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:udx_policies_active_once,where:status = 'active';index" json:"proposal_id"`
	// "NA" for motor. Part of the uniqueness backstop so the travel partitions
	// cannot collide.
	TravelPackageCode string `gorm:"type:varchar(10);not null;default:'NA';uniqueIndex:udx_policies_active_once,where:status = 'active'" json:"travel_package_code"`

	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`

	PolicyNo string `gorm:"type:varchar(30);uniqueIndex;not null" json:"policy_no"`
	Status   string `gorm:"type:varchar(20);not null;default:'active';index" json:"status"` // active, expired

	IssuedAt  time.Time `gorm:"not null" json:"issued_at"`
	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null;index" json:"end_date"`

	Premium    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"premium"`
	SumInsured decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"sum_insured"`

	// Paths of the cover note / policy schedule documents in file storage.
	DocumentPaths datatypes.JSON `gorm:"type:jsonb" json:"document_paths,omitempty"`

	// Immutable copy of the proposal (and its destinations/family members)
	// taken at issuance. Never re-derived later.
	Snapshot datatypes.JSON `gorm:"type:jsonb;not null" json:"-"`

	// Set on renewal: the policy row this one supersedes.
	RenewedFromID *uint `json:"renewed_from_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PolicyNoPrefix maps a proposal kind to its policy number prefix.
func PolicyNoPrefix(kind string) string {
	switch kind {
	case KindMotor:
		return "MTR"
	case KindTravelDomestic:
		return "TRD"
	case KindTravelHajj:
		return "TRH"
	case KindTravelInternational:
		return "TRI"
	case KindTravelStudent:
		return "TRS"
	default:
		return "POL"
	}
}
