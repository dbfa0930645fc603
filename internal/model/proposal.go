package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProposalKind discriminates the product line a proposal belongs to.
// All kinds share one lifecycle; kind-specific fields live in Details.
const (
	KindMotor               = "MOTOR"
	KindTravelDomestic      = "TRAVEL_DOMESTIC"
	KindTravelHajj          = "TRAVEL_HAJJ"
	KindTravelInternational = "TRAVEL_INTERNATIONAL"
	KindTravelStudent       = "TRAVEL_STUDENT"
)

// Submission status enum constants
const (
	SubmissionDraft     = "draft"
	SubmissionSubmitted = "submitted"
	SubmissionLapsed    = "lapsed" // unpaid past expires_at, closed by the reminder scan
)

// Payment status enum constants
const (
	PaymentUnpaid = "unpaid"
	PaymentPaid   = "paid"
)

// Review status enum constants. Review is meaningful only once the proposal
// is paid; until then it stays not_applicable.
const (
	ReviewNotApplicable    = "not_applicable"
	ReviewPendingReview    = "pending_review"
	ReviewReuploadRequired = "reupload_required"
	ReviewApproved         = "approved"
	ReviewRejected         = "rejected"
)

// Policy status enum constants (mirrored from the issued Policy row)
const (
	PolicyNotIssued = "not_issued"
	PolicyActive    = "active"
	PolicyExpired   = "expired"
)

// Refund status enum constants
const (
	RefundNotApplicable = "not_applicable"
	RefundInitiated     = "refund_initiated"
	RefundProcessed     = "refund_processed"
	RefundClosed        = "closed"
)

// TravelPackageCode returns the package code used in policy uniqueness and
// policy number prefixes. Motor has no package ("NA").
func TravelPackageCode(kind string) string {
	switch kind {
	case KindTravelDomestic:
		return "DOM"
	case KindTravelHajj:
		return "HAJJ"
	case KindTravelInternational:
		return "INTL"
	case KindTravelStudent:
		return "STD"
	default:
		return "NA"
	}
}

// RequiredDoc is one entry of the ordered document list a reviewer can demand
// before approving (e.g. CNIC front/back, registration book).
type RequiredDoc struct {
	DocType string `json:"doc_type"`
	Side    string `json:"side,omitempty"` // front, back or empty
}

// Proposal is the single tagged-variant record backing all five product
// lines. The lifecycle columns are shared; Details carries the kind-specific
// payload (MotorDetails or TravelDetails) as JSON.
type Proposal struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Owner       *User     `gorm:"foreignKey:OwnerUserID" json:"-"`
	Kind        string    `gorm:"type:varchar(30);not null;index" json:"kind"`

	SubmissionStatus string `gorm:"type:varchar(20);not null;default:'submitted';index" json:"submission_status"`
	PaymentStatus    string `gorm:"type:varchar(20);not null;default:'unpaid';index" json:"payment_status"`
	ReviewStatus     string `gorm:"type:varchar(30);not null;default:'not_applicable';index" json:"review_status"`
	PolicyStatus     string `gorm:"type:varchar(20);not null;default:'not_issued';index" json:"policy_status"`
	RefundStatus     string `gorm:"type:varchar(30);not null;default:'not_applicable'" json:"refund_status"`

	SumInsured decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"sum_insured"`
	Premium    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"premium"`

	// Coverage window requested by the customer. Motor policies ignore
	// CoverageEndDate and run one year from issuance; travel policies cover
	// the trip dates exactly.
	CoverageStartDate time.Time  `gorm:"not null" json:"coverage_start_date"`
	CoverageEndDate   *time.Time `json:"coverage_end_date,omitempty"`

	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
	// Soft reservation: an unpaid proposal past this point is eligible for
	// lapse by the reminder scan.
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

	RejectionReason string         `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReuploadNotes   string         `gorm:"type:text" json:"reupload_notes,omitempty"`
	RequiredDocs    datatypes.JSON `gorm:"type:jsonb" json:"required_docs,omitempty"` // ordered []RequiredDoc

	Details datatypes.JSON `gorm:"type:jsonb;not null" json:"details"`

	AdminLastActionBy *uuid.UUID `gorm:"type:uuid" json:"admin_last_action_by,omitempty"`
	AdminLastActionAt *time.Time `json:"admin_last_action_at,omitempty"`
	RefundInitiatedAt *time.Time `json:"refund_initiated_at,omitempty"`

	// Denormalized from the issued Policy row for fast reads.
	PolicyNo        *string    `gorm:"type:varchar(30)" json:"policy_no,omitempty"`
	PolicyIssuedAt  *time.Time `json:"policy_issued_at,omitempty"`
	PolicyExpiresAt *time.Time `json:"policy_expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MotorDetails is the Details payload for KindMotor.
type MotorDetails struct {
	ApplicantName       string          `json:"applicant_name"`
	CNIC                string          `json:"cnic"`
	Phone               string          `json:"phone"`
	Email               string          `json:"email"`
	IsOwner             bool            `json:"is_owner"`
	OwnerRelation       string          `json:"owner_relation,omitempty"` // blood relation when applicant is not the owner
	VehicleMake         string          `json:"vehicle_make"`
	VehicleModel        string          `json:"vehicle_model"`
	ModelYear           int             `json:"model_year"`
	RegistrationNo      string          `json:"registration_no,omitempty"`
	RegistrationApplied bool            `json:"registration_applied"` // "applied for" — mutually exclusive with RegistrationNo
	EngineNo            string          `json:"engine_no"`
	ChassisNo           string          `json:"chassis_no"`
	VehicleValue        decimal.Decimal `json:"vehicle_value"`
	AccessoriesValue    decimal.Decimal `json:"accessories_value"`
	TrackerInstalled    bool            `json:"tracker_installed"`
	JurisdictionCode    string          `json:"jurisdiction_code"`
}

// TravelFamilyMember is one covered companion on a travel proposal.
type TravelFamilyMember struct {
	Name        string `json:"name"`
	Relation    string `json:"relation"`
	DateOfBirth string `json:"date_of_birth"`
	PassportNo  string `json:"passport_no,omitempty"`
}

// TravelDetails is the Details payload for the four travel kinds.
type TravelDetails struct {
	ApplicantName string               `json:"applicant_name"`
	CNIC          string               `json:"cnic"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email"`
	DateOfBirth   string               `json:"date_of_birth"`
	PassportNo    string               `json:"passport_no,omitempty"`
	PackageCode   string               `json:"package_code"`
	PlanCode      string               `json:"plan_code"`
	CoverageCode  string               `json:"coverage_code"`
	MultiTrip     bool                 `json:"multi_trip"`
	TripStartDate string               `json:"trip_start_date"`
	TripEndDate   string               `json:"trip_end_date"`
	Destinations  []string             `json:"destinations,omitempty"`
	FamilyMembers []TravelFamilyMember `json:"family_members,omitempty"`
	Institution   string               `json:"institution,omitempty"` // student package only
}
