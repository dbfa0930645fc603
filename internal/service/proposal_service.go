package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"insurance-backend/internal/lifecycle"
	"insurance-backend/internal/model"
	"insurance-backend/internal/premium"
	"insurance-backend/internal/repository"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// unpaidReservationDays is the soft reservation window: an unpaid proposal
// lapses this many days after submission.
const unpaidReservationDays = 7

// ownerRelations is the allow-list for the ownership-relation rule: an
// applicant who is not the registered owner must declare one of these blood
// relations.
var ownerRelations = map[string]bool{
	"spouse": true, "father": true, "mother": true,
	"son": true, "daughter": true, "brother": true, "sister": true,
}

// --- DTOs ---

type SubmitMotorProposalRequest struct {
	ApplicantName string `json:"applicant_name" binding:"required"`
	CNIC          string `json:"cnic" binding:"required,len=13,numeric"`
	Phone         string `json:"phone" binding:"required"`
	Email         string `json:"email" binding:"required,email"`

	IsOwner       bool   `json:"is_owner"`
	OwnerRelation string `json:"owner_relation"`

	VehicleMake         string `json:"vehicle_make" binding:"required"`
	VehicleModel        string `json:"vehicle_model" binding:"required"`
	ModelYear           int    `json:"model_year" binding:"required"`
	RegistrationNo      string `json:"registration_no"`
	RegistrationApplied bool   `json:"registration_applied"`
	EngineNo            string `json:"engine_no" binding:"required"`
	ChassisNo           string `json:"chassis_no" binding:"required"`

	VehicleValue     string `json:"vehicle_value" binding:"required"` // decimal string
	AccessoriesValue string `json:"accessories_value"`                // decimal string, optional
	TrackerInstalled bool   `json:"tracker_installed"`
	JurisdictionCode string `json:"jurisdiction_code" binding:"required"`

	StartDate string `json:"start_date" binding:"required"` // YYYY-MM-DD
}

type SubmitTravelProposalRequest struct {
	Kind string `json:"kind" binding:"required,oneof=TRAVEL_DOMESTIC TRAVEL_HAJJ TRAVEL_INTERNATIONAL TRAVEL_STUDENT"`

	ApplicantName string `json:"applicant_name" binding:"required"`
	CNIC          string `json:"cnic" binding:"required,len=13,numeric"`
	Phone         string `json:"phone" binding:"required"`
	Email         string `json:"email" binding:"required,email"`
	DateOfBirth   string `json:"date_of_birth" binding:"required"` // YYYY-MM-DD
	PassportNo    string `json:"passport_no"`

	PlanCode     string `json:"plan_code" binding:"required,oneof=SILVER GOLD"`
	CoverageCode string `json:"coverage_code" binding:"required"`
	MultiTrip    bool   `json:"multi_trip"`
	MaxTripDays  int    `json:"max_trip_days"`

	TripStartDate string   `json:"trip_start_date" binding:"required"` // YYYY-MM-DD
	TripEndDate   string   `json:"trip_end_date" binding:"required"`   // YYYY-MM-DD
	Destinations  []string `json:"destinations"`

	FamilyMembers []model.TravelFamilyMember `json:"family_members"`
	Institution   string                     `json:"institution"`
}

type SubmitProposalResponse struct {
	ProposalID string `json:"proposal_id"`
	SumInsured string `json:"sum_insured"`
	Premium    string `json:"premium"`
}

type ResubmitDocsRequest struct {
	DocumentPaths []string `json:"document_paths" binding:"required,min=1"`
}

type ProposalResponse struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	SubmissionStatus string          `json:"submission_status"`
	PaymentStatus    string          `json:"payment_status"`
	ReviewStatus     string          `json:"review_status"`
	PolicyStatus     string          `json:"policy_status"`
	RefundStatus     string          `json:"refund_status"`
	SumInsured       string          `json:"sum_insured"`
	Premium          string          `json:"premium"`
	SubmittedAt      string          `json:"submitted_at"`
	ExpiresAt        string          `json:"expires_at"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	ReuploadNotes    string          `json:"reupload_notes,omitempty"`
	RequiredDocs     json.RawMessage `json:"required_docs,omitempty"`
	PolicyNo         *string         `json:"policy_no,omitempty"`
	PolicyExpiresAt  *string         `json:"policy_expires_at,omitempty"`
	Details          json.RawMessage `json:"details"`
}

// --- Interface ---

type ProposalService interface {
	SubmitMotor(ctx context.Context, ownerID string, req SubmitMotorProposalRequest) (SubmitProposalResponse, error)
	SubmitTravel(ctx context.Context, ownerID string, req SubmitTravelProposalRequest) (SubmitProposalResponse, error)
	GetProposal(ctx context.Context, requesterID, proposalID string, staff bool) (ProposalResponse, error)
	ListMyProposals(ctx context.Context, ownerID string, filter repository.ProposalFilter) ([]ProposalResponse, int64, error)
	ListReviewQueue(ctx context.Context, filter repository.ProposalFilter) ([]ProposalResponse, int64, error)
	// ResubmitDocs flips reupload_required back to pending_review with the
	// customer's fresh document references.
	ResubmitDocs(ctx context.Context, ownerID, proposalID string, req ResubmitDocsRequest) (ProposalResponse, error)
}

type proposalService struct {
	proposalRepo repository.ProposalRepository
	auditRepo    repository.AuditRepository
	notifRepo    repository.NotificationRepository
	txManager    repository.TransactionManager
}

func NewProposalService(
	proposalRepo repository.ProposalRepository,
	auditRepo repository.AuditRepository,
	notifRepo repository.NotificationRepository,
	txManager repository.TransactionManager,
) ProposalService {
	return &proposalService{
		proposalRepo: proposalRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *proposalService) SubmitMotor(ctx context.Context, ownerID string, req SubmitMotorProposalRequest) (SubmitProposalResponse, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid user id: %w", err)
	}

	// Mutual exclusion: either the vehicle carries a registration number or
	// registration has been applied for — never both, never neither.
	if req.RegistrationApplied && req.RegistrationNo != "" {
		return SubmitProposalResponse{}, apperr.Validationf("registration_no must be empty when registration is applied for")
	}
	if !req.RegistrationApplied && req.RegistrationNo == "" {
		return SubmitProposalResponse{}, apperr.Validationf("either registration_no or registration_applied is required")
	}

	if !req.IsOwner && !ownerRelations[req.OwnerRelation] {
		return SubmitProposalResponse{}, apperr.Validationf("owner_relation %q is not an accepted blood relation", req.OwnerRelation)
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid start_date: %w", err)
	}
	if startDate.Before(today()) {
		return SubmitProposalResponse{}, apperr.Validationf("insurance start date must not be in the past")
	}

	vehicleValue, err := decimal.NewFromString(req.VehicleValue)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid vehicle_value: %w", err)
	}
	accessories := decimal.Zero
	if req.AccessoriesValue != "" {
		if accessories, err = decimal.NewFromString(req.AccessoriesValue); err != nil {
			return SubmitProposalResponse{}, apperr.Validationf("invalid accessories_value: %w", err)
		}
	}

	quote, err := premium.QuoteMotor(premium.MotorInput{
		VehicleValue:     vehicleValue,
		AccessoriesValue: accessories,
		ModelYear:        req.ModelYear,
		JurisdictionCode: req.JurisdictionCode,
		TrackerInstalled: req.TrackerInstalled,
	})
	if err != nil {
		return SubmitProposalResponse{}, err
	}

	details := model.MotorDetails{
		ApplicantName:       req.ApplicantName,
		CNIC:                req.CNIC,
		Phone:               req.Phone,
		Email:               req.Email,
		IsOwner:             req.IsOwner,
		OwnerRelation:       req.OwnerRelation,
		VehicleMake:         req.VehicleMake,
		VehicleModel:        req.VehicleModel,
		ModelYear:           req.ModelYear,
		RegistrationNo:      req.RegistrationNo,
		RegistrationApplied: req.RegistrationApplied,
		EngineNo:            req.EngineNo,
		ChassisNo:           req.ChassisNo,
		VehicleValue:        vehicleValue,
		AccessoriesValue:    accessories,
		TrackerInstalled:    req.TrackerInstalled,
		JurisdictionCode:    req.JurisdictionCode,
	}

	return s.insertProposal(ctx, owner, model.KindMotor, quote.SumInsured, quote.NetPremium, startDate, nil, details)
}

func (s *proposalService) SubmitTravel(ctx context.Context, ownerID string, req SubmitTravelProposalRequest) (SubmitProposalResponse, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid user id: %w", err)
	}

	tripStart, err := parseDate(req.TripStartDate)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid trip_start_date: %w", err)
	}
	tripEnd, err := parseDate(req.TripEndDate)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid trip_end_date: %w", err)
	}
	if tripStart.Before(today()) {
		return SubmitProposalResponse{}, apperr.Validationf("insurance start date must not be in the past")
	}
	if !tripEnd.After(tripStart) {
		return SubmitProposalResponse{}, apperr.Validationf("trip_end_date must be after trip_start_date")
	}

	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		return SubmitProposalResponse{}, apperr.Validationf("invalid date_of_birth: %w", err)
	}

	if req.Kind != model.KindTravelDomestic && req.PassportNo == "" {
		return SubmitProposalResponse{}, apperr.Validationf("passport_no is required for %s", req.Kind)
	}
	if req.Kind == model.KindTravelStudent && req.Institution == "" {
		return SubmitProposalResponse{}, apperr.Validationf("institution is required for the student package")
	}

	tenureDays := int(tripEnd.Sub(tripStart).Hours()/24) + 1
	quote, err := premium.QuoteTravel(premium.TravelInput{
		Kind:         req.Kind,
		PlanCode:     req.PlanCode,
		CoverageCode: req.CoverageCode,
		TenureDays:   tenureDays,
		MultiTrip:    req.MultiTrip,
		MaxTripDays:  req.MaxTripDays,
		AgeYears:     ageAt(dob, tripStart),
	})
	if err != nil {
		return SubmitProposalResponse{}, err
	}

	details := model.TravelDetails{
		ApplicantName: req.ApplicantName,
		CNIC:          req.CNIC,
		Phone:         req.Phone,
		Email:         req.Email,
		DateOfBirth:   req.DateOfBirth,
		PassportNo:    req.PassportNo,
		PackageCode:   model.TravelPackageCode(req.Kind),
		PlanCode:      req.PlanCode,
		CoverageCode:  req.CoverageCode,
		MultiTrip:     req.MultiTrip,
		TripStartDate: req.TripStartDate,
		TripEndDate:   req.TripEndDate,
		Destinations:  req.Destinations,
		FamilyMembers: req.FamilyMembers,
		Institution:   req.Institution,
	}

	return s.insertProposal(ctx, owner, req.Kind, quote.SumInsured, quote.NetPremium, tripStart, &tripEnd, details)
}

func (s *proposalService) insertProposal(ctx context.Context, owner uuid.UUID, kind string, sumInsured, netPremium decimal.Decimal, coverStart time.Time, coverEnd *time.Time, details interface{}) (SubmitProposalResponse, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return SubmitProposalResponse{}, fmt.Errorf("failed to encode proposal details: %w", err)
	}

	now := time.Now()
	proposal := model.Proposal{
		OwnerUserID:       owner,
		Kind:              kind,
		SubmissionStatus:  model.SubmissionSubmitted,
		PaymentStatus:     model.PaymentUnpaid,
		ReviewStatus:      model.ReviewNotApplicable,
		PolicyStatus:      model.PolicyNotIssued,
		RefundStatus:      model.RefundNotApplicable,
		SumInsured:        sumInsured,
		Premium:           netPremium,
		CoverageStartDate: coverStart,
		CoverageEndDate:   coverEnd,
		SubmittedAt:       now,
		ExpiresAt:         now.AddDate(0, 0, unpaidReservationDays),
		Details:           datatypes.JSON(detailsJSON),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.proposalRepo.Create(txCtx, &proposal); createErr != nil {
			return fmt.Errorf("failed to create proposal: %w", createErr)
		}

		auditDetails, _ := json.Marshal(map[string]interface{}{
			"kind":    kind,
			"premium": netPremium.StringFixed(2),
		})
		audit := model.AuditLog{
			UserID:     &owner,
			Action:     model.ActionSubmitProposal,
			EntityID:   proposal.ID.String(),
			EntityName: kind,
			Details:    string(auditDetails),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return enqueueProposalEvent(txCtx, s.notifRepo, &proposal, "proposal.submitted", map[string]interface{}{
			"kind":    kind,
			"premium": netPremium.StringFixed(2),
		})
	})
	if err != nil {
		return SubmitProposalResponse{}, err
	}

	return SubmitProposalResponse{
		ProposalID: proposal.ID.String(),
		SumInsured: sumInsured.StringFixed(2),
		Premium:    netPremium.StringFixed(2),
	}, nil
}

func (s *proposalService) GetProposal(ctx context.Context, requesterID, proposalID string, staff bool) (ProposalResponse, error) {
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return ProposalResponse{}, apperr.Validationf("invalid proposal id: %w", err)
	}
	proposal, err := s.proposalRepo.FindByID(ctx, id)
	if err != nil {
		return ProposalResponse{}, apperr.NotFoundf("proposal not found: %w", err)
	}
	if !staff && proposal.OwnerUserID.String() != requesterID {
		return ProposalResponse{}, apperr.NotFoundf("proposal not found")
	}
	return toProposalResponse(*proposal), nil
}

func (s *proposalService) ListMyProposals(ctx context.Context, ownerID string, filter repository.ProposalFilter) ([]ProposalResponse, int64, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, 0, apperr.Validationf("invalid user id: %w", err)
	}
	proposals, total, err := s.proposalRepo.ListByOwner(ctx, owner, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list proposals: %w", err)
	}
	return toProposalResponses(proposals), total, nil
}

func (s *proposalService) ListReviewQueue(ctx context.Context, filter repository.ProposalFilter) ([]ProposalResponse, int64, error) {
	proposals, total, err := s.proposalRepo.ListPendingReview(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list review queue: %w", err)
	}
	return toProposalResponses(proposals), total, nil
}

func (s *proposalService) ResubmitDocs(ctx context.Context, ownerID, proposalID string, req ResubmitDocsRequest) (ProposalResponse, error) {
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return ProposalResponse{}, apperr.Validationf("invalid proposal id: %w", err)
	}

	var proposal *model.Proposal
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		proposal, err = s.proposalRepo.FindByIDForUpdate(txCtx, id)
		if err != nil {
			return apperr.NotFoundf("proposal not found: %w", err)
		}
		if proposal.OwnerUserID.String() != ownerID {
			return apperr.NotFoundf("proposal not found")
		}

		next, guardErr := lifecycle.Next(proposal.ReviewStatus, lifecycle.ActionResubmit)
		if guardErr != nil {
			return guardErr
		}

		proposal.ReviewStatus = next
		if saveErr := s.proposalRepo.Save(txCtx, proposal); saveErr != nil {
			return fmt.Errorf("failed to update proposal: %w", saveErr)
		}

		auditDetails, _ := json.Marshal(map[string]interface{}{
			"document_count": len(req.DocumentPaths),
		})
		owner := proposal.OwnerUserID
		audit := model.AuditLog{
			UserID:     &owner,
			Action:     model.ActionResubmitDocs,
			EntityID:   proposal.ID.String(),
			EntityName: proposal.Kind,
			Details:    string(auditDetails),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return enqueueStaffEvent(txCtx, s.notifRepo, proposal, "proposal.resubmitted", map[string]interface{}{
			"kind": proposal.Kind,
		})
	})
	if err != nil {
		return ProposalResponse{}, err
	}
	return toProposalResponse(*proposal), nil
}

// --- Helpers ---

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func ageAt(dob, at time.Time) int {
	years := at.Year() - dob.Year()
	if at.YearDay() < dob.YearDay() {
		years--
	}
	return years
}

func toProposalResponse(p model.Proposal) ProposalResponse {
	resp := ProposalResponse{
		ID:               p.ID.String(),
		Kind:             p.Kind,
		SubmissionStatus: p.SubmissionStatus,
		PaymentStatus:    p.PaymentStatus,
		ReviewStatus:     p.ReviewStatus,
		PolicyStatus:     p.PolicyStatus,
		RefundStatus:     p.RefundStatus,
		SumInsured:       p.SumInsured.StringFixed(2),
		Premium:          p.Premium.StringFixed(2),
		SubmittedAt:      p.SubmittedAt.Format(time.RFC3339),
		ExpiresAt:        p.ExpiresAt.Format(time.RFC3339),
		RejectionReason:  p.RejectionReason,
		ReuploadNotes:    p.ReuploadNotes,
		PolicyNo:         p.PolicyNo,
		Details:          json.RawMessage(p.Details),
	}
	if len(p.RequiredDocs) > 0 {
		resp.RequiredDocs = json.RawMessage(p.RequiredDocs)
	}
	if p.PolicyExpiresAt != nil {
		s := p.PolicyExpiresAt.Format(time.RFC3339)
		resp.PolicyExpiresAt = &s
	}
	return resp
}

func toProposalResponses(proposals []model.Proposal) []ProposalResponse {
	result := make([]ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		result = append(result, toProposalResponse(p))
	}
	return result
}
