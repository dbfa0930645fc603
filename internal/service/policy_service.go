package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"insurance-backend/internal/lifecycle"
	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
	"insurance-backend/internal/storage"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// renewalWindowDays: a motor policy may be renewed from this many days before
// its end date onward.
const renewalWindowDays = 30

// --- DTOs ---

type IssuePolicyRequest struct {
	ProposalID    string   `json:"proposal_id" binding:"required"`
	DocumentPaths []string `json:"document_paths"` // cover note / policy schedule files already in storage
}

type IssuePolicyResponse struct {
	PolicyID  uint   `json:"policy_id"`
	PolicyNo  string `json:"policy_no"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type PolicyResponse struct {
	ID                uint   `json:"id"`
	PolicyNo          string `json:"policy_no"`
	ProposalKind      string `json:"proposal_kind"`
	ProposalID        string `json:"proposal_id"`
	TravelPackageCode string `json:"travel_package_code"`
	Status            string `json:"status"`
	IssuedAt          string `json:"issued_at"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
	Premium           string `json:"premium"`
	SumInsured        string `json:"sum_insured"`
}

// --- Interface ---

type PolicyService interface {
	// Issue transactionally issues a policy for an approved, paid proposal:
	// exclusive row lock, snapshot, placeholder insert, then the final
	// two-phase policy number.
	Issue(ctx context.Context, adminID string, req IssuePolicyRequest) (IssuePolicyResponse, error)
	// Renew supersedes an expired (or expiring) motor policy with a fresh
	// row covering the following year.
	Renew(ctx context.Context, adminID string, policyID uint) (IssuePolicyResponse, error)
	ListMyPolicies(ctx context.Context, ownerID string, page, limit int) ([]PolicyResponse, int64, error)
}

type policyService struct {
	policyRepo   repository.PolicyRepository
	proposalRepo repository.ProposalRepository
	auditRepo    repository.AuditRepository
	notifRepo    repository.NotificationRepository
	txManager    repository.TransactionManager
	store        storage.Storage
}

func NewPolicyService(
	policyRepo repository.PolicyRepository,
	proposalRepo repository.ProposalRepository,
	auditRepo repository.AuditRepository,
	notifRepo repository.NotificationRepository,
	txManager repository.TransactionManager,
	store storage.Storage,
) PolicyService {
	return &policyService{
		policyRepo:   policyRepo,
		proposalRepo: proposalRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		txManager:    txManager,
		store:        store,
	}
}

// --- Implementation ---

// FormatPolicyNo builds the final policy number from the assigned row id:
// <PREFIX>-<YEAR>-<zero-padded id>. Exported for the schedule templates.
func FormatPolicyNo(kind string, year int, id uint) string {
	return fmt.Sprintf("%s-%d-%07d", model.PolicyNoPrefix(kind), year, id)
}

func (s *policyService) Issue(ctx context.Context, adminID string, req IssuePolicyRequest) (IssuePolicyResponse, error) {
	admin, err := uuid.Parse(adminID)
	if err != nil {
		return IssuePolicyResponse{}, apperr.Validationf("invalid admin id: %w", err)
	}
	proposalID, err := uuid.Parse(req.ProposalID)
	if err != nil {
		return IssuePolicyResponse{}, apperr.Validationf("invalid proposal_id: %w", err)
	}

	var policy model.Policy
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		proposal, findErr := s.proposalRepo.FindByIDForUpdate(txCtx, proposalID)
		if findErr != nil {
			return apperr.NotFoundf("proposal not found: %w", findErr)
		}
		if guardErr := lifecycle.CheckIssuable(proposal); guardErr != nil {
			return guardErr
		}

		now := time.Now()
		start, end, windowErr := coverageWindow(proposal, now)
		if windowErr != nil {
			return windowErr
		}

		snapshot, snapErr := snapshotProposal(proposal)
		if snapErr != nil {
			return snapErr
		}

		docs, _ := json.Marshal(req.DocumentPaths)
		policy = model.Policy{
			ProposalKind:      proposal.Kind,
			ProposalID:        proposal.ID,
			TravelPackageCode: model.TravelPackageCode(proposal.Kind),
			OwnerUserID:       proposal.OwnerUserID,
			// Placeholder until the row id is known; unique per attempt so
			// the policy_no index never collides between concurrent inserts.
			PolicyNo:      "PENDING-" + uuid.New().String(),
			Status:        model.PolicyActive,
			IssuedAt:      now,
			StartDate:     start,
			EndDate:       end,
			Premium:       proposal.Premium,
			SumInsured:    proposal.SumInsured,
			DocumentPaths: datatypes.JSON(docs),
			Snapshot:      snapshot,
		}
		if createErr := s.policyRepo.Create(txCtx, &policy); createErr != nil {
			// The partial unique index on (kind, proposal, package) is the
			// final backstop against concurrent double issuance.
			return apperr.Conflictf("policy already issued for proposal %s: %w", proposal.ID, createErr)
		}

		policy.PolicyNo = FormatPolicyNo(proposal.Kind, now.Year(), policy.ID)
		if setErr := s.policyRepo.SetPolicyNo(txCtx, policy.ID, policy.PolicyNo); setErr != nil {
			return fmt.Errorf("failed to write policy number: %w", setErr)
		}

		// Denormalize for fast proposal reads.
		proposal.PolicyStatus = model.PolicyActive
		proposal.PolicyNo = &policy.PolicyNo
		proposal.PolicyIssuedAt = &now
		endCopy := end
		proposal.PolicyExpiresAt = &endCopy
		proposal.AdminLastActionBy = &admin
		proposal.AdminLastActionAt = &now
		if saveErr := s.proposalRepo.Save(txCtx, proposal); saveErr != nil {
			return fmt.Errorf("failed to update proposal: %w", saveErr)
		}

		auditDetails, _ := json.Marshal(map[string]interface{}{
			"policy_no": policy.PolicyNo,
			"start":     start.Format("2006-01-02"),
			"end":       end.Format("2006-01-02"),
		})
		audit := model.AuditLog{
			UserID:     &admin,
			Action:     model.ActionIssuePolicy,
			EntityID:   policy.PolicyNo,
			EntityName: proposal.Kind,
			Details:    string(auditDetails),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return enqueuePolicyEvent(txCtx, s.notifRepo, proposal.OwnerUserID,
			strconv.FormatUint(uint64(policy.ID), 10), "policy.issued", "", map[string]interface{}{
				"policy_no": policy.PolicyNo,
				"kind":      proposal.Kind,
				"end_date":  end.Format("2006-01-02"),
			})
	})
	if err != nil {
		// The transaction rolled back; remove any files written for this
		// attempt so storage does not accumulate orphans.
		for _, path := range req.DocumentPaths {
			if rmErr := s.store.Remove(path); rmErr != nil {
				log.Printf("failed to clean up document %s: %v", path, rmErr)
			}
		}
		return IssuePolicyResponse{}, err
	}

	return IssuePolicyResponse{
		PolicyID:  policy.ID,
		PolicyNo:  policy.PolicyNo,
		StartDate: policy.StartDate.Format("2006-01-02"),
		EndDate:   policy.EndDate.Format("2006-01-02"),
	}, nil
}

func (s *policyService) Renew(ctx context.Context, adminID string, policyID uint) (IssuePolicyResponse, error) {
	admin, err := uuid.Parse(adminID)
	if err != nil {
		return IssuePolicyResponse{}, apperr.Validationf("invalid admin id: %w", err)
	}

	var renewed model.Policy
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		old, findErr := s.policyRepo.FindByIDForUpdate(txCtx, policyID)
		if findErr != nil {
			return apperr.NotFoundf("policy not found: %w", findErr)
		}
		if old.ProposalKind != model.KindMotor {
			return apperr.Guardf("only motor policies renew in place; travel cover requires a new proposal")
		}

		now := time.Now()
		if old.Status == model.PolicyActive && old.EndDate.After(now.AddDate(0, 0, renewalWindowDays)) {
			return apperr.Guardf("policy %s is not within its renewal window", old.PolicyNo)
		}

		// Supersede: the old row keeps its number but leaves the active set,
		// making room under the one-active-policy-per-proposal constraint.
		if old.Status == model.PolicyActive {
			if _, markErr := s.policyRepo.MarkExpired(txCtx, old.ID); markErr != nil {
				return fmt.Errorf("failed to expire policy %d: %w", old.ID, markErr)
			}
		}

		start := old.EndDate
		if start.Before(now) {
			start = now
		}
		end := start.AddDate(1, 0, 0)

		oldID := old.ID
		renewed = model.Policy{
			ProposalKind:      old.ProposalKind,
			ProposalID:        old.ProposalID,
			TravelPackageCode: old.TravelPackageCode,
			OwnerUserID:       old.OwnerUserID,
			PolicyNo:          "PENDING-" + uuid.New().String(),
			Status:            model.PolicyActive,
			IssuedAt:          now,
			StartDate:         start,
			EndDate:           end,
			Premium:           old.Premium,
			SumInsured:        old.SumInsured,
			Snapshot:          old.Snapshot,
			RenewedFromID:     &oldID,
		}
		if createErr := s.policyRepo.Create(txCtx, &renewed); createErr != nil {
			return apperr.Conflictf("policy for proposal %s already renewed: %w", old.ProposalID, createErr)
		}

		renewed.PolicyNo = FormatPolicyNo(old.ProposalKind, now.Year(), renewed.ID)
		if setErr := s.policyRepo.SetPolicyNo(txCtx, renewed.ID, renewed.PolicyNo); setErr != nil {
			return fmt.Errorf("failed to write policy number: %w", setErr)
		}

		// Refresh the proposal denormalization to the successor policy.
		proposal, findErr := s.proposalRepo.FindByIDForUpdate(txCtx, old.ProposalID)
		if findErr != nil {
			return fmt.Errorf("failed to load proposal for renewal: %w", findErr)
		}
		proposal.PolicyStatus = model.PolicyActive
		proposal.PolicyNo = &renewed.PolicyNo
		proposal.PolicyIssuedAt = &now
		endCopy := end
		proposal.PolicyExpiresAt = &endCopy
		if saveErr := s.proposalRepo.Save(txCtx, proposal); saveErr != nil {
			return fmt.Errorf("failed to update proposal: %w", saveErr)
		}

		auditDetails, _ := json.Marshal(map[string]interface{}{
			"old_policy_no": old.PolicyNo,
			"new_policy_no": renewed.PolicyNo,
		})
		audit := model.AuditLog{
			UserID:     &admin,
			Action:     model.ActionRenewPolicy,
			EntityID:   renewed.PolicyNo,
			EntityName: old.ProposalKind,
			Details:    string(auditDetails),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return enqueuePolicyEvent(txCtx, s.notifRepo, renewed.OwnerUserID,
			strconv.FormatUint(uint64(renewed.ID), 10), "policy.renewed", "", map[string]interface{}{
				"policy_no": renewed.PolicyNo,
				"end_date":  end.Format("2006-01-02"),
			})
	})
	if err != nil {
		return IssuePolicyResponse{}, err
	}

	return IssuePolicyResponse{
		PolicyID:  renewed.ID,
		PolicyNo:  renewed.PolicyNo,
		StartDate: renewed.StartDate.Format("2006-01-02"),
		EndDate:   renewed.EndDate.Format("2006-01-02"),
	}, nil
}

func (s *policyService) ListMyPolicies(ctx context.Context, ownerID string, page, limit int) ([]PolicyResponse, int64, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, 0, apperr.Validationf("invalid user id: %w", err)
	}
	policies, total, err := s.policyRepo.ListByOwner(ctx, owner, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list policies: %w", err)
	}

	result := make([]PolicyResponse, 0, len(policies))
	for _, p := range policies {
		result = append(result, PolicyResponse{
			ID:                p.ID,
			PolicyNo:          p.PolicyNo,
			ProposalKind:      p.ProposalKind,
			ProposalID:        p.ProposalID.String(),
			TravelPackageCode: p.TravelPackageCode,
			Status:            p.Status,
			IssuedAt:          p.IssuedAt.Format(time.RFC3339),
			StartDate:         p.StartDate.Format("2006-01-02"),
			EndDate:           p.EndDate.Format("2006-01-02"),
			Premium:           p.Premium.StringFixed(2),
			SumInsured:        p.SumInsured.StringFixed(2),
		})
	}
	return result, total, nil
}

// --- Helpers ---

// coverageWindow derives the policy term: one year from issuance for motor,
// the proposal's own trip dates for travel.
func coverageWindow(p *model.Proposal, issuedAt time.Time) (time.Time, time.Time, error) {
	if p.Kind == model.KindMotor {
		return issuedAt, issuedAt.AddDate(1, 0, 0), nil
	}
	if p.CoverageEndDate == nil {
		return time.Time{}, time.Time{}, apperr.Validationf("travel proposal %s has no trip end date", p.ID)
	}
	return p.CoverageStartDate, *p.CoverageEndDate, nil
}

// snapshotProposal freezes the proposal (including its variant details with
// destinations/family members) at issuance time.
func snapshotProposal(p *model.Proposal) (datatypes.JSON, error) {
	snap := map[string]interface{}{
		"proposal_id":  p.ID.String(),
		"kind":         p.Kind,
		"owner_id":     p.OwnerUserID.String(),
		"sum_insured":  p.SumInsured.StringFixed(2),
		"premium":      p.Premium.StringFixed(2),
		"submitted_at": p.SubmittedAt.Format(time.RFC3339),
		"details":      json.RawMessage(p.Details),
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot proposal: %w", err)
	}
	return datatypes.JSON(raw), nil
}
