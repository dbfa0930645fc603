package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"insurance-backend/internal/lifecycle"
	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// --- DTOs ---

type ReviewRequest struct {
	Action          string              `json:"action" binding:"required,oneof=approve reject reupload_required"`
	RejectionReason string              `json:"rejection_reason"`
	ReuploadNotes   string              `json:"reupload_notes"`
	RequiredDocs    []model.RequiredDoc `json:"required_docs"`
}

type ReviewResponse struct {
	ProposalID   string `json:"proposal_id"`
	ReviewStatus string `json:"review_status"`
	RefundStatus string `json:"refund_status"`
}

// --- Interface ---

type ReviewService interface {
	// Review applies one admin review action under a row lock. Preconditions
	// are enforced as guard errors, never silent no-ops.
	Review(ctx context.Context, reviewerID, proposalID string, req ReviewRequest) (ReviewResponse, error)
	// AdvanceRefund moves the refund of a rejected proposal one step:
	// refund_initiated -> refund_processed -> closed.
	AdvanceRefund(ctx context.Context, adminID, proposalID string) (ReviewResponse, error)
}

type reviewService struct {
	proposalRepo repository.ProposalRepository
	auditRepo    repository.AuditRepository
	notifRepo    repository.NotificationRepository
	txManager    repository.TransactionManager
}

func NewReviewService(
	proposalRepo repository.ProposalRepository,
	auditRepo repository.AuditRepository,
	notifRepo repository.NotificationRepository,
	txManager repository.TransactionManager,
) ReviewService {
	return &reviewService{
		proposalRepo: proposalRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *reviewService) Review(ctx context.Context, reviewerID, proposalID string, req ReviewRequest) (ReviewResponse, error) {
	reviewer, err := uuid.Parse(reviewerID)
	if err != nil {
		return ReviewResponse{}, apperr.Validationf("invalid reviewer id: %w", err)
	}
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return ReviewResponse{}, apperr.Validationf("invalid proposal id: %w", err)
	}

	action := lifecycle.Action(req.Action)

	// Action-specific required fields, checked before any state mutation.
	switch action {
	case lifecycle.ActionReject:
		if req.RejectionReason == "" {
			return ReviewResponse{}, apperr.Validationf("rejection_reason is required when rejecting")
		}
	case lifecycle.ActionRequireReupload:
		if req.ReuploadNotes == "" {
			return ReviewResponse{}, apperr.Validationf("reupload_notes is required when requesting a reupload")
		}
		if len(req.RequiredDocs) == 0 {
			return ReviewResponse{}, apperr.Validationf("required_docs must list at least one document")
		}
	}

	var proposal *model.Proposal
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		proposal, findErr = s.proposalRepo.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			return apperr.NotFoundf("proposal not found: %w", findErr)
		}

		if guardErr := lifecycle.CheckReviewable(proposal); guardErr != nil {
			return guardErr
		}
		next, guardErr := lifecycle.Next(proposal.ReviewStatus, action)
		if guardErr != nil {
			return guardErr
		}

		now := time.Now()
		proposal.ReviewStatus = next
		proposal.AdminLastActionBy = &reviewer
		proposal.AdminLastActionAt = &now

		var auditAction, eventKey string
		switch action {
		case lifecycle.ActionApprove:
			// Policy issuance is a separate, later step.
			auditAction = model.ActionApproveProposal
			eventKey = "proposal.approved"

		case lifecycle.ActionReject:
			proposal.RejectionReason = req.RejectionReason
			// Exactly once: the transition table already excludes re-entering
			// a terminal review state, so this cannot run twice.
			proposal.RefundStatus = model.RefundInitiated
			proposal.RefundInitiatedAt = &now
			auditAction = model.ActionRejectProposal
			eventKey = "proposal.rejected"

		case lifecycle.ActionRequireReupload:
			proposal.ReuploadNotes = req.ReuploadNotes
			docsJSON, marshalErr := json.Marshal(req.RequiredDocs)
			if marshalErr != nil {
				return fmt.Errorf("failed to encode required docs: %w", marshalErr)
			}
			proposal.RequiredDocs = datatypes.JSON(docsJSON)
			auditAction = model.ActionRequireReupload
			eventKey = "proposal.reupload_required"
		}

		if saveErr := s.proposalRepo.Save(txCtx, proposal); saveErr != nil {
			return fmt.Errorf("failed to update proposal: %w", saveErr)
		}

		auditDetails, _ := json.Marshal(map[string]interface{}{
			"action":           req.Action,
			"rejection_reason": req.RejectionReason,
			"reupload_notes":   req.ReuploadNotes,
		})
		audit := model.AuditLog{
			UserID:     &reviewer,
			Action:     auditAction,
			EntityID:   proposal.ID.String(),
			EntityName: proposal.Kind,
			Details:    string(auditDetails),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		payload := map[string]interface{}{
			"kind":   proposal.Kind,
			"reason": req.RejectionReason,
			"notes":  req.ReuploadNotes,
		}
		if enqErr := enqueueOwnerEvent(txCtx, s.notifRepo, proposal, eventKey, payload); enqErr != nil {
			return enqErr
		}
		if action == lifecycle.ActionReject {
			// Staff must process the refund manually.
			return enqueueStaffEvent(txCtx, s.notifRepo, proposal, "refund.pending", payload)
		}
		return nil
	})
	if err != nil {
		return ReviewResponse{}, err
	}

	return ReviewResponse{
		ProposalID:   proposal.ID.String(),
		ReviewStatus: proposal.ReviewStatus,
		RefundStatus: proposal.RefundStatus,
	}, nil
}

func (s *reviewService) AdvanceRefund(ctx context.Context, adminID, proposalID string) (ReviewResponse, error) {
	admin, err := uuid.Parse(adminID)
	if err != nil {
		return ReviewResponse{}, apperr.Validationf("invalid admin id: %w", err)
	}
	id, err := uuid.Parse(proposalID)
	if err != nil {
		return ReviewResponse{}, apperr.Validationf("invalid proposal id: %w", err)
	}

	var proposal *model.Proposal
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		proposal, findErr = s.proposalRepo.FindByIDForUpdate(txCtx, id)
		if findErr != nil {
			return apperr.NotFoundf("proposal not found: %w", findErr)
		}

		next, guardErr := lifecycle.NextRefund(proposal.RefundStatus)
		if guardErr != nil {
			return guardErr
		}

		now := time.Now()
		proposal.RefundStatus = next
		proposal.AdminLastActionBy = &admin
		proposal.AdminLastActionAt = &now
		if saveErr := s.proposalRepo.Save(txCtx, proposal); saveErr != nil {
			return fmt.Errorf("failed to update proposal: %w", saveErr)
		}

		auditAction := model.ActionProcessRefund
		if next == model.RefundClosed {
			auditAction = model.ActionCloseRefund
		}
		auditDetails, _ := json.Marshal(map[string]interface{}{"refund_status": next})
		audit := model.AuditLog{
			UserID:     &admin,
			Action:     auditAction,
			EntityID:   proposal.ID.String(),
			EntityName: proposal.Kind,
			Details:    string(auditDetails),
		}
		if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		if next == model.RefundProcessed {
			return enqueueOwnerEvent(txCtx, s.notifRepo, proposal, "refund.processed", map[string]interface{}{
				"kind":   proposal.Kind,
				"amount": proposal.Premium.StringFixed(2),
			})
		}
		return nil
	})
	if err != nil {
		return ReviewResponse{}, err
	}

	return ReviewResponse{
		ProposalID:   proposal.ID.String(),
		ReviewStatus: proposal.ReviewStatus,
		RefundStatus: proposal.RefundStatus,
	}, nil
}
