package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"insurance-backend/internal/gateway"
	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// amountTolerance is the maximum absolute delta accepted between the
// gateway-reported amount and the recorded payment amount.
var amountTolerance = decimal.NewFromInt(1)

// --- DTOs ---

type InitiatePaymentRequest struct {
	Amount             string  `json:"amount" binding:"required"`
	ApplicationKind    string  `json:"application_kind" binding:"required,oneof=MOTOR TRAVEL_DOMESTIC TRAVEL_HAJJ TRAVEL_INTERNATIONAL TRAVEL_STUDENT"`
	ApplicationSubtype *string `json:"application_subtype"`
	ApplicationID      string  `json:"application_id" binding:"required"`
	CustomerEmail      string  `json:"customer_email" binding:"required,email"`
}

type InitiatePaymentResponse struct {
	PaymentID   string            `json:"payment_id"`
	RedirectURL string            `json:"redirect_url"`
	Params      map[string]string `json:"params"`
}

// --- Interface ---

type PaymentService interface {
	InitiatePayment(ctx context.Context, ownerID string, req InitiatePaymentRequest) (InitiatePaymentResponse, error)
	// HandleCallback verifies and applies one webhook delivery. It is
	// idempotent: re-applying a success callback is a no-op. The handler
	// always acks the gateway regardless of the returned error.
	HandleCallback(ctx context.Context, form map[string]string) error
}

type paymentService struct {
	paymentRepo  repository.PaymentRepository
	proposalRepo repository.ProposalRepository
	auditRepo    repository.AuditRepository
	notifRepo    repository.NotificationRepository
	txManager    repository.TransactionManager
	gateway      *gateway.Gateway
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	proposalRepo repository.ProposalRepository,
	auditRepo repository.AuditRepository,
	notifRepo repository.NotificationRepository,
	txManager repository.TransactionManager,
	gw *gateway.Gateway,
) PaymentService {
	return &paymentService{
		paymentRepo:  paymentRepo,
		proposalRepo: proposalRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		txManager:    txManager,
		gateway:      gw,
	}
}

// --- Implementation ---

func (s *paymentService) InitiatePayment(ctx context.Context, ownerID string, req InitiatePaymentRequest) (InitiatePaymentResponse, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return InitiatePaymentResponse{}, apperr.Validationf("invalid user id: %w", err)
	}
	applicationID, err := uuid.Parse(req.ApplicationID)
	if err != nil {
		return InitiatePaymentResponse{}, apperr.Validationf("invalid application_id: %w", err)
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return InitiatePaymentResponse{}, apperr.Validationf("invalid amount %q", req.Amount)
	}

	proposal, err := s.proposalRepo.FindByID(ctx, applicationID)
	if err != nil {
		return InitiatePaymentResponse{}, apperr.NotFoundf("proposal not found: %w", err)
	}
	if proposal.OwnerUserID != owner {
		return InitiatePaymentResponse{}, apperr.NotFoundf("proposal not found")
	}
	if proposal.Kind != req.ApplicationKind {
		return InitiatePaymentResponse{}, apperr.Validationf("application_kind %q does not match proposal kind %q", req.ApplicationKind, proposal.Kind)
	}
	if proposal.PaymentStatus == model.PaymentPaid {
		return InitiatePaymentResponse{}, apperr.Guardf("proposal is already paid")
	}
	if proposal.SubmissionStatus != model.SubmissionSubmitted {
		return InitiatePaymentResponse{}, apperr.Guardf("proposal is %s; payment is closed", proposal.SubmissionStatus)
	}
	if amount.Sub(proposal.Premium).Abs().GreaterThan(amountTolerance) {
		return InitiatePaymentResponse{}, apperr.Validationf("amount %s does not match the proposal premium %s",
			amount.StringFixed(2), proposal.Premium.StringFixed(2))
	}

	payment := model.Payment{
		OwnerUserID:        owner,
		ApplicationKind:    proposal.Kind,
		ApplicationSubtype: req.ApplicationSubtype,
		ApplicationID:      applicationID,
		Amount:             amount,
		Status:             model.PaymentStatusPending,
		GatewayOrderID:     uuid.New().String(),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.paymentRepo.Create(txCtx, &payment); createErr != nil {
			return fmt.Errorf("failed to create payment: %w", createErr)
		}
		auditDetails, _ := json.Marshal(map[string]interface{}{
			"amount":      amount.StringFixed(2),
			"proposal_id": applicationID.String(),
		})
		audit := model.AuditLog{
			UserID:     &owner,
			Action:     model.ActionInitiatePayment,
			EntityID:   payment.ID.String(),
			EntityName: proposal.Kind,
			Details:    string(auditDetails),
		}
		return s.auditRepo.Log(txCtx, &audit)
	})
	if err != nil {
		return InitiatePaymentResponse{}, err
	}

	checkout := s.gateway.BuildCheckout(payment.GatewayOrderID, amount, proposal.Kind+" premium", req.CustomerEmail)
	return InitiatePaymentResponse{
		PaymentID:   payment.ID.String(),
		RedirectURL: checkout.RedirectURL,
		Params:      checkout.Params,
	}, nil
}

func (s *paymentService) HandleCallback(ctx context.Context, form map[string]string) error {
	callback, err := s.gateway.VerifyCallback(form)
	if err != nil {
		return err
	}

	payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, callback.OrderID)
	if err != nil {
		return apperr.NotFoundf("no payment for gateway order %q: %w", callback.OrderID, err)
	}

	rawPayload, _ := json.Marshal(form)

	if !callback.Succeeded {
		flipped, markErr := s.paymentRepo.MarkFailed(ctx, payment.ID, datatypes.JSON(rawPayload))
		if markErr != nil {
			return fmt.Errorf("failed to mark payment failed: %w", markErr)
		}
		if flipped {
			s.auditPaymentOutcome(ctx, payment, model.ActionPaymentFailed, callback.RawStatus)
		}
		return nil
	}

	if callback.Amount.Sub(payment.Amount).Abs().GreaterThan(amountTolerance) {
		return apperr.Externalf("callback amount %s deviates from payment amount %s beyond tolerance",
			callback.Amount.StringFixed(2), payment.Amount.StringFixed(2))
	}

	// The proposal transition is a case-guarded conditional UPDATE rather
	// than a locked read-modify-write: the guard makes the flip itself
	// idempotent under gateway retries. Compound invariants (refund exactly
	// once) are not touched here — refunds flip only in the review workflow.
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		flipped, markErr := s.paymentRepo.MarkSuccess(txCtx, payment.ID, callback.GatewayTxnID, datatypes.JSON(rawPayload))
		if markErr != nil {
			return fmt.Errorf("failed to mark payment success: %w", markErr)
		}

		applied, applyErr := s.proposalRepo.ApplyPaymentSuccess(txCtx, payment.ApplicationID)
		if applyErr != nil {
			return fmt.Errorf("failed to apply payment to proposal: %w", applyErr)
		}
		if !applied {
			// Already paid/pending_review — a gateway retry. Ack without
			// re-firing side effects.
			if flipped {
				log.Printf("payment %s marked SUCCESS but proposal %s was already paid", payment.ID, payment.ApplicationID)
			}
			return nil
		}

		s.auditPaymentOutcome(txCtx, payment, model.ActionPaymentSuccess, callback.RawStatus)

		proposal, findErr := s.proposalRepo.FindByID(txCtx, payment.ApplicationID)
		if findErr != nil {
			return fmt.Errorf("failed to reload proposal: %w", findErr)
		}
		return enqueueProposalEvent(txCtx, s.notifRepo, proposal, "payment.received", map[string]interface{}{
			"amount": payment.Amount.StringFixed(2),
			"kind":   proposal.Kind,
		})
	})
}

func (s *paymentService) auditPaymentOutcome(ctx context.Context, payment *model.Payment, action, rawStatus string) {
	details, _ := json.Marshal(map[string]interface{}{
		"gateway_status": rawStatus,
		"amount":         payment.Amount.StringFixed(2),
		"proposal_id":    payment.ApplicationID.String(),
	})
	audit := model.AuditLog{
		Action:     action,
		EntityID:   payment.ID.String(),
		EntityName: payment.ApplicationKind,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, &audit); err != nil {
		log.Printf("failed to write payment audit log: %v", err)
	}
}
