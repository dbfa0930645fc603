// Package lifecycle holds the proposal review state machine as an explicit
// transition table, so the guard logic is testable without any storage.
package lifecycle

import (
	"insurance-backend/internal/model"
	"insurance-backend/pkg/apperr"
)

// Action is an operation attempted against a proposal's review state.
type Action string

const (
	// Staff actions
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionRequireReupload Action = "reupload_required"
	// Customer action: resubmitting documents after a reupload request
	ActionResubmit Action = "resubmit"
)

type transitionKey struct {
	from   string
	action Action
}

// transitions is the full allowed set; every (state, action) pair absent from
// this table is a guard violation, never a silent no-op.
var transitions = map[transitionKey]string{
	{model.ReviewPendingReview, ActionApprove}:            model.ReviewApproved,
	{model.ReviewPendingReview, ActionReject}:             model.ReviewRejected,
	{model.ReviewPendingReview, ActionRequireReupload}:    model.ReviewReuploadRequired,
	{model.ReviewReuploadRequired, ActionApprove}:         model.ReviewApproved,
	{model.ReviewReuploadRequired, ActionReject}:          model.ReviewRejected,
	{model.ReviewReuploadRequired, ActionRequireReupload}: model.ReviewReuploadRequired,
	{model.ReviewReuploadRequired, ActionResubmit}:        model.ReviewPendingReview,
}

// Next returns the review status that applying action to the current status
// yields, or a guard error when the pair is not in the allowed set.
func Next(current string, action Action) (string, error) {
	next, ok := transitions[transitionKey{from: current, action: action}]
	if !ok {
		return "", apperr.Guardf("action %q is not allowed while review status is %q", action, current)
	}
	return next, nil
}

// CheckReviewable enforces the shared precondition of every review action:
// the proposal must be submitted and paid. Review status itself is checked by
// the transition table.
func CheckReviewable(p *model.Proposal) error {
	if p.SubmissionStatus != model.SubmissionSubmitted {
		return apperr.Guardf("proposal is %s, not submitted", p.SubmissionStatus)
	}
	if p.PaymentStatus != model.PaymentPaid {
		return apperr.Guardf("proposal is unpaid; review requires a paid proposal")
	}
	return nil
}

// CheckIssuable enforces the policy issuance precondition.
func CheckIssuable(p *model.Proposal) error {
	if p.PaymentStatus != model.PaymentPaid {
		return apperr.Guardf("proposal is unpaid; issuance requires a paid proposal")
	}
	if p.ReviewStatus != model.ReviewApproved {
		return apperr.Guardf("proposal review status is %q, not approved", p.ReviewStatus)
	}
	if p.PolicyStatus == model.PolicyActive {
		return apperr.Conflictf("policy already issued for proposal %s", p.ID)
	}
	return nil
}

// NextRefund advances the refund status exactly one step along
// refund_initiated -> refund_processed -> closed.
func NextRefund(current string) (string, error) {
	switch current {
	case model.RefundInitiated:
		return model.RefundProcessed, nil
	case model.RefundProcessed:
		return model.RefundClosed, nil
	default:
		return "", apperr.Guardf("no refund step available from status %q", current)
	}
}
