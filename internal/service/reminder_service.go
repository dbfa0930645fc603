package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
)

const (
	// scanBatchSize caps how many rows one scheduled scan touches.
	scanBatchSize = 200

	// unpaidReminderAfterDays is how long after submission the unpaid
	// payment reminder fires.
	unpaidReminderAfterDays = 3

	milestoneUnpaidD3 = "UNPAID-D3"
	milestoneExpired  = "EXPIRED"
)

// expiryMilestones maps days-before-expiry to the milestone recorded in the
// send log. Each policy gets each milestone at most once, regardless of how
// often the scan runs.
var expiryMilestones = map[int]string{
	30: "D-30",
	15: "D-15",
	5:  "D-5",
	1:  "D-1",
}

// ScanSummary reports what one full scheduled run did.
type ScanSummary struct {
	UnpaidReminders  int `json:"unpaid_reminders"`
	LapsedProposals  int `json:"lapsed_proposals"`
	ExpiryMilestones int `json:"expiry_milestones"`
	ExpiredPolicies  int `json:"expired_policies"`
}

// ReminderService hosts the scheduled scans. Every scan is idempotent:
// re-running it produces no duplicate notifications and no repeated state
// flips, so the scheduler may fire it as often as it likes.
type ReminderService interface {
	// ScanUnpaidProposals enqueues a payment reminder for unpaid proposals
	// older than the reminder threshold.
	ScanUnpaidProposals(ctx context.Context) (int, error)
	// ExpireUnpaidProposals lapses unpaid proposals past their reservation
	// window.
	ExpireUnpaidProposals(ctx context.Context) (int, error)
	// ScanPolicyExpiryMilestones enqueues the D-30/D-15/D-5/D-1 expiry
	// warnings for active policies.
	ScanPolicyExpiryMilestones(ctx context.Context) (int, error)
	// ExpirePolicies flips active policies past their end date to expired.
	ExpirePolicies(ctx context.Context) (int, error)
	// RunAll executes every scan once and reports the counts.
	RunAll(ctx context.Context) (ScanSummary, error)
}

type reminderService struct {
	proposalRepo repository.ProposalRepository
	policyRepo   repository.PolicyRepository
	auditRepo    repository.AuditRepository
	notifRepo    repository.NotificationRepository
	txManager    repository.TransactionManager
}

func NewReminderService(
	proposalRepo repository.ProposalRepository,
	policyRepo repository.PolicyRepository,
	auditRepo repository.AuditRepository,
	notifRepo repository.NotificationRepository,
	txManager repository.TransactionManager,
) ReminderService {
	return &reminderService{
		proposalRepo: proposalRepo,
		policyRepo:   policyRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func (s *reminderService) ScanUnpaidProposals(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -unpaidReminderAfterDays)
	proposals, err := s.proposalRepo.ListUnpaidOlderThan(ctx, cutoff, milestoneUnpaidD3, scanBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpaid proposals: %w", err)
	}

	enqueued := 0
	for i := range proposals {
		p := &proposals[i]
		payload := map[string]interface{}{
			"kind":       p.Kind,
			"premium":    p.Premium.StringFixed(2),
			"expires_at": p.ExpiresAt.Format("2006-01-02"),
		}
		entry := model.NotificationOutbox{
			EventKey:        "payment.reminder",
			Audience:        model.AudienceUser,
			RecipientUserID: ptrUUID(p.OwnerUserID),
			EntityType:      "proposal",
			EntityID:        p.ID.String(),
			Milestone:       milestoneUnpaidD3,
			Channels:        model.ChannelInApp + "," + model.ChannelEmail,
			TemplateCode:    "payment.reminder",
		}
		if enqErr := enqueue(ctx, s.notifRepo, entry, payload); enqErr != nil {
			log.Printf("failed to enqueue payment reminder for %s: %v", p.ID, enqErr)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

func (s *reminderService) ExpireUnpaidProposals(ctx context.Context) (int, error) {
	now := time.Now()
	proposals, err := s.proposalRepo.ListUnpaidExpired(ctx, now, scanBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired unpaid proposals: %w", err)
	}

	lapsed := 0
	for i := range proposals {
		p := &proposals[i]
		txErr := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			flipped, markErr := s.proposalRepo.MarkLapsed(txCtx, p.ID)
			if markErr != nil {
				return markErr
			}
			if !flipped {
				// Paid or lapsed by a concurrent run between list and update.
				return nil
			}

			details, _ := json.Marshal(map[string]interface{}{
				"expires_at": p.ExpiresAt.Format(time.RFC3339),
			})
			audit := model.AuditLog{
				Action:     model.ActionLapseProposal,
				EntityID:   p.ID.String(),
				EntityName: p.Kind,
				Details:    string(details),
			}
			if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
				return auditErr
			}

			lapsed++
			return enqueueOwnerEvent(txCtx, s.notifRepo, p, "proposal.lapsed", map[string]interface{}{
				"kind": p.Kind,
			})
		})
		if txErr != nil {
			log.Printf("failed to lapse proposal %s: %v", p.ID, txErr)
		}
	}
	return lapsed, nil
}

func (s *reminderService) ScanPolicyExpiryMilestones(ctx context.Context) (int, error) {
	now := time.Now()
	enqueued := 0
	for daysLeft, milestone := range expiryMilestones {
		day := now.AddDate(0, 0, daysLeft)
		policies, err := s.policyRepo.ListExpiringOn(ctx, day, milestone, scanBatchSize)
		if err != nil {
			return enqueued, fmt.Errorf("failed to list policies expiring at %s: %w", milestone, err)
		}
		for i := range policies {
			p := &policies[i]
			payload := map[string]interface{}{
				"policy_no": p.PolicyNo,
				"end_date":  p.EndDate.Format("2006-01-02"),
			}
			if enqErr := enqueuePolicyEvent(ctx, s.notifRepo, p.OwnerUserID,
				strconv.FormatUint(uint64(p.ID), 10), "policy.expiring", milestone, payload); enqErr != nil {
				log.Printf("failed to enqueue %s reminder for policy %s: %v", milestone, p.PolicyNo, enqErr)
				continue
			}
			enqueued++
		}
	}
	return enqueued, nil
}

func (s *reminderService) ExpirePolicies(ctx context.Context) (int, error) {
	now := time.Now()
	policies, err := s.policyRepo.ListExpired(ctx, now, scanBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired policies: %w", err)
	}

	expired := 0
	for i := range policies {
		p := &policies[i]
		txErr := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			flipped, markErr := s.policyRepo.MarkExpired(txCtx, p.ID)
			if markErr != nil {
				return markErr
			}
			if !flipped {
				return nil
			}
			if _, propErr := s.proposalRepo.MarkPolicyExpired(txCtx, p.ProposalID); propErr != nil {
				return propErr
			}

			details, _ := json.Marshal(map[string]interface{}{
				"policy_no": p.PolicyNo,
				"end_date":  p.EndDate.Format(time.RFC3339),
			})
			audit := model.AuditLog{
				Action:     model.ActionExpirePolicy,
				EntityID:   strconv.FormatUint(uint64(p.ID), 10),
				EntityName: p.ProposalKind,
				Details:    string(details),
			}
			if auditErr := s.auditRepo.Log(txCtx, &audit); auditErr != nil {
				return auditErr
			}

			expired++
			return enqueuePolicyEvent(txCtx, s.notifRepo, p.OwnerUserID,
				strconv.FormatUint(uint64(p.ID), 10), "policy.expired", milestoneExpired, map[string]interface{}{
					"policy_no": p.PolicyNo,
					"end_date":  p.EndDate.Format("2006-01-02"),
				})
		})
		if txErr != nil {
			log.Printf("failed to expire policy %s: %v", p.PolicyNo, txErr)
		}
	}
	return expired, nil
}

func (s *reminderService) RunAll(ctx context.Context) (ScanSummary, error) {
	var summary ScanSummary
	var err error

	if summary.UnpaidReminders, err = s.ScanUnpaidProposals(ctx); err != nil {
		return summary, err
	}
	if summary.LapsedProposals, err = s.ExpireUnpaidProposals(ctx); err != nil {
		return summary, err
	}
	if summary.ExpiryMilestones, err = s.ScanPolicyExpiryMilestones(ctx); err != nil {
		return summary, err
	}
	if summary.ExpiredPolicies, err = s.ExpirePolicies(ctx); err != nil {
		return summary, err
	}
	return summary, nil
}
