package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"insurance-backend/internal/model"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type policyFixture struct {
	svc          PolicyService
	policyRepo   *fakePolicyRepo
	proposalRepo *fakeProposalRepo
	auditRepo    *fakeAuditRepo
	notifRepo    *fakeNotifRepo
	store        *fakeStorage
	admin        uuid.UUID
	owner        uuid.UUID
	proposalID   uuid.UUID
}

func newPolicyFixture(t *testing.T, kind string) *policyFixture {
	t.Helper()

	notifRepo := newFakeNotifRepo()
	proposalRepo := newFakeProposalRepo(notifRepo)
	policyRepo := newFakePolicyRepo(notifRepo)
	auditRepo := &fakeAuditRepo{}
	store := &fakeStorage{}

	owner := uuid.New()
	now := time.Now()
	details, _ := json.Marshal(map[string]string{"applicant_name": "Test Applicant"})
	end := now.AddDate(0, 0, 14)
	proposalID := proposalRepo.put(model.Proposal{
		OwnerUserID:       owner,
		Kind:              kind,
		SubmissionStatus:  model.SubmissionSubmitted,
		PaymentStatus:     model.PaymentPaid,
		ReviewStatus:      model.ReviewApproved,
		PolicyStatus:      model.PolicyNotIssued,
		RefundStatus:      model.RefundNotApplicable,
		SumInsured:        decimal.NewFromInt(1000000),
		Premium:           decimal.NewFromInt(24670),
		CoverageStartDate: now,
		CoverageEndDate:   &end,
		SubmittedAt:       now,
		ExpiresAt:         now.AddDate(0, 0, 7),
		Details:           datatypes.JSON(details),
	})

	return &policyFixture{
		svc:          NewPolicyService(policyRepo, proposalRepo, auditRepo, notifRepo, fakeTxManager{}, store),
		policyRepo:   policyRepo,
		proposalRepo: proposalRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		store:        store,
		admin:        uuid.New(),
		owner:        owner,
		proposalID:   proposalID,
	}
}

func TestFormatPolicyNo(t *testing.T) {
	tests := []struct {
		kind string
		year int
		id   uint
		want string
	}{
		{model.KindMotor, 2026, 1, "MTR-2026-0000001"},
		{model.KindMotor, 2026, 42, "MTR-2026-0000042"},
		{model.KindTravelInternational, 2027, 1234567, "TRI-2027-1234567"},
		{model.KindTravelHajj, 2026, 9, "TRH-2026-0000009"},
	}
	for _, tt := range tests {
		if got := FormatPolicyNo(tt.kind, tt.year, tt.id); got != tt.want {
			t.Errorf("FormatPolicyNo(%s, %d, %d) = %q, want %q", tt.kind, tt.year, tt.id, got, tt.want)
		}
	}
}

func TestIssueMotorPolicy(t *testing.T) {
	fx := newPolicyFixture(t, model.KindMotor)

	resp, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{
		ProposalID: fx.proposalID.String(),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	wantNo := fmt.Sprintf("MTR-%d-%07d", time.Now().Year(), resp.PolicyID)
	if resp.PolicyNo != wantNo {
		t.Errorf("policy no = %q, want %q", resp.PolicyNo, wantNo)
	}

	policy := fx.policyRepo.get(resp.PolicyID)
	if policy.Status != model.PolicyActive {
		t.Errorf("policy status = %s, want active", policy.Status)
	}
	if policy.TravelPackageCode != "NA" {
		t.Errorf("package code = %q, want NA", policy.TravelPackageCode)
	}
	if len(policy.Snapshot) == 0 {
		t.Error("policy carries no proposal snapshot")
	}
	// Motor runs one year from issuance.
	if wantEnd := policy.StartDate.AddDate(1, 0, 0); !policy.EndDate.Equal(wantEnd) {
		t.Errorf("end date = %s, want %s", policy.EndDate, wantEnd)
	}

	proposal := fx.proposalRepo.get(fx.proposalID)
	if proposal.PolicyStatus != model.PolicyActive {
		t.Errorf("proposal policy status = %s, want active", proposal.PolicyStatus)
	}
	if proposal.PolicyNo == nil || *proposal.PolicyNo != wantNo {
		t.Error("policy number not denormalized onto the proposal")
	}
	if got := fx.auditRepo.countAction(model.ActionIssuePolicy); got != 1 {
		t.Errorf("ISSUE_POLICY audit entries = %d, want 1", got)
	}
	if got := fx.notifRepo.countEvent("policy.issued"); got != 1 {
		t.Errorf("policy.issued outbox entries = %d, want 1", got)
	}
}

func TestIssueTravelPolicyUsesTripDates(t *testing.T) {
	fx := newPolicyFixture(t, model.KindTravelInternational)

	resp, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{
		ProposalID: fx.proposalID.String(),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	policy := fx.policyRepo.get(resp.PolicyID)
	proposal := fx.proposalRepo.get(fx.proposalID)
	if !policy.StartDate.Equal(proposal.CoverageStartDate) || !policy.EndDate.Equal(*proposal.CoverageEndDate) {
		t.Errorf("policy term %s..%s does not match trip dates", policy.StartDate, policy.EndDate)
	}
	if policy.TravelPackageCode != "INTL" {
		t.Errorf("package code = %q, want INTL", policy.TravelPackageCode)
	}
}

func TestIssueGuards(t *testing.T) {
	t.Run("not approved", func(t *testing.T) {
		fx := newPolicyFixture(t, model.KindMotor)
		fx.proposalRepo.get(fx.proposalID).ReviewStatus = model.ReviewPendingReview
		_, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()})
		if !apperr.Is(err, apperr.Guard) {
			t.Errorf("error kind = %v, want Guard", apperr.KindOf(err))
		}
	})

	t.Run("unpaid", func(t *testing.T) {
		fx := newPolicyFixture(t, model.KindMotor)
		fx.proposalRepo.get(fx.proposalID).PaymentStatus = model.PaymentUnpaid
		_, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()})
		if !apperr.Is(err, apperr.Guard) {
			t.Errorf("error kind = %v, want Guard", apperr.KindOf(err))
		}
	})

	t.Run("already issued", func(t *testing.T) {
		fx := newPolicyFixture(t, model.KindMotor)
		fx.proposalRepo.get(fx.proposalID).PolicyStatus = model.PolicyActive
		_, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()})
		if !apperr.Is(err, apperr.Conflict) {
			t.Errorf("error kind = %v, want Conflict", apperr.KindOf(err))
		}
	})
}

func TestIssueFailureCleansUpDocuments(t *testing.T) {
	fx := newPolicyFixture(t, model.KindMotor)
	fx.proposalRepo.get(fx.proposalID).ReviewStatus = model.ReviewPendingReview

	_, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{
		ProposalID:    fx.proposalID.String(),
		DocumentPaths: []string{"policies/cover-note.pdf"},
	})
	if err == nil {
		t.Fatal("expected a guard error")
	}
	if len(fx.store.removed) != 1 || fx.store.removed[0] != "policies/cover-note.pdf" {
		t.Errorf("removed paths = %v, want the orphaned cover note", fx.store.removed)
	}
}

func TestRenewMotorPolicy(t *testing.T) {
	fx := newPolicyFixture(t, model.KindMotor)

	issued, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	// Pull the end date into the renewal window.
	old := fx.policyRepo.get(issued.PolicyID)
	old.EndDate = time.Now().AddDate(0, 0, 10)

	renewed, err := fx.svc.Renew(context.Background(), fx.admin.String(), issued.PolicyID)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}

	if fx.policyRepo.get(issued.PolicyID).Status != model.PolicyExpired {
		t.Error("superseded policy still active")
	}
	successor := fx.policyRepo.get(renewed.PolicyID)
	if successor.Status != model.PolicyActive {
		t.Errorf("renewed policy status = %s, want active", successor.Status)
	}
	if successor.RenewedFromID == nil || *successor.RenewedFromID != issued.PolicyID {
		t.Error("renewal lineage not recorded")
	}
	// Contiguous cover: new term starts at the old end date.
	if !successor.StartDate.Equal(old.EndDate) {
		t.Errorf("renewal start = %s, want %s", successor.StartDate, old.EndDate)
	}
	if wantEnd := old.EndDate.AddDate(1, 0, 0); !successor.EndDate.Equal(wantEnd) {
		t.Errorf("renewal end = %s, want %s", successor.EndDate, wantEnd)
	}

	proposal := fx.proposalRepo.get(fx.proposalID)
	if proposal.PolicyNo == nil || *proposal.PolicyNo != successor.PolicyNo {
		t.Error("proposal not repointed at the successor policy")
	}
	if got := fx.auditRepo.countAction(model.ActionRenewPolicy); got != 1 {
		t.Errorf("RENEW_POLICY audit entries = %d, want 1", got)
	}
	if got := fx.notifRepo.countEvent("policy.renewed"); got != 1 {
		t.Errorf("policy.renewed outbox entries = %d, want 1", got)
	}
}

func TestRenewGuards(t *testing.T) {
	t.Run("travel policies do not renew", func(t *testing.T) {
		fx := newPolicyFixture(t, model.KindTravelDomestic)
		issued, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()})
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err = fx.svc.Renew(context.Background(), fx.admin.String(), issued.PolicyID); !apperr.Is(err, apperr.Guard) {
			t.Errorf("error kind = %v, want Guard", apperr.KindOf(err))
		}
	})

	t.Run("outside the renewal window", func(t *testing.T) {
		fx := newPolicyFixture(t, model.KindMotor)
		issued, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()})
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		// Fresh policy ends a year out, well past the 30 day window.
		if _, err = fx.svc.Renew(context.Background(), fx.admin.String(), issued.PolicyID); !apperr.Is(err, apperr.Guard) {
			t.Errorf("error kind = %v, want Guard", apperr.KindOf(err))
		}
	})

	t.Run("unknown policy", func(t *testing.T) {
		fx := newPolicyFixture(t, model.KindMotor)
		if _, err := fx.svc.Renew(context.Background(), fx.admin.String(), 999); !apperr.Is(err, apperr.NotFound) {
			t.Errorf("error kind = %v, want NotFound", apperr.KindOf(err))
		}
	})
}

func TestListMyPolicies(t *testing.T) {
	fx := newPolicyFixture(t, model.KindMotor)
	if _, err := fx.svc.Issue(context.Background(), fx.admin.String(), IssuePolicyRequest{ProposalID: fx.proposalID.String()}); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	mine, total, err := fx.svc.ListMyPolicies(context.Background(), fx.owner.String(), 1, 20)
	if err != nil {
		t.Fatalf("ListMyPolicies: %v", err)
	}
	if total != 1 || len(mine) != 1 {
		t.Fatalf("got %d policies, want 1", len(mine))
	}
	if mine[0].Premium != "24670.00" {
		t.Errorf("premium = %q, want 24670.00", mine[0].Premium)
	}

	other, total, err := fx.svc.ListMyPolicies(context.Background(), uuid.New().String(), 1, 20)
	if err != nil {
		t.Fatalf("ListMyPolicies: %v", err)
	}
	if total != 0 || len(other) != 0 {
		t.Errorf("stranger sees %d policies", len(other))
	}
}
