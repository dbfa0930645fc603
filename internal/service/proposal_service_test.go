package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"insurance-backend/internal/model"
	"insurance-backend/internal/repository"
	"insurance-backend/pkg/apperr"

	"github.com/google/uuid"
)

type proposalFixture struct {
	svc          ProposalService
	proposalRepo *fakeProposalRepo
	auditRepo    *fakeAuditRepo
	notifRepo    *fakeNotifRepo
	owner        uuid.UUID
}

func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()
	notifRepo := newFakeNotifRepo()
	proposalRepo := newFakeProposalRepo(notifRepo)
	auditRepo := &fakeAuditRepo{}
	return &proposalFixture{
		svc:          NewProposalService(proposalRepo, auditRepo, notifRepo, fakeTxManager{}),
		proposalRepo: proposalRepo,
		auditRepo:    auditRepo,
		notifRepo:    notifRepo,
		owner:        uuid.New(),
	}
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format("2006-01-02")
}

func validMotorRequest() SubmitMotorProposalRequest {
	return SubmitMotorProposalRequest{
		ApplicantName:    "Ahmed Khan",
		CNIC:             "3520212345671",
		Phone:            "+923001234567",
		Email:            "ahmed@example.com",
		IsOwner:          true,
		VehicleMake:      "Toyota",
		VehicleModel:     "Corolla",
		ModelYear:        2022,
		RegistrationNo:   "LEA-1234",
		EngineNo:         "ENG-998877",
		ChassisNo:        "CHS-112233",
		VehicleValue:     "1000000",
		JurisdictionCode: "PB",
		StartDate:        futureDate(1),
	}
}

func TestSubmitMotor(t *testing.T) {
	fx := newProposalFixture(t)

	resp, err := fx.svc.SubmitMotor(context.Background(), fx.owner.String(), validMotorRequest())
	if err != nil {
		t.Fatalf("SubmitMotor: %v", err)
	}
	if resp.Premium != "24670.00" {
		t.Errorf("premium = %q, want 24670.00", resp.Premium)
	}

	id, err := uuid.Parse(resp.ProposalID)
	if err != nil {
		t.Fatalf("proposal id %q is not a uuid: %v", resp.ProposalID, err)
	}
	proposal := fx.proposalRepo.get(id)
	if proposal.SubmissionStatus != model.SubmissionSubmitted ||
		proposal.PaymentStatus != model.PaymentUnpaid ||
		proposal.ReviewStatus != model.ReviewNotApplicable {
		t.Errorf("fresh proposal lifecycle = %s/%s/%s",
			proposal.SubmissionStatus, proposal.PaymentStatus, proposal.ReviewStatus)
	}
	// Seven day payment reservation.
	wantExpiry := proposal.SubmittedAt.AddDate(0, 0, 7)
	if !proposal.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expires_at = %s, want %s", proposal.ExpiresAt, wantExpiry)
	}

	var details model.MotorDetails
	if err := json.Unmarshal(proposal.Details, &details); err != nil {
		t.Fatalf("details payload: %v", err)
	}
	if details.ChassisNo != "CHS-112233" || details.JurisdictionCode != "PB" {
		t.Errorf("details = %+v", details)
	}

	if got := fx.auditRepo.countAction(model.ActionSubmitProposal); got != 1 {
		t.Errorf("SUBMIT_PROPOSAL audit entries = %d, want 1", got)
	}
	// Owner plus staff.
	if got := fx.notifRepo.countEvent("proposal.submitted"); got != 2 {
		t.Errorf("proposal.submitted outbox entries = %d, want 2", got)
	}
}

func TestSubmitMotorValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitMotorProposalRequest)
	}{
		{"registration number and applied-for both set", func(r *SubmitMotorProposalRequest) {
			r.RegistrationApplied = true
		}},
		{"neither registration number nor applied-for", func(r *SubmitMotorProposalRequest) {
			r.RegistrationNo = ""
		}},
		{"non-owner without relation", func(r *SubmitMotorProposalRequest) {
			r.IsOwner = false
		}},
		{"non-owner with non-blood relation", func(r *SubmitMotorProposalRequest) {
			r.IsOwner = false
			r.OwnerRelation = "cousin"
		}},
		{"start date in the past", func(r *SubmitMotorProposalRequest) {
			r.StartDate = time.Now().AddDate(0, 0, -1).Format("2006-01-02")
		}},
		{"unparsable vehicle value", func(r *SubmitMotorProposalRequest) {
			r.VehicleValue = "a lot"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newProposalFixture(t)
			req := validMotorRequest()
			tt.mutate(&req)
			_, err := fx.svc.SubmitMotor(context.Background(), fx.owner.String(), req)
			if !apperr.Is(err, apperr.Validation) {
				t.Errorf("error kind = %v, want Validation (err=%v)", apperr.KindOf(err), err)
			}
			if len(fx.proposalRepo.proposals) != 0 {
				t.Error("rejected submission persisted a proposal")
			}
		})
	}
}

func TestSubmitMotorNonOwnerBloodRelation(t *testing.T) {
	fx := newProposalFixture(t)
	req := validMotorRequest()
	req.IsOwner = false
	req.OwnerRelation = "father"

	if _, err := fx.svc.SubmitMotor(context.Background(), fx.owner.String(), req); err != nil {
		t.Fatalf("SubmitMotor: %v", err)
	}
}

func validTravelRequest(kind string) SubmitTravelProposalRequest {
	return SubmitTravelProposalRequest{
		Kind:          kind,
		ApplicantName: "Sara Ali",
		CNIC:          "3520298765431",
		Phone:         "+923009876543",
		Email:         "sara@example.com",
		DateOfBirth:   "1990-05-15",
		PassportNo:    "AB1234567",
		PlanCode:      "SILVER",
		CoverageCode:  "COV-10K",
		TripStartDate: futureDate(30),
		TripEndDate:   futureDate(39), // 10 day tenure inclusive
		Destinations:  []string{"Lahore"},
	}
}

func TestSubmitTravelDomestic(t *testing.T) {
	fx := newProposalFixture(t)
	req := validTravelRequest(model.KindTravelDomestic)
	req.PassportNo = "" // domestic trips need no passport

	resp, err := fx.svc.SubmitTravel(context.Background(), fx.owner.String(), req)
	if err != nil {
		t.Fatalf("SubmitTravel: %v", err)
	}
	if resp.Premium != "500.00" {
		t.Errorf("premium = %q, want 500.00", resp.Premium)
	}

	id, _ := uuid.Parse(resp.ProposalID)
	proposal := fx.proposalRepo.get(id)
	if proposal.CoverageEndDate == nil {
		t.Fatal("travel proposal has no trip end date")
	}
	var details model.TravelDetails
	if err := json.Unmarshal(proposal.Details, &details); err != nil {
		t.Fatalf("details payload: %v", err)
	}
	if details.PackageCode != "DOM" {
		t.Errorf("package code = %q, want DOM", details.PackageCode)
	}
}

func TestSubmitTravelValidation(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		mutate func(*SubmitTravelProposalRequest)
	}{
		{"international without passport", model.KindTravelInternational, func(r *SubmitTravelProposalRequest) {
			r.PassportNo = ""
			r.CoverageCode = "COV-50K"
		}},
		{"student without institution", model.KindTravelStudent, func(r *SubmitTravelProposalRequest) {
			r.CoverageCode = "COV-50K"
			r.TripEndDate = futureDate(30 + 180)
		}},
		{"trip ends before it starts", model.KindTravelDomestic, func(r *SubmitTravelProposalRequest) {
			r.PassportNo = ""
			r.TripEndDate = r.TripStartDate
		}},
		{"trip starts in the past", model.KindTravelDomestic, func(r *SubmitTravelProposalRequest) {
			r.PassportNo = ""
			r.TripStartDate = time.Now().AddDate(0, 0, -2).Format("2006-01-02")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newProposalFixture(t)
			req := validTravelRequest(tt.kind)
			tt.mutate(&req)
			_, err := fx.svc.SubmitTravel(context.Background(), fx.owner.String(), req)
			if !apperr.Is(err, apperr.Validation) {
				t.Errorf("error kind = %v, want Validation (err=%v)", apperr.KindOf(err), err)
			}
		})
	}
}

func TestGetProposalOwnerScoping(t *testing.T) {
	fx := newProposalFixture(t)
	resp, err := fx.svc.SubmitMotor(context.Background(), fx.owner.String(), validMotorRequest())
	if err != nil {
		t.Fatalf("SubmitMotor: %v", err)
	}

	if _, err := fx.svc.GetProposal(context.Background(), fx.owner.String(), resp.ProposalID, false); err != nil {
		t.Errorf("owner read failed: %v", err)
	}

	stranger := uuid.New().String()
	if _, err := fx.svc.GetProposal(context.Background(), stranger, resp.ProposalID, false); !apperr.Is(err, apperr.NotFound) {
		t.Errorf("stranger read error kind = %v, want NotFound", apperr.KindOf(err))
	}

	// Staff bypass the ownership check.
	if _, err := fx.svc.GetProposal(context.Background(), stranger, resp.ProposalID, true); err != nil {
		t.Errorf("staff read failed: %v", err)
	}
}

func TestResubmitDocs(t *testing.T) {
	fx := newProposalFixture(t)
	resp, err := fx.svc.SubmitMotor(context.Background(), fx.owner.String(), validMotorRequest())
	if err != nil {
		t.Fatalf("SubmitMotor: %v", err)
	}
	id, _ := uuid.Parse(resp.ProposalID)
	proposal := fx.proposalRepo.get(id)
	proposal.PaymentStatus = model.PaymentPaid
	proposal.ReviewStatus = model.ReviewReuploadRequired

	got, err := fx.svc.ResubmitDocs(context.Background(), fx.owner.String(), resp.ProposalID,
		ResubmitDocsRequest{DocumentPaths: []string{"docs/cnic-front.jpg"}})
	if err != nil {
		t.Fatalf("ResubmitDocs: %v", err)
	}
	if got.ReviewStatus != model.ReviewPendingReview {
		t.Errorf("review status = %s, want pending_review", got.ReviewStatus)
	}
	if n := fx.notifRepo.countEvent("proposal.resubmitted"); n != 1 {
		t.Errorf("proposal.resubmitted outbox entries = %d, want 1", n)
	}

	t.Run("wrong owner", func(t *testing.T) {
		proposal.ReviewStatus = model.ReviewReuploadRequired
		_, err := fx.svc.ResubmitDocs(context.Background(), uuid.New().String(), resp.ProposalID,
			ResubmitDocsRequest{DocumentPaths: []string{"docs/cnic-front.jpg"}})
		if !apperr.Is(err, apperr.NotFound) {
			t.Errorf("error kind = %v, want NotFound", apperr.KindOf(err))
		}
	})

	t.Run("not awaiting a reupload", func(t *testing.T) {
		proposal.ReviewStatus = model.ReviewPendingReview
		_, err := fx.svc.ResubmitDocs(context.Background(), fx.owner.String(), resp.ProposalID,
			ResubmitDocsRequest{DocumentPaths: []string{"docs/cnic-front.jpg"}})
		if !apperr.Is(err, apperr.Guard) {
			t.Errorf("error kind = %v, want Guard", apperr.KindOf(err))
		}
	})
}

func TestListReviewQueue(t *testing.T) {
	fx := newProposalFixture(t)

	resp, err := fx.svc.SubmitMotor(context.Background(), fx.owner.String(), validMotorRequest())
	if err != nil {
		t.Fatalf("SubmitMotor: %v", err)
	}
	id, _ := uuid.Parse(resp.ProposalID)

	// Unpaid proposals stay out of the queue.
	queue, total, err := fx.svc.ListReviewQueue(context.Background(), repository.ProposalFilter{})
	if err != nil {
		t.Fatalf("ListReviewQueue: %v", err)
	}
	if total != 0 || len(queue) != 0 {
		t.Errorf("unpaid proposal appeared in the queue")
	}

	p := fx.proposalRepo.get(id)
	p.PaymentStatus = model.PaymentPaid
	p.ReviewStatus = model.ReviewPendingReview

	queue, total, err = fx.svc.ListReviewQueue(context.Background(), repository.ProposalFilter{})
	if err != nil {
		t.Fatalf("ListReviewQueue: %v", err)
	}
	if total != 1 || len(queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(queue))
	}
}
