package repository

import (
	"context"
	"time"

	"insurance-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProposalFilter narrows proposal listings.
type ProposalFilter struct {
	Kind         string
	ReviewStatus string
	Page         int
	Limit        int
}

type ProposalRepository interface {
	Create(ctx context.Context, p *model.Proposal) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error)
	// FindByIDForUpdate takes an exclusive row lock; callers must be inside a
	// transaction.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proposal, error)
	Save(ctx context.Context, p *model.Proposal) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter ProposalFilter) ([]model.Proposal, int64, error)
	ListPendingReview(ctx context.Context, filter ProposalFilter) ([]model.Proposal, int64, error)

	// ApplyPaymentSuccess flips unpaid -> paid and not_applicable ->
	// pending_review in one case-guarded conditional UPDATE. It reports
	// whether the transition actually applied, so a gateway retry is a
	// detectable no-op.
	ApplyPaymentSuccess(ctx context.Context, id uuid.UUID) (bool, error)

	// ListUnpaidOlderThan returns unpaid, still-live proposals submitted
	// before the cutoff, capped at limit, skipping any proposal that already
	// has a send-log row for the milestone.
	ListUnpaidOlderThan(ctx context.Context, cutoff time.Time, milestone string, limit int) ([]model.Proposal, error)
	// ListUnpaidExpired returns unpaid proposals past their reservation
	// window, capped at limit.
	ListUnpaidExpired(ctx context.Context, now time.Time, limit int) ([]model.Proposal, error)
	// MarkLapsed conditionally closes an unpaid expired proposal.
	MarkLapsed(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkPolicyExpired conditionally flips the denormalized policy status.
	MarkPolicyExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

type proposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(ctx context.Context, p *model.Proposal) error {
	return GetDB(ctx, r.db).Create(p).Error
}

func (r *proposalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	var p model.Proposal
	if err := GetDB(ctx, r.db).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *proposalRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Proposal, error) {
	var p model.Proposal
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *proposalRepository) Save(ctx context.Context, p *model.Proposal) error {
	return GetDB(ctx, r.db).Save(p).Error
}

func (r *proposalRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter ProposalFilter) ([]model.Proposal, int64, error) {
	return r.list(ctx, filter, func(q *gorm.DB) *gorm.DB {
		return q.Where("owner_user_id = ?", ownerID)
	})
}

func (r *proposalRepository) ListPendingReview(ctx context.Context, filter ProposalFilter) ([]model.Proposal, int64, error) {
	return r.list(ctx, filter, func(q *gorm.DB) *gorm.DB {
		return q.Where("payment_status = ?", model.PaymentPaid).
			Where("review_status IN ?", []string{model.ReviewPendingReview, model.ReviewReuploadRequired})
	})
}

func (r *proposalRepository) list(ctx context.Context, filter ProposalFilter, scope func(*gorm.DB) *gorm.DB) ([]model.Proposal, int64, error) {
	db := GetDB(ctx, r.db)

	apply := func(q *gorm.DB) *gorm.DB {
		q = scope(q)
		if filter.Kind != "" {
			q = q.Where("kind = ?", filter.Kind)
		}
		if filter.ReviewStatus != "" {
			q = q.Where("review_status = ?", filter.ReviewStatus)
		}
		return q
	}

	var total int64
	if err := apply(db.Model(&model.Proposal{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	var proposals []model.Proposal
	offset := (filter.Page - 1) * filter.Limit
	if err := apply(db).Order("submitted_at DESC").Offset(offset).Limit(filter.Limit).
		Find(&proposals).Error; err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (r *proposalRepository) ApplyPaymentSuccess(ctx context.Context, id uuid.UUID) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Proposal{}).
		Where("id = ? AND payment_status = ? AND submission_status = ?",
			id, model.PaymentUnpaid, model.SubmissionSubmitted).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentPaid,
			"review_status":  model.ReviewPendingReview,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *proposalRepository) ListUnpaidOlderThan(ctx context.Context, cutoff time.Time, milestone string, limit int) ([]model.Proposal, error) {
	var proposals []model.Proposal
	err := GetDB(ctx, r.db).
		Where("payment_status = ? AND submission_status = ?", model.PaymentUnpaid, model.SubmissionSubmitted).
		Where("submitted_at <= ? AND expires_at > ?", cutoff, time.Now()).
		Where(`NOT EXISTS (
			SELECT 1 FROM notification_send_logs l
			WHERE l.entity_type = 'proposal' AND l.entity_id = proposals.id::text
			  AND l.milestone = ? AND l.channel = ?)`, milestone, model.ChannelInApp).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&proposals).Error
	return proposals, err
}

func (r *proposalRepository) ListUnpaidExpired(ctx context.Context, now time.Time, limit int) ([]model.Proposal, error) {
	var proposals []model.Proposal
	err := GetDB(ctx, r.db).
		Where("payment_status = ? AND submission_status = ?", model.PaymentUnpaid, model.SubmissionSubmitted).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&proposals).Error
	return proposals, err
}

func (r *proposalRepository) MarkLapsed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Proposal{}).
		Where("id = ? AND payment_status = ? AND submission_status = ?",
			id, model.PaymentUnpaid, model.SubmissionSubmitted).
		Update("submission_status", model.SubmissionLapsed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *proposalRepository) MarkPolicyExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Proposal{}).
		Where("id = ? AND policy_status = ?", id, model.PolicyActive).
		Update("policy_status", model.PolicyExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
