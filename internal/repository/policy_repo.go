package repository

import (
	"context"
	"time"

	"insurance-backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PolicyRepository interface {
	Create(ctx context.Context, p *model.Policy) error
	// SetPolicyNo writes the formatted policy number onto a freshly inserted
	// row (phase two of number generation).
	SetPolicyNo(ctx context.Context, id uint, policyNo string) error
	FindByID(ctx context.Context, id uint) (*model.Policy, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.Policy, error)
	FindActiveByProposal(ctx context.Context, kind string, proposalID uuid.UUID) (*model.Policy, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Policy, int64, error)

	// ListExpiringOn returns active policies whose end date falls on the
	// given day and that have no send-log row for the milestone yet.
	ListExpiringOn(ctx context.Context, day time.Time, milestone string, limit int) ([]model.Policy, error)
	// ListExpired returns active policies past their end date.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Policy, error)
	// MarkExpired conditionally flips active -> expired.
	MarkExpired(ctx context.Context, id uint) (bool, error)
}

type policyRepository struct {
	db *gorm.DB
}

func NewPolicyRepository(db *gorm.DB) PolicyRepository {
	return &policyRepository{db: db}
}

func (r *policyRepository) Create(ctx context.Context, p *model.Policy) error {
	return GetDB(ctx, r.db).Create(p).Error
}

func (r *policyRepository) SetPolicyNo(ctx context.Context, id uint, policyNo string) error {
	return GetDB(ctx, r.db).Model(&model.Policy{}).
		Where("id = ?", id).
		Update("policy_no", policyNo).Error
}

func (r *policyRepository) FindByID(ctx context.Context, id uint) (*model.Policy, error) {
	var p model.Policy
	if err := GetDB(ctx, r.db).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *policyRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.Policy, error) {
	var p model.Policy
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *policyRepository) FindActiveByProposal(ctx context.Context, kind string, proposalID uuid.UUID) (*model.Policy, error) {
	var p model.Policy
	err := GetDB(ctx, r.db).
		Where("proposal_kind = ? AND proposal_id = ? AND status = ?", kind, proposalID, model.PolicyActive).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *policyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Policy, int64, error) {
	db := GetDB(ctx, r.db)

	var total int64
	if err := db.Model(&model.Policy{}).Where("owner_user_id = ?", ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var policies []model.Policy
	offset := (page - 1) * limit
	if err := db.Where("owner_user_id = ?", ownerID).
		Order("issued_at DESC").Offset(offset).Limit(limit).
		Find(&policies).Error; err != nil {
		return nil, 0, err
	}
	return policies, total, nil
}

func (r *policyRepository) ListExpiringOn(ctx context.Context, day time.Time, milestone string, limit int) ([]model.Policy, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var policies []model.Policy
	err := GetDB(ctx, r.db).
		Where("status = ?", model.PolicyActive).
		Where("end_date >= ? AND end_date < ?", dayStart, dayEnd).
		Where(`NOT EXISTS (
			SELECT 1 FROM notification_send_logs l
			WHERE l.entity_type = 'policy' AND l.entity_id = policies.id::text
			  AND l.milestone = ? AND l.channel = ?)`, milestone, model.ChannelInApp).
		Order("end_date ASC").
		Limit(limit).
		Find(&policies).Error
	return policies, err
}

func (r *policyRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Policy, error) {
	var policies []model.Policy
	err := GetDB(ctx, r.db).
		Where("status = ? AND end_date < ?", model.PolicyActive, now).
		Order("end_date ASC").
		Limit(limit).
		Find(&policies).Error
	return policies, err
}

func (r *policyRepository) MarkExpired(ctx context.Context, id uint) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Policy{}).
		Where("id = ? AND status = ?", id, model.PolicyActive).
		Update("status", model.PolicyExpired)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
