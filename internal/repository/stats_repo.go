package repository

import (
	"context"
	"fmt"

	"insurance-backend/internal/model"

	"gorm.io/gorm"
)

// KindStatusCount is one cell of the proposal dashboard grid.
type KindStatusCount struct {
	Kind         string `json:"kind"`
	ReviewStatus string `json:"review_status"`
	Count        int64  `json:"count"`
}

type StatsRepository interface {
	CountProposalsByKindAndStatus(ctx context.Context) ([]KindStatusCount, error)
	// PremiumCollected sums the premium of paid proposals, as text to keep
	// decimal precision across the wire.
	PremiumCollected(ctx context.Context) (string, error)
	PendingReviewDepth(ctx context.Context) (int64, error)
	ActivePolicyCount(ctx context.Context) (int64, error)
}

type statsRepository struct {
	db *gorm.DB
}

func NewStatsRepository(db *gorm.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) CountProposalsByKindAndStatus(ctx context.Context) ([]KindStatusCount, error) {
	var counts []KindStatusCount
	if err := r.db.WithContext(ctx).Table("proposals").
		Select("kind, review_status, COUNT(*) as count").
		Group("kind, review_status").
		Order("kind, review_status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to query proposal counts: %w", err)
	}
	return counts, nil
}

func (r *statsRepository) PremiumCollected(ctx context.Context) (string, error) {
	var result struct {
		Value string
	}
	if err := r.db.WithContext(ctx).Table("proposals").
		Select("COALESCE(CAST(SUM(premium) AS TEXT), '0') as value").
		Where("payment_status = ?", model.PaymentPaid).
		Scan(&result).Error; err != nil {
		return "", fmt.Errorf("failed to sum collected premium: %w", err)
	}
	return result.Value, nil
}

func (r *statsRepository) PendingReviewDepth(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Proposal{}).
		Where("payment_status = ? AND review_status IN ?", model.PaymentPaid,
			[]string{model.ReviewPendingReview, model.ReviewReuploadRequired}).
		Count(&count).Error
	return count, err
}

func (r *statsRepository) ActivePolicyCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Policy{}).
		Where("status = ?", model.PolicyActive).
		Count(&count).Error
	return count, err
}
