package service

import (
	"context"
	"fmt"

	"insurance-backend/internal/repository"
)

type DashboardResponse struct {
	ProposalGrid       []repository.KindStatusCount `json:"proposal_grid"`
	PremiumCollected   string                       `json:"premium_collected"`
	PendingReviewDepth int64                        `json:"pending_review_depth"`
	ActivePolicies     int64                        `json:"active_policies"`
}

type StatsService interface {
	Dashboard(ctx context.Context) (DashboardResponse, error)
}

type statsService struct {
	statsRepo repository.StatsRepository
}

func NewStatsService(statsRepo repository.StatsRepository) StatsService {
	return &statsService{statsRepo: statsRepo}
}

func (s *statsService) Dashboard(ctx context.Context) (DashboardResponse, error) {
	grid, err := s.statsRepo.CountProposalsByKindAndStatus(ctx)
	if err != nil {
		return DashboardResponse{}, err
	}
	premium, err := s.statsRepo.PremiumCollected(ctx)
	if err != nil {
		return DashboardResponse{}, err
	}
	depth, err := s.statsRepo.PendingReviewDepth(ctx)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to count review queue: %w", err)
	}
	active, err := s.statsRepo.ActivePolicyCount(ctx)
	if err != nil {
		return DashboardResponse{}, fmt.Errorf("failed to count active policies: %w", err)
	}
	return DashboardResponse{
		ProposalGrid:       grid,
		PremiumCollected:   premium,
		PendingReviewDepth: depth,
		ActivePolicies:     active,
	}, nil
}
