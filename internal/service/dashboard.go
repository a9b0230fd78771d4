package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// GetDashboardStats возвращает сводку студии: счётчики, остаток кредитов и тариф.
// Тариф определяется последним оплаченным пакетом.
func (s *Service) GetDashboardStats(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	acc, err := s.ledger.EnsureAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load credit account: %w", err)
	}

	usage, err := s.repo.GetUsageCounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	st := &model.DashboardStats{
		TotalCampaigns: usage.Campaigns,
		TotalAssets:    usage.Assets,
		CreditsUsed:    acc.CreditsUsed,
		CreditsTotal:   acc.CreditsTotal,
		PlanTier:       model.DefaultPlanTier,
	}
	if usage.LatestPackageID != "" {
		if pkg, err := s.catalog.Get(usage.LatestPackageID); err == nil {
			st.PlanTier = pkg.DisplayName
		}
	}

	return st, nil
}

// GetAssets возвращает сохранённые материалы пользователя, новые первыми.
func (s *Service) GetAssets(ctx context.Context, userID int64) ([]model.StoredAsset, error) {
	return s.repo.GetAssetsByUser(ctx, userID)
}
