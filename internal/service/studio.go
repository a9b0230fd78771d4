package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/genai"
	"github.com/mmeshcher/syncflo-billing/internal/ledger"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
	"github.com/mmeshcher/syncflo-billing/internal/validation"
)

// ErrInvalidInput возвращается при некорректных параметрах генерации.
var ErrInvalidInput = errors.New("invalid input")

// AdsRequest описывает запрос на генерацию рекламных текстов.
type AdsRequest struct {
	CampaignID string
	Analysis   *model.BrandAnalysis
	Tone       string
	Platforms  []string
}

// AdsResult содержит сгенерированные тексты и остаток кредитов после списания.
type AdsResult struct {
	CampaignID string            `json:"campaignId,omitempty"`
	Ads        []model.AdVariant `json:"ads"`
	Remaining  int64             `json:"creditsRemaining"`
}

// AnalyzeBrand анализирует бренд и сохраняет кампанию. Анализ доступен только
// при достаточном остатке на последующую генерацию; кредиты не списываются.
func (s *Service) AnalyzeBrand(ctx context.Context, userID int64, rawURL, goal, extra string) (*model.Campaign, error) {
	brandURL, ok := validation.NormalizeBrandURL(rawURL)
	if !ok {
		return nil, fmt.Errorf("%w: url", ErrInvalidInput)
	}

	if !s.ledger.CanAfford(ctx, userID, s.generationCost) {
		return nil, ledger.ErrInsufficientCredits
	}

	analysis, err := s.studio.AnalyzeBrand(ctx, brandURL, goal, extra)
	if err != nil {
		return nil, s.studioErr(err)
	}

	c := model.Campaign{
		ID:        uuid.NewString(),
		UserID:    userID,
		URL:       brandURL,
		Goal:      goal,
		Context:   extra,
		Status:    model.CampaignStatusAnalyzed,
		Analysis:  analysis,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("save campaign: %w", err)
	}

	return &c, nil
}

// GenerateTones предлагает тональности для проанализированного бренда.
func (s *Service) GenerateTones(ctx context.Context, analysis *model.BrandAnalysis) ([]string, error) {
	tones, err := s.studio.GenerateTones(ctx, analysis)
	if err != nil {
		return nil, s.studioErr(err)
	}
	return tones, nil
}

// GenerateAds генерирует рекламные тексты. Кредиты списываются только после
// успешной генерации; ошибка генерации ничего не списывает.
func (s *Service) GenerateAds(ctx context.Context, userID int64, req AdsRequest) (*AdsResult, error) {
	platforms, ok := validation.NormalizePlatforms(req.Platforms)
	if !ok {
		return nil, fmt.Errorf("%w: platforms", ErrInvalidInput)
	}
	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		return nil, fmt.Errorf("%w: tone", ErrInvalidInput)
	}

	analysis := req.Analysis
	if req.CampaignID != "" {
		if _, err := uuid.Parse(req.CampaignID); err != nil {
			return nil, repository.ErrCampaignNotFound
		}
		c, err := s.repo.GetCampaign(ctx, req.CampaignID, userID)
		if err != nil {
			return nil, err
		}
		if analysis == nil {
			analysis = c.Analysis
		}
	}
	if analysis == nil {
		return nil, fmt.Errorf("%w: analysis", ErrInvalidInput)
	}

	if !s.ledger.CanAfford(ctx, userID, s.generationCost) {
		return nil, ledger.ErrInsufficientCredits
	}

	ads, err := s.studio.GenerateAds(ctx, analysis, tone, platforms)
	if err != nil {
		return nil, s.studioErr(err)
	}

	if err := s.ledger.Debit(ctx, userID, s.generationCost); err != nil {
		s.logger.Error("debit after generation failed",
			zap.Int64("userID", userID),
			zap.Int64("cost", s.generationCost),
			zap.Error(err),
		)
	}

	res := &AdsResult{CampaignID: req.CampaignID, Ads: ads}

	if req.CampaignID != "" {
		assets := make([]model.Asset, 0, len(ads))
		for _, ad := range ads {
			assets = append(assets, model.Asset{
				CampaignID: req.CampaignID,
				Type:       "ad",
				Content:    ad.Headline + "\n\n" + ad.Body + "\n\n" + ad.CallToAction,
				Platform:   ad.Platform,
				Tone:       tone,
			})
		}
		if err := s.repo.CompleteCampaign(ctx, req.CampaignID, userID, assets); err != nil {
			s.logger.Warn("complete campaign", zap.String("campaignID", req.CampaignID), zap.Error(err))
		}
	}

	if acc, err := s.ledger.EnsureAccount(ctx, userID); err == nil {
		res.Remaining = acc.Remaining()
	}

	return res, nil
}

// RefineContent дорабатывает текст по инструкции.
func (s *Service) RefineContent(ctx context.Context, content, instruction string) (string, error) {
	text, err := s.studio.Refine(ctx, content, instruction)
	if err != nil {
		return "", s.studioErr(err)
	}
	return text, nil
}

// GetCampaigns возвращает историю кампаний пользователя.
func (s *Service) GetCampaigns(ctx context.Context, userID int64) ([]model.Campaign, error) {
	return s.repo.GetCampaignsByUser(ctx, userID)
}

func (s *Service) studioErr(err error) error {
	switch {
	case errors.Is(err, genai.ErrBadInput):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, genai.ErrUnavailable), errors.Is(err, genai.ErrEmptyResponse):
		s.logger.Warn("generation failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
