package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// CreateCampaign сохраняет кампанию вместе с результатом анализа бренда.
func (r *PostgresRepository) CreateCampaign(ctx context.Context, c model.Campaign) error {
	analysis, err := json.Marshal(c.Analysis)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO campaigns (id, user_id, url, goal, context, status, analysis_data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.URL, c.Goal, c.Context, string(c.Status), analysis,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

// CompleteCampaign сохраняет сгенерированные материалы и переводит кампанию в статус completed.
func (r *PostgresRepository) CompleteCampaign(ctx context.Context, campaignID string, userID int64, assets []model.Asset) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE campaigns SET status = $3 WHERE id = $1 AND user_id = $2`,
		campaignID, userID, string(model.CampaignStatusCompleted),
	)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}

	if len(assets) > 0 {
		batch := &pgx.Batch{}
		for _, a := range assets {
			batch.Queue(
				`INSERT INTO assets (campaign_id, type, content, platform, tone) VALUES ($1, $2, $3, $4, $5)`,
				campaignID, a.Type, a.Content, a.Platform, a.Tone,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert assets: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetCampaignsByUser возвращает историю кампаний пользователя.
func (r *PostgresRepository) GetCampaignsByUser(ctx context.Context, userID int64) ([]model.Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, url, goal, context, status, analysis_data, created_at
		 FROM campaigns
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select campaigns: %w", err)
	}
	defer rows.Close()

	var res []model.Campaign
	for rows.Next() {
		var (
			c        model.Campaign
			status   string
			analysis []byte
		)
		if err := rows.Scan(&c.ID, &c.URL, &c.Goal, &c.Context, &status, &analysis, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		c.UserID = userID
		c.Status = model.CampaignStatus(status)
		if len(analysis) > 0 && string(analysis) != "null" {
			c.Analysis = &model.BrandAnalysis{}
			if err := json.Unmarshal(analysis, c.Analysis); err != nil {
				return nil, fmt.Errorf("decode analysis of campaign %s: %w", c.ID, err)
			}
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetCampaign возвращает кампанию пользователя по идентификатору.
func (r *PostgresRepository) GetCampaign(ctx context.Context, campaignID string, userID int64) (*model.Campaign, error) {
	var (
		c        model.Campaign
		status   string
		analysis []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, url, goal, context, status, analysis_data, created_at
		 FROM campaigns
		 WHERE id = $1 AND user_id = $2`,
		campaignID, userID,
	).Scan(&c.ID, &c.URL, &c.Goal, &c.Context, &status, &analysis, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	c.UserID = userID
	c.Status = model.CampaignStatus(status)
	if len(analysis) > 0 && string(analysis) != "null" {
		c.Analysis = &model.BrandAnalysis{}
		if err := json.Unmarshal(analysis, c.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}

	return &c, nil
}

// GetUsageCounts возвращает число кампаний и материалов пользователя и пакет его последней оплаты.
func (r *PostgresRepository) GetUsageCounts(ctx context.Context, userID int64) (*model.UsageCounts, error) {
	var u model.UsageCounts
	err := r.pool.QueryRow(ctx,
		`SELECT
		     (SELECT count(*) FROM campaigns WHERE user_id = $1),
		     (SELECT count(*) FROM assets a JOIN campaigns c ON c.id = a.campaign_id WHERE c.user_id = $1),
		     COALESCE((SELECT package_id FROM payments
		               WHERE user_id = $1 AND status = $2
		               ORDER BY created_at DESC LIMIT 1), '')`,
		userID, string(model.PaymentStatusPaid),
	).Scan(&u.Campaigns, &u.Assets, &u.LatestPackageID)
	if err != nil {
		return nil, fmt.Errorf("select usage counts: %w", err)
	}
	return &u, nil
}

// GetAssetsByUser возвращает материалы всех кампаний пользователя, новые первыми.
func (r *PostgresRepository) GetAssetsByUser(ctx context.Context, userID int64) ([]model.StoredAsset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.campaign_id::text, a.type, a.content, a.platform, a.tone, c.url, a.created_at
		 FROM assets a
		 JOIN campaigns c ON c.id = a.campaign_id
		 WHERE c.user_id = $1
		 ORDER BY a.created_at DESC, a.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select assets: %w", err)
	}
	defer rows.Close()

	var res []model.StoredAsset
	for rows.Next() {
		var a model.StoredAsset
		err := rows.Scan(&a.ID, &a.CampaignID, &a.Type, &a.Content, &a.Platform, &a.Tone, &a.CampaignURL, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		res = append(res, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
