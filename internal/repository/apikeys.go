package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// CreateAPIKey сохраняет хеш и подсказку нового ключа.
func (r *PostgresRepository) CreateAPIKey(ctx context.Context, k model.APIKey) (*model.APIKey, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_hint)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		k.ID, k.UserID, k.Name, k.KeyHash, k.KeyHint,
	).Scan(&k.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert api key: %w", err)
	}
	return &k, nil
}

// ListAPIKeys возвращает ключи пользователя, новые первыми.
func (r *PostgresRepository) ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, name, key_hash, key_hint, created_at
		 FROM api_keys
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select api keys: %w", err)
	}
	defer rows.Close()

	var res []model.APIKey
	for rows.Next() {
		k := model.APIKey{UserID: userID}
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyHint, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		res = append(res, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// RevokeAPIKey удаляет ключ, только если он принадлежит пользователю.
func (r *PostgresRepository) RevokeAPIKey(ctx context.Context, keyID string, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND user_id = $2`,
		keyID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
