package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
)

const (
	apiKeyPrefix  = "sk_live_"
	apiKeyBytes   = 32
	maxAPIKeyName = 64
)

// NewAPIKey содержит созданный ключ. Raw возвращается клиенту один раз и нигде не хранится.
type NewAPIKey struct {
	Key model.APIKey
	Raw string
}

// HashAPIKey возвращает sha256 ключа в hex, под которым он хранится.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func apiKeyHint(raw string) string {
	return apiKeyPrefix + "..." + raw[len(raw)-4:]
}

// GenerateAPIKey выпускает новый ключ доступа и сохраняет только его хеш.
func (s *Service) GenerateAPIKey(ctx context.Context, userID int64, name string) (*NewAPIKey, error) {
	name = strings.TrimSpace(name)
	if len(name) > maxAPIKeyName {
		return nil, fmt.Errorf("%w: key name is too long", ErrInvalidInput)
	}

	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	raw := apiKeyPrefix + hex.EncodeToString(buf)

	k, err := s.repo.CreateAPIKey(ctx, model.APIKey{
		ID:      uuid.NewString(),
		UserID:  userID,
		Name:    name,
		KeyHash: HashAPIKey(raw),
		KeyHint: apiKeyHint(raw),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("api key generated", zap.Int64("userID", userID), zap.String("keyID", k.ID))

	return &NewAPIKey{Key: *k, Raw: raw}, nil
}

// ListAPIKeys возвращает ключи пользователя без их значений.
func (s *Service) ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error) {
	return s.repo.ListAPIKeys(ctx, userID)
}

// RevokeAPIKey удаляет ключ пользователя. Чужой или неизвестный ключ даёт ErrAPIKeyNotFound.
func (s *Service) RevokeAPIKey(ctx context.Context, userID int64, keyID string) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return repository.ErrAPIKeyNotFound
	}
	if err := s.repo.RevokeAPIKey(ctx, keyID, userID); err != nil {
		return err
	}
	s.logger.Info("api key revoked", zap.Int64("userID", userID), zap.String("keyID", keyID))
	return nil
}
