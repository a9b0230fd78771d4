// Package coupon проверяет применимость купонов к пакетам пополнения.
package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/cache"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
)

// Store описывает доступ к купонам и фактам их использования.
type Store interface {
	GetActiveCoupon(ctx context.Context, code string) (*model.Coupon, error)
	CountCouponRedemptions(ctx context.Context, code string, userID int64) (int, error)
	ListVisibleCoupons(ctx context.Context) ([]model.Coupon, error)
}

// Reason объясняет, почему купон не может быть применён.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonEmpty         Reason = "empty"
	ReasonNotFound      Reason = "not_found"
	ReasonExhausted     Reason = "usage_limit_reached"
	ReasonNotApplicable Reason = "not_applicable"
	ReasonUnavailable   Reason = "unavailable"
)

// Result содержит итог проверки купона: либо валидный купон, либо причина отказа.
type Result struct {
	Coupon *model.Coupon
	Reason Reason
}

// Valid сообщает, можно ли применить купон.
func (r Result) Valid() bool {
	return r.Coupon != nil && r.Reason == ReasonNone
}

func invalid(reason Reason) Result {
	return Result{Reason: reason}
}

const visibleCacheKey = "visible"

// Evaluator проверяет купоны. Невалидный купон не является ошибкой.
type Evaluator struct {
	store      Store
	logger     *zap.Logger
	visible    cache.Cache[string, []model.Coupon]
	visibleTTL time.Duration
}

// NewEvaluator создаёт проверку купонов поверх хранилища.
func NewEvaluator(store Store, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		store:      store,
		logger:     logger,
		visible:    cache.NewTTLCache[string, []model.Coupon](),
		visibleTTL: 30 * time.Second,
	}
}

// Normalize приводит код купона к каноническому виду.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate проверяет купон для пакета и пользователя. Лимит использований
// проверяется только для известного пользователя (userID != model.AnonymousUserID).
func (e *Evaluator) Validate(ctx context.Context, code, packageID string, userID int64) Result {
	code = Normalize(code)
	if code == "" {
		return invalid(ReasonEmpty)
	}

	c, err := e.store.GetActiveCoupon(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			return invalid(ReasonNotFound)
		}
		e.logger.Warn("coupon lookup failed", zap.Error(err), zap.String("code", code))
		return invalid(ReasonUnavailable)
	}
	if c == nil || !c.IsActive || !c.DiscountKind.Valid() {
		return invalid(ReasonNotFound)
	}

	if c.MaxUsesPerUser > 0 && userID != model.AnonymousUserID {
		used, err := e.store.CountCouponRedemptions(ctx, c.Code, userID)
		if err != nil {
			e.logger.Warn("coupon usage count failed", zap.Error(err), zap.String("code", code), zap.Int64("userID", userID))
			return invalid(ReasonUnavailable)
		}
		if used >= c.MaxUsesPerUser {
			return invalid(ReasonExhausted)
		}
	}

	if !c.AppliesTo(packageID) {
		return invalid(ReasonNotApplicable)
	}

	return Result{Coupon: c}
}

// ListVisible возвращает активные купоны, которые можно показывать в интерфейсе.
func (e *Evaluator) ListVisible(ctx context.Context) ([]model.Coupon, error) {
	if list, ok := e.visible.Get(visibleCacheKey); ok {
		return list, nil
	}

	list, err := e.store.ListVisibleCoupons(ctx)
	if err != nil {
		return nil, err
	}

	e.visible.Set(visibleCacheKey, list, e.visibleTTL)
	return list, nil
}
