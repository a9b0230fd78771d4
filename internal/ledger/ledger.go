// Package ledger ведёт кредитные счета пользователей: проверку остатка, списание и пополнение.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// DefaultFreeCredits задаёт бесплатный объём кредитов для нового счёта.
const DefaultFreeCredits int64 = 1000

var (
	// ErrInsufficientCredits возвращается, если остатка не хватает на операцию.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidAmount возвращается при неположительном количестве кредитов.
	ErrInvalidAmount = errors.New("credit amount must be positive")
)

// Store описывает хранилище кредитных счетов.
type Store interface {
	EnsureCreditAccount(ctx context.Context, userID, defaultTotal int64) (*model.CreditAccount, error)
	AddCreditsUsed(ctx context.Context, userID, amount int64) error
	GrantPayment(ctx context.Context, payment model.PaymentRecord, redemption *model.CouponRedemption) (bool, error)
}

// Ledger реализует операции над кредитными счетами.
type Ledger struct {
	store          Store
	logger         *zap.Logger
	defaultCredits int64
}

// New создаёт Ledger. При defaultCredits <= 0 используется DefaultFreeCredits.
func New(store Store, logger *zap.Logger, defaultCredits int64) *Ledger {
	if defaultCredits <= 0 {
		defaultCredits = DefaultFreeCredits
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:          store,
		logger:         logger,
		defaultCredits: defaultCredits,
	}
}

// EnsureAccount возвращает счёт пользователя, создавая его с бесплатным объёмом при первом обращении.
func (l *Ledger) EnsureAccount(ctx context.Context, userID int64) (*model.CreditAccount, error) {
	acc, err := l.store.EnsureCreditAccount(ctx, userID, l.defaultCredits)
	if err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}
	return acc, nil
}

// Check возвращает nil, если остатка хватает на операцию стоимостью cost.
// Ошибка чтения счёта возвращается как есть: вызывающий код не должен пропускать операцию.
func (l *Ledger) Check(ctx context.Context, userID, cost int64) error {
	acc, err := l.EnsureAccount(ctx, userID)
	if err != nil {
		return err
	}
	if acc.CreditsTotal-acc.CreditsUsed < cost {
		return ErrInsufficientCredits
	}
	return nil
}

// CanAfford сообщает, хватает ли кредитов. При недоступности хранилища возвращает false.
func (l *Ledger) CanAfford(ctx context.Context, userID, cost int64) bool {
	err := l.Check(ctx, userID, cost)
	if err != nil && !errors.Is(err, ErrInsufficientCredits) {
		l.logger.Warn("credit check failed, denying", zap.Error(err), zap.Int64("userID", userID))
	}
	return err == nil
}

// Debit увеличивает израсходованные кредиты. Вызывается только после успешной операции.
func (l *Ledger) Debit(ctx context.Context, userID, cost int64) error {
	if cost <= 0 {
		return ErrInvalidAmount
	}
	if err := l.store.AddCreditsUsed(ctx, userID, cost); err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	return nil
}

// Credit зачисляет кредиты по подтверждённому платежу вместе с записью о платеже
// и, если был купон, фактом его использования. Повторный вызов для того же
// платежа шлюза ничего не меняет и возвращает false.
func (l *Ledger) Credit(ctx context.Context, payment model.PaymentRecord, redemption *model.CouponRedemption) (bool, error) {
	if payment.CreditsAdded <= 0 {
		return false, ErrInvalidAmount
	}
	if _, err := l.EnsureAccount(ctx, payment.UserID); err != nil {
		return false, err
	}

	granted, err := l.store.GrantPayment(ctx, payment, redemption)
	if err != nil {
		return false, fmt.Errorf("grant payment: %w", err)
	}
	return granted, nil
}
