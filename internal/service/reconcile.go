package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/payment"
)

const (
	// DefaultReconcileInterval задаёт период опроса шлюза по неоплаченным заказам.
	DefaultReconcileInterval = 30 * time.Second

	// Заказы моложе reconcileGrace не опрашиваются: клиент ещё может подтвердить их сам.
	reconcileGrace = time.Minute

	// Заказы старше checkoutTTL без платежей помечаются истёкшими.
	checkoutTTL   = 24 * time.Hour
	reconcileSize = 100
)

// RunReconciliation периодически сверяет неоплаченные заказы с платёжным шлюзом
// и начисляет кредиты по списанным платежам. Блокируется до отмены ctx.
func (s *Service) RunReconciliation(ctx context.Context, interval time.Duration) error {
	if s.gateway == nil {
		<-ctx.Done()
		return nil
	}
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.reconcileBatch(ctx)
		}
	}
}

func (s *Service) reconcileBatch(ctx context.Context) {
	now := s.now()
	orders, err := s.repo.GetPendingCheckoutOrders(ctx, now.Add(-reconcileGrace), reconcileSize)
	if err != nil {
		s.logger.Warn("load pending orders", zap.Error(err))
		return
	}

	for _, o := range orders {
		payments, statusCode, retryAfter, err := s.gateway.GetOrderPayments(ctx, o.GatewayOrderID)
		if err != nil {
			s.logger.Debug("fetch order payments", zap.String("orderID", o.GatewayOrderID), zap.Error(err))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		settled := false
		for _, p := range payments {
			if !p.Captured() {
				continue
			}
			if p.OrderID == "" {
				p.OrderID = o.GatewayOrderID
			}
			st, err := s.settle(ctx, p)
			if err != nil {
				s.logger.Warn("reconcile payment",
					zap.String("orderID", o.GatewayOrderID),
					zap.String("paymentID", p.ID),
					zap.Error(err),
				)
				continue
			}
			if _, rejected := st.(payment.Rejected); rejected {
				s.logger.Warn("reconcile payment rejected", zap.String("orderID", o.GatewayOrderID), zap.String("paymentID", p.ID))
				continue
			}
			settled = true
			break
		}

		if !settled && now.Sub(o.CreatedAt) > checkoutTTL {
			if err := s.repo.ExpireCheckoutOrder(ctx, o.GatewayOrderID); err != nil {
				s.logger.Warn("expire checkout order", zap.String("orderID", o.GatewayOrderID), zap.Error(err))
				continue
			}
			s.logger.Info("checkout order expired", zap.String("orderID", o.GatewayOrderID))
		}
	}
}
