package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/coupon"
	"github.com/mmeshcher/syncflo-billing/internal/invoice"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/payment"
	"github.com/mmeshcher/syncflo-billing/internal/pricing"
	"github.com/mmeshcher/syncflo-billing/internal/razorpay"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
)

// Quote описывает расчёт стоимости пакета с купоном.
type Quote struct {
	PackageID   string        `json:"packageId"`
	Code        string        `json:"code,omitempty"`
	Valid       bool          `json:"valid"`
	Reason      coupon.Reason `json:"reason,omitempty"`
	BaseAmount  int64         `json:"baseAmount"`
	Discount    int64         `json:"discount"`
	FinalAmount int64         `json:"finalAmount"`
}

// Checkout описывает созданный заказ на пополнение.
type Checkout struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
	Quote    Quote  `json:"quote"`
}

// VerifyResult описывает итог подтверждения платежа.
type VerifyResult struct {
	CreditsAdded   int64  `json:"creditsAdded"`
	AlreadyGranted bool   `json:"alreadyGranted"`
	PaymentID      string `json:"paymentId,omitempty"`
}

// ListPackages возвращает каталог пакетов.
func (s *Service) ListPackages() []model.Package {
	return s.catalog.List()
}

// ListCoupons возвращает купоны, доступные для показа.
func (s *Service) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	return s.coupons.ListVisible(ctx)
}

// QuoteCoupon рассчитывает цену пакета с купоном. Невалидный купон даёт полную цену,
// а не ошибку. Для анонимного пользователя лимит использований не проверяется.
func (s *Service) QuoteCoupon(ctx context.Context, userID int64, code, packageID string) (*Quote, error) {
	q, _, err := s.quote(ctx, userID, code, packageID)
	return q, err
}

// quote рассчитывает цену и возвращает найденный пакет вместе с расчётом.
func (s *Service) quote(ctx context.Context, userID int64, code, packageID string) (*Quote, model.Package, error) {
	pkg, err := s.catalog.Get(packageID)
	if err != nil {
		return nil, model.Package{}, err
	}

	res := s.coupons.Validate(ctx, code, pkg.ID, userID)

	q := &Quote{
		PackageID:  pkg.ID,
		Code:       coupon.Normalize(code),
		Valid:      res.Valid(),
		Reason:     res.Reason,
		BaseAmount: pkg.PriceMinorUnits,
	}
	q.FinalAmount = pricing.FinalPrice(pkg.PriceMinorUnits, res.Coupon)
	q.Discount = pkg.PriceMinorUnits - q.FinalAmount

	return q, pkg, nil
}

// CreateCheckout создаёт заказ в платёжном шлюзе на итоговую сумму и сохраняет его.
func (s *Service) CreateCheckout(ctx context.Context, userID int64, packageID, couponCode string) (*Checkout, error) {
	quote, pkg, err := s.quote(ctx, userID, couponCode, packageID)
	if err != nil {
		return nil, err
	}
	if quote.FinalAmount <= 0 {
		return nil, ErrFreeOrder
	}

	appliedCode := ""
	if quote.Valid {
		appliedCode = quote.Code
	}

	order, err := s.gateway.CreateOrder(ctx, razorpay.OrderRequest{
		Amount:   quote.FinalAmount,
		Currency: s.currency,
		Receipt:  "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Notes: razorpay.Notes{
			"userId":    strconv.FormatInt(userID, 10),
			"packageId": pkg.ID,
			"credits":   strconv.FormatInt(pkg.CreditsGranted, 10),
			"coupon":    appliedCode,
		},
	})
	if err != nil {
		if errors.Is(err, razorpay.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	err = s.repo.CreateCheckoutOrder(ctx, model.CheckoutOrder{
		GatewayOrderID:   order.ID,
		UserID:           userID,
		PackageID:        pkg.ID,
		CouponCode:       appliedCode,
		AmountMinorUnits: quote.FinalAmount,
		Currency:         s.currency,
		Credits:          pkg.CreditsGranted,
	})
	if err != nil {
		return nil, fmt.Errorf("save checkout order: %w", err)
	}

	s.logger.Info("checkout order created",
		zap.Int64("userID", userID),
		zap.String("orderID", order.ID),
		zap.String("packageID", pkg.ID),
		zap.Int64("amount", quote.FinalAmount),
		zap.String("coupon", appliedCode),
	)

	return &Checkout{
		OrderID:  order.ID,
		Amount:   quote.FinalAmount,
		Currency: s.currency,
		Key:      s.gateway.KeyID(),
		Quote:    *quote,
	}, nil
}

// VerifyPayment подтверждает оплату по подписи, полученной клиентом от шлюза,
// и начисляет кредиты ровно один раз на платёж.
func (s *Service) VerifyPayment(ctx context.Context, userID int64, orderID, paymentID, signature string) (*VerifyResult, error) {
	st, err := s.advance(ctx, payment.PendingVerification{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signature,
	}, userID)
	if err != nil {
		return nil, err
	}
	return s.result(st)
}

// HandleWebhook обрабатывает вебхук шлюза. Подпись проверяется по сырому телу.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.verifier.VerifyWebhook(body, signature) {
		s.logger.Warn("webhook signature mismatch")
		return ErrInvalidSignature
	}

	ev, err := razorpay.ParseWebhook(body)
	if err != nil {
		return err
	}

	switch ev.Type {
	case razorpay.EventPaymentFailed:
		s.logger.Info("payment failed",
			zap.String("orderID", ev.Payment.OrderID),
			zap.String("paymentID", ev.Payment.ID),
		)
		return nil
	case razorpay.EventPaymentCaptured, razorpay.EventOrderPaid:
		st, err := s.settle(ctx, ev.Payment)
		if err != nil {
			return err
		}
		if r, ok := st.(payment.Rejected); ok {
			s.logger.Warn("webhook payment rejected",
				zap.String("orderID", ev.Payment.OrderID),
				zap.String("paymentID", ev.Payment.ID),
				zap.String("reason", string(r.Reason)),
			)
		}
		return nil
	default:
		s.logger.Info("webhook event ignored", zap.String("event", string(ev.Type)))
		return nil
	}
}

// settle переводит платёж, подтверждённый шлюзом напрямую (вебхуком или запросом API),
// в состояние Verified и начисляет кредиты.
func (s *Service) settle(ctx context.Context, p razorpay.Payment) (payment.State, error) {
	order, err := s.repo.GetCheckoutOrder(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			return payment.Rejected{Reason: payment.RejectUnknownOrder}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if p.Amount != 0 && p.Amount != order.AmountMinorUnits {
		return payment.Rejected{Reason: payment.RejectStaleOrder}, nil
	}

	return s.advance(ctx, payment.Verified{Order: *order, PaymentID: p.ID}, order.UserID)
}

// advance проводит покупку по состояниям до конечного.
func (s *Service) advance(ctx context.Context, st payment.State, userID int64) (payment.State, error) {
	for !payment.Final(st) {
		switch cur := st.(type) {
		case payment.PendingVerification:
			next, err := s.verify(ctx, cur, userID)
			if err != nil {
				return nil, err
			}
			st = next
		case payment.Verified:
			next, err := s.grant(ctx, cur)
			if err != nil {
				return nil, err
			}
			st = next
		case payment.Initiated:
			return nil, fmt.Errorf("order %s is not paid yet", cur.Order.GatewayOrderID)
		default:
			return nil, fmt.Errorf("unexpected purchase state %T", st)
		}
	}
	return st, nil
}

func (s *Service) verify(ctx context.Context, p payment.PendingVerification, userID int64) (payment.State, error) {
	if !s.verifier.VerifyPayment(p.OrderID, p.PaymentID, p.Signature) {
		s.logger.Warn("payment signature mismatch",
			zap.Int64("userID", userID),
			zap.String("orderID", p.OrderID),
			zap.String("paymentID", p.PaymentID),
		)
		return payment.Rejected{Reason: payment.RejectBadSignature}, nil
	}

	order, err := s.repo.GetCheckoutOrder(ctx, p.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrCheckoutNotFound) {
			return payment.Rejected{Reason: payment.RejectUnknownOrder}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if order.UserID != userID {
		return payment.Rejected{Reason: payment.RejectForeignOrder}, nil
	}

	return payment.Verified{Order: *order, PaymentID: p.PaymentID}, nil
}

func (s *Service) grant(ctx context.Context, v payment.Verified) (payment.State, error) {
	if v.Order.Status == model.CheckoutStatusPaid {
		existing, err := s.repo.GetPaymentByGatewayID(ctx, v.PaymentID)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return payment.Rejected{Reason: payment.RejectStaleOrder}, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return payment.AlreadyGranted{PaymentID: existing.ID}, nil
	}

	rec := model.PaymentRecord{
		ID:               uuid.NewString(),
		UserID:           v.Order.UserID,
		GatewayOrderID:   v.Order.GatewayOrderID,
		GatewayPaymentID: v.PaymentID,
		AmountMinorUnits: v.Order.AmountMinorUnits,
		Currency:         v.Order.Currency,
		CreditsAdded:     v.Order.Credits,
		PackageID:        v.Order.PackageID,
		CouponCode:       v.Order.CouponCode,
		Status:           model.PaymentStatusPaid,
		CreatedAt:        s.now().UTC(),
	}

	var redemption *model.CouponRedemption
	if rec.CouponCode != "" {
		redemption = &model.CouponRedemption{
			UserID:     rec.UserID,
			CouponCode: rec.CouponCode,
			RedeemedAt: rec.CreatedAt,
		}
	}

	granted, err := s.ledger.Credit(ctx, rec, redemption)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !granted {
		existing, err := s.repo.GetPaymentByGatewayID(ctx, v.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return payment.AlreadyGranted{PaymentID: existing.ID}, nil
	}

	s.logger.Info("credits granted",
		zap.Int64("userID", rec.UserID),
		zap.String("orderID", rec.GatewayOrderID),
		zap.String("paymentID", rec.GatewayPaymentID),
		zap.Int64("credits", rec.CreditsAdded),
	)

	return payment.CreditsGranted{Payment: rec}, nil
}

// PaymentRejectedError сообщает причину отказа в подтверждении платежа.
type PaymentRejectedError struct {
	Reason payment.RejectReason
}

func (e *PaymentRejectedError) Error() string {
	return "payment rejected: " + string(e.Reason)
}

// Is позволяет сопоставлять отказ по подписи с ErrInvalidSignature.
func (e *PaymentRejectedError) Is(target error) bool {
	return target == ErrInvalidSignature && e.Reason == payment.RejectBadSignature
}

func (s *Service) result(st payment.State) (*VerifyResult, error) {
	switch v := st.(type) {
	case payment.CreditsGranted:
		return &VerifyResult{CreditsAdded: v.Payment.CreditsAdded, PaymentID: v.Payment.ID}, nil
	case payment.AlreadyGranted:
		return &VerifyResult{AlreadyGranted: true, PaymentID: v.PaymentID}, nil
	case payment.Rejected:
		return nil, &PaymentRejectedError{Reason: v.Reason}
	case payment.Initiated, payment.PendingVerification, payment.Verified:
		return nil, fmt.Errorf("purchase stopped in non-final state %T", st)
	default:
		return nil, fmt.Errorf("unexpected purchase state %T", st)
	}
}

// GetCredits возвращает кредитный счёт пользователя, создавая его при первом обращении.
func (s *Service) GetCredits(ctx context.Context, userID int64) (*model.CreditAccount, error) {
	return s.ledger.EnsureAccount(ctx, userID)
}

// GetPayments возвращает историю платежей пользователя.
func (s *Service) GetPayments(ctx context.Context, userID int64) ([]model.PaymentRecord, error) {
	return s.repo.GetPaymentsByUser(ctx, userID)
}

// RenderInvoice формирует HTML-счёт по платежу пользователя.
func (s *Service) RenderInvoice(ctx context.Context, userID int64, paymentID string) ([]byte, error) {
	if _, err := uuid.Parse(paymentID); err != nil {
		return nil, repository.ErrPaymentNotFound
	}

	p, err := s.repo.GetPaymentForUser(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}

	planName := ""
	if pkg, err := s.catalog.Get(p.PackageID); err == nil {
		planName = pkg.DisplayName
	}

	in := invoice.Input{Payment: *p, PlanName: planName}
	u, err := s.repo.GetUserByID(ctx, userID)
	switch {
	case err == nil:
		in.CustomerName, in.CustomerEmail = customerOf(u.Login)
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, err
	}

	return invoice.Render(in)
}

// customerOf возвращает имя и почту покупателя для счёта. Если логин является
// адресом почты, имя берётся из части до "@".
func customerOf(login string) (name, email string) {
	local, _, ok := strings.Cut(login, "@")
	if !ok {
		return login, ""
	}
	return local, login
}
