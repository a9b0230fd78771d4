package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// EnsureCreditAccount возвращает кредитный счёт пользователя, создавая его при отсутствии.
// Уникальность по user_id защищает от дублей при параллельных вызовах.
func (r *PostgresRepository) EnsureCreditAccount(ctx context.Context, userID, defaultTotal int64) (*model.CreditAccount, error) {
	acc := model.CreditAccount{UserID: userID}

	err := withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO credit_accounts (user_id, credits_total, credits_used)
			 VALUES ($1, $2, 0)
			 ON CONFLICT (user_id) DO NOTHING`,
			userID, defaultTotal,
		)
		if err != nil {
			return fmt.Errorf("insert credit account: %w", err)
		}

		return r.pool.QueryRow(ctx,
			`SELECT credits_total, credits_used FROM credit_accounts WHERE user_id = $1`,
			userID,
		).Scan(&acc.CreditsTotal, &acc.CreditsUsed)
	})
	if err != nil {
		return nil, fmt.Errorf("ensure credit account: %w", err)
	}

	return &acc, nil
}

// AddCreditsUsed атомарно увеличивает израсходованные кредиты пользователя.
func (r *PostgresRepository) AddCreditsUsed(ctx context.Context, userID, amount int64) error {
	return withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE credit_accounts
			 SET credits_used = credits_used + $2, updated_at = now()
			 WHERE user_id = $1`,
			userID, amount,
		)
		if err != nil {
			return fmt.Errorf("update credits used: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("credit account %d: %w", userID, ErrUserNotFound)
		}
		return nil
	})
}

// GrantPayment в одной транзакции сохраняет платёж, увеличивает credits_total,
// фиксирует использование купона и отмечает заказ оплаченным. Если платёж с таким
// gateway_payment_id уже есть, ничего не меняет и возвращает false.
func (r *PostgresRepository) GrantPayment(ctx context.Context, p model.PaymentRecord, redemption *model.CouponRedemption) (bool, error) {
	var granted bool

	err := withRetry(ctx, func() error {
		granted = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx,
			`INSERT INTO payments
			   (id, user_id, gateway_order_id, gateway_payment_id, amount, currency,
			    credits_added, package_id, coupon_code, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (gateway_payment_id) DO NOTHING`,
			p.ID, p.UserID, p.GatewayOrderID, p.GatewayPaymentID, p.AmountMinorUnits, p.Currency,
			p.CreditsAdded, p.PackageID, p.CouponCode, string(p.Status),
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if tag.RowsAffected() == 0 {
			return tx.Commit(ctx)
		}

		tag, err = tx.Exec(ctx,
			`UPDATE credit_accounts
			 SET credits_total = credits_total + $2, updated_at = now()
			 WHERE user_id = $1`,
			p.UserID, p.CreditsAdded,
		)
		if err != nil {
			return fmt.Errorf("update credits total: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("credit account %d: %w", p.UserID, ErrUserNotFound)
		}

		if redemption != nil {
			_, err = tx.Exec(ctx,
				`INSERT INTO coupon_redemptions (user_id, coupon_code, gateway_payment_id)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (gateway_payment_id) DO NOTHING`,
				redemption.UserID, redemption.CouponCode, p.GatewayPaymentID,
			)
			if err != nil {
				return fmt.Errorf("insert coupon redemption: %w", err)
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE checkout_orders SET status = $2 WHERE gateway_order_id = $1`,
			p.GatewayOrderID, string(model.CheckoutStatusPaid),
		)
		if err != nil {
			return fmt.Errorf("update checkout order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		granted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return granted, nil
}

const couponColumns = `code, description, discount_kind, discount_value, applicable_package_ids,
	is_active, is_visible, max_uses_per_user`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c    model.Coupon
		kind string
	)
	err := row.Scan(&c.Code, &c.Description, &kind, &c.DiscountValue, &c.ApplicablePackageIDs,
		&c.IsActive, &c.IsVisible, &c.MaxUsesPerUser)
	if err != nil {
		return nil, err
	}

	c.DiscountKind = model.DiscountKind(kind)
	if !c.DiscountKind.Valid() {
		return nil, fmt.Errorf("coupon %s: unknown discount kind %q", c.Code, kind)
	}

	return &c, nil
}

// GetActiveCoupon возвращает активный купон по нормализованному коду.
func (r *PostgresRepository) GetActiveCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE code = $1 AND is_active`,
		code,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// ListVisibleCoupons возвращает активные купоны, отмеченные для показа в интерфейсе.
func (r *PostgresRepository) ListVisibleCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE is_active AND is_visible ORDER BY code`,
	)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var res []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CountCouponRedemptions возвращает число использований купона пользователем.
func (r *PostgresRepository) CountCouponRedemptions(ctx context.Context, code string, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM coupon_redemptions WHERE coupon_code = $1 AND user_id = $2`,
		code, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count coupon redemptions: %w", err)
	}
	return n, nil
}

// CreateCheckoutOrder сохраняет заказ, созданный в платёжном шлюзе.
func (r *PostgresRepository) CreateCheckoutOrder(ctx context.Context, o model.CheckoutOrder) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO checkout_orders
		   (gateway_order_id, user_id, package_id, coupon_code, amount, currency, credits, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.GatewayOrderID, o.UserID, o.PackageID, o.CouponCode, o.AmountMinorUnits, o.Currency,
		o.Credits, string(model.CheckoutStatusInitiated),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCheckoutExists, o.GatewayOrderID)
		}
		return fmt.Errorf("insert checkout order: %w", err)
	}
	return nil
}

const checkoutColumns = `gateway_order_id, user_id, package_id, coupon_code, amount, currency, credits, status, created_at`

func scanCheckout(row pgx.Row) (*model.CheckoutOrder, error) {
	var (
		o      model.CheckoutOrder
		status string
	)
	err := row.Scan(&o.GatewayOrderID, &o.UserID, &o.PackageID, &o.CouponCode, &o.AmountMinorUnits,
		&o.Currency, &o.Credits, &status, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.CheckoutStatus(status)
	return &o, nil
}

// GetCheckoutOrder возвращает заказ по идентификатору шлюза.
func (r *PostgresRepository) GetCheckoutOrder(ctx context.Context, gatewayOrderID string) (*model.CheckoutOrder, error) {
	o, err := scanCheckout(r.pool.QueryRow(ctx,
		`SELECT `+checkoutColumns+` FROM checkout_orders WHERE gateway_order_id = $1`,
		gatewayOrderID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, fmt.Errorf("get checkout order: %w", err)
	}
	return o, nil
}

// GetPendingCheckoutOrders возвращает неоплаченные заказы, созданные раньше указанного момента.
func (r *PostgresRepository) GetPendingCheckoutOrders(ctx context.Context, createdBefore time.Time, limit int) ([]model.CheckoutOrder, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+checkoutColumns+`
		 FROM checkout_orders
		 WHERE status = $1 AND created_at < $2
		 ORDER BY created_at
		 LIMIT $3`,
		string(model.CheckoutStatusInitiated), createdBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending checkout orders: %w", err)
	}
	defer rows.Close()

	var res []model.CheckoutOrder
	for rows.Next() {
		o, err := scanCheckout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkout order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ExpireCheckoutOrder помечает неоплаченный заказ просроченным.
func (r *PostgresRepository) ExpireCheckoutOrder(ctx context.Context, gatewayOrderID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE checkout_orders SET status = $2 WHERE gateway_order_id = $1 AND status = $3`,
		gatewayOrderID, string(model.CheckoutStatusExpired), string(model.CheckoutStatusInitiated),
	)
	if err != nil {
		return fmt.Errorf("expire checkout order: %w", err)
	}
	return nil
}

const paymentColumns = `id::text, user_id, gateway_order_id, gateway_payment_id, amount, currency,
	credits_added, package_id, coupon_code, status, created_at`

func scanPayment(row pgx.Row) (*model.PaymentRecord, error) {
	var (
		p      model.PaymentRecord
		status string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.AmountMinorUnits,
		&p.Currency, &p.CreditsAdded, &p.PackageID, &p.CouponCode, &status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

// GetPaymentByGatewayID возвращает платёж по идентификатору платежа в шлюзе.
func (r *PostgresRepository) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*model.PaymentRecord, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = $1`,
		gatewayPaymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// GetPaymentForUser возвращает платёж, принадлежащий пользователю.
func (r *PostgresRepository) GetPaymentForUser(ctx context.Context, paymentID string, userID int64) (*model.PaymentRecord, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND user_id = $2`,
		paymentID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// GetPaymentsByUser возвращает историю платежей пользователя.
func (r *PostgresRepository) GetPaymentsByUser(ctx context.Context, userID int64) ([]model.PaymentRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var res []model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
