// Package pricing вычисляет итоговую стоимость пакета с учётом купона.
package pricing

import "github.com/mmeshcher/syncflo-billing/internal/model"

// FinalPrice возвращает сумму к оплате в минимальных единицах валюты.
// Процентная скидка округляется вниз, результат всегда лежит в диапазоне [0, base].
func FinalPrice(base int64, coupon *model.Coupon) int64 {
	if base <= 0 {
		return 0
	}
	if coupon == nil {
		return base
	}

	var final int64
	switch coupon.DiscountKind {
	case model.DiscountPercentage:
		final = base - percentOf(base, clamp(coupon.DiscountValue, 0, 100))
	case model.DiscountFixedAmount:
		final = base - clamp(coupon.DiscountValue, 0, base)
	default:
		return base
	}

	return clamp(final, 0, base)
}

// Discount возвращает размер скидки для указанной базовой цены.
func Discount(base int64, coupon *model.Coupon) int64 {
	if base <= 0 {
		return 0
	}
	return base - FinalPrice(base, coupon)
}

// percentOf возвращает floor(base*pct/100) без переполнения int64.
func percentOf(base, pct int64) int64 {
	return base/100*pct + base%100*pct/100
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
