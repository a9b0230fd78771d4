// Package model содержит доменные сущности сервиса биллинга SyncFlo.
package model

import "time"

// AnonymousUserID обозначает контекст без известного пользователя.
const AnonymousUserID int64 = 0

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Package описывает пакет пополнения кредитов из каталога.
type Package struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"name"`
	PriceMinorUnits int64    `json:"amount"`
	CreditsGranted  int64    `json:"credits"`
	Features        []string `json:"features"`
	IsFeatured      bool     `json:"bestValue"`
}

// DiscountKind описывает тип скидки купона.
type DiscountKind string

const (
	DiscountPercentage  DiscountKind = "percentage"
	DiscountFixedAmount DiscountKind = "fixed"
)

// Valid сообщает, является ли тип скидки известным.
func (k DiscountKind) Valid() bool {
	return k == DiscountPercentage || k == DiscountFixedAmount
}

// Coupon описывает купон на скидку при покупке пакета.
type Coupon struct {
	Code                 string
	Description          string
	DiscountKind         DiscountKind
	DiscountValue        int64
	ApplicablePackageIDs []string
	IsActive             bool
	IsVisible            bool
	MaxUsesPerUser       int
}

// AppliesTo сообщает, распространяется ли купон на указанный пакет.
// Пустой список пакетов означает «все пакеты».
func (c *Coupon) AppliesTo(packageID string) bool {
	if len(c.ApplicablePackageIDs) == 0 {
		return true
	}
	for _, id := range c.ApplicablePackageIDs {
		if id == packageID {
			return true
		}
	}
	return false
}

// CouponRedemption фиксирует факт использования купона пользователем.
type CouponRedemption struct {
	UserID     int64
	CouponCode string
	RedeemedAt time.Time
}

// CreditAccount содержит кредитный счёт пользователя.
type CreditAccount struct {
	UserID       int64 `json:"-"`
	CreditsTotal int64 `json:"creditsTotal"`
	CreditsUsed  int64 `json:"creditsUsed"`
}

// Remaining возвращает остаток кредитов, не меньше нуля.
func (a *CreditAccount) Remaining() int64 {
	if a.CreditsUsed >= a.CreditsTotal {
		return 0
	}
	return a.CreditsTotal - a.CreditsUsed
}

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

// PaymentRecord описывает подтверждённый платёж. Записи не изменяются после создания.
type PaymentRecord struct {
	ID               string
	UserID           int64
	GatewayOrderID   string
	GatewayPaymentID string
	AmountMinorUnits int64
	Currency         string
	CreditsAdded     int64
	PackageID        string
	CouponCode       string
	Status           PaymentStatus
	CreatedAt        time.Time
}

// CheckoutStatus описывает состояние заказа на пополнение.
type CheckoutStatus string

const (
	CheckoutStatusInitiated CheckoutStatus = "initiated"
	CheckoutStatusPaid      CheckoutStatus = "paid"
	CheckoutStatusExpired   CheckoutStatus = "expired"
)

// CheckoutOrder описывает заказ, созданный в платёжном шлюзе, до его оплаты.
type CheckoutOrder struct {
	GatewayOrderID   string
	UserID           int64
	PackageID        string
	CouponCode       string
	AmountMinorUnits int64
	Currency         string
	Credits          int64
	Status           CheckoutStatus
	CreatedAt        time.Time
}

// CampaignStatus описывает стадию рекламной кампании.
type CampaignStatus string

const (
	CampaignStatusAnalyzed  CampaignStatus = "analyzed"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// Campaign описывает кампанию, созданную по URL бренда.
type Campaign struct {
	ID        string
	UserID    int64
	URL       string
	Goal      string
	Context   string
	Status    CampaignStatus
	Analysis  *BrandAnalysis
	CreatedAt time.Time
}

// BrandAnalysis содержит результат анализа бренда генеративной моделью.
type BrandAnalysis struct {
	BrandName      string   `json:"brandName"`
	Industry       string   `json:"industry"`
	TargetAudience string   `json:"targetAudience"`
	ValueProps     []string `json:"valueProps"`
	BrandVoice     string   `json:"brandVoice"`
	Competitors    []string `json:"competitors"`
}

// AdVariant описывает рекламный текст для одной платформы.
type AdVariant struct {
	Platform     string `json:"platform"`
	Headline     string `json:"headline"`
	Body         string `json:"body"`
	CallToAction string `json:"cta"`
}

// Asset описывает сохранённый результат генерации.
type Asset struct {
	CampaignID string
	Type       string
	Content    string
	Platform   string
	Tone       string
}

// StoredAsset описывает сохранённый материал вместе с URL его кампании.
type StoredAsset struct {
	ID          int64
	Asset
	CampaignURL string
	CreatedAt   time.Time
}

// DefaultPlanTier задаёт тариф пользователя, ещё не купившего пакет.
const DefaultPlanTier = "Starter"

// DashboardStats содержит сводку по студии пользователя.
type DashboardStats struct {
	TotalCampaigns int64
	TotalAssets    int64
	CreditsUsed    int64
	CreditsTotal   int64
	PlanTier       string
}

// UsageCounts содержит счётчики кампаний и материалов пользователя и пакет
// последней оплаты, если она была.
type UsageCounts struct {
	Campaigns       int64
	Assets          int64
	LatestPackageID string
}

// APIKey описывает ключ доступа к API. Сам ключ не хранится, только его хеш и подсказка.
type APIKey struct {
	ID        string
	UserID    int64
	Name      string
	KeyHash   string
	KeyHint   string
	CreatedAt time.Time
}
