// Package service реализует бизнес-логику сервиса биллинга SyncFlo.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/syncflo-billing/internal/catalog"
	"github.com/mmeshcher/syncflo-billing/internal/coupon"
	"github.com/mmeshcher/syncflo-billing/internal/ledger"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/payment"
	"github.com/mmeshcher/syncflo-billing/internal/razorpay"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
)

// DefaultGenerationCost задаёт стоимость одной генерации рекламных материалов в кредитах.
const DefaultGenerationCost int64 = 100

var (
	// ErrInvalidCredentials возвращается при неверном логине или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrFreeOrder возвращается, если после скидки сумма к оплате равна нулю.
	ErrFreeOrder = errors.New("final amount is zero, nothing to charge")
	// ErrInvalidSignature возвращается при несовпадении подписи платежа или вебхука.
	ErrInvalidSignature = errors.New("invalid payment signature")
	// ErrUnavailable оборачивает временную недоступность внешних сервисов.
	ErrUnavailable = errors.New("service temporarily unavailable")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)

	CreateCheckoutOrder(ctx context.Context, o model.CheckoutOrder) error
	GetCheckoutOrder(ctx context.Context, gatewayOrderID string) (*model.CheckoutOrder, error)
	GetPendingCheckoutOrders(ctx context.Context, createdBefore time.Time, limit int) ([]model.CheckoutOrder, error)
	ExpireCheckoutOrder(ctx context.Context, gatewayOrderID string) error

	GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*model.PaymentRecord, error)
	GetPaymentForUser(ctx context.Context, paymentID string, userID int64) (*model.PaymentRecord, error)
	GetPaymentsByUser(ctx context.Context, userID int64) ([]model.PaymentRecord, error)

	CreateCampaign(ctx context.Context, c model.Campaign) error
	GetCampaign(ctx context.Context, campaignID string, userID int64) (*model.Campaign, error)
	CompleteCampaign(ctx context.Context, campaignID string, userID int64, assets []model.Asset) error
	GetCampaignsByUser(ctx context.Context, userID int64) ([]model.Campaign, error)
	GetUsageCounts(ctx context.Context, userID int64) (*model.UsageCounts, error)
	GetAssetsByUser(ctx context.Context, userID int64) ([]model.StoredAsset, error)

	CreateAPIKey(ctx context.Context, k model.APIKey) (*model.APIKey, error)
	ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string, userID int64) error
}

// Gateway описывает используемые операции платёжного шлюза.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.OrderRequest) (*razorpay.Order, error)
	GetOrderPayments(ctx context.Context, orderID string) ([]razorpay.Payment, int, time.Duration, error)
}

// Studio описывает операции генерации контента.
type Studio interface {
	AnalyzeBrand(ctx context.Context, brandURL, goal, extra string) (*model.BrandAnalysis, error)
	GenerateTones(ctx context.Context, analysis *model.BrandAnalysis) ([]string, error)
	GenerateAds(ctx context.Context, analysis *model.BrandAnalysis, tone string, platforms []string) ([]model.AdVariant, error)
	Refine(ctx context.Context, original, instruction string) (string, error)
}

// Deps содержит зависимости сервиса.
type Deps struct {
	Repo           Repository
	Catalog        *catalog.Catalog
	Coupons        *coupon.Evaluator
	Ledger         *ledger.Ledger
	Verifier       *payment.Verifier
	Gateway        Gateway
	Studio         Studio
	Logger         *zap.Logger
	Currency       string
	GenerationCost int64
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo           Repository
	catalog        *catalog.Catalog
	coupons        *coupon.Evaluator
	ledger         *ledger.Ledger
	verifier       *payment.Verifier
	gateway        Gateway
	studio         Studio
	logger         *zap.Logger
	currency       string
	generationCost int64
	now            func() time.Time
}

// NewService создаёт сервис из набора зависимостей.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Currency == "" {
		d.Currency = "USD"
	}
	if d.GenerationCost <= 0 {
		d.GenerationCost = DefaultGenerationCost
	}

	return &Service{
		repo:           d.Repo,
		catalog:        d.Catalog,
		coupons:        d.Coupons,
		ledger:         d.Ledger,
		verifier:       d.Verifier,
		gateway:        d.Gateway,
		studio:         d.Studio,
		logger:         d.Logger,
		currency:       d.Currency,
		generationCost: d.GenerationCost,
		now:            time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}
