// Package handler содержит HTTP-обработчики API сервиса биллинга SyncFlo.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/catalog"
	"github.com/mmeshcher/syncflo-billing/internal/ledger"
	"github.com/mmeshcher/syncflo-billing/internal/middleware"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/razorpay"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
	"github.com/mmeshcher/syncflo-billing/internal/service"
	"github.com/mmeshcher/syncflo-billing/internal/validation"
)

const maxWebhookBody = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)

	ListPackages() []model.Package
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	QuoteCoupon(ctx context.Context, userID int64, code, packageID string) (*service.Quote, error)
	CreateCheckout(ctx context.Context, userID int64, packageID, couponCode string) (*service.Checkout, error)
	VerifyPayment(ctx context.Context, userID int64, orderID, paymentID, signature string) (*service.VerifyResult, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	GetCredits(ctx context.Context, userID int64) (*model.CreditAccount, error)
	GetPayments(ctx context.Context, userID int64) ([]model.PaymentRecord, error)
	RenderInvoice(ctx context.Context, userID int64, paymentID string) ([]byte, error)

	AnalyzeBrand(ctx context.Context, userID int64, rawURL, goal, extra string) (*model.Campaign, error)
	GenerateTones(ctx context.Context, analysis *model.BrandAnalysis) ([]string, error)
	GenerateAds(ctx context.Context, userID int64, req service.AdsRequest) (*service.AdsResult, error)
	RefineContent(ctx context.Context, content, instruction string) (string, error)
	GetCampaigns(ctx context.Context, userID int64) ([]model.Campaign, error)
	GetDashboardStats(ctx context.Context, userID int64) (*model.DashboardStats, error)
	GetAssets(ctx context.Context, userID int64) ([]model.StoredAsset, error)

	GenerateAPIKey(ctx context.Context, userID int64, name string) (*service.NewAPIKey, error)
	ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error)
	RevokeAPIKey(ctx context.Context, userID int64, keyID string) error
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	limiter        *middleware.RateLimiter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// limiter может быть nil, тогда генерация не ограничивается по частоте.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		limiter:        limiter,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeServiceError отображает ошибку сервиса в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var rejected *service.PaymentRejectedError

	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "insufficient credits", "CREDITS_EXHAUSTED")
	case errors.Is(err, service.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid payment signature", "INVALID_SIGNATURE")
	case errors.As(err, &rejected):
		writeError(w, http.StatusConflict, "payment cannot be applied", string(rejected.Reason))
	case errors.Is(err, catalog.ErrPackageNotFound):
		writeError(w, http.StatusBadRequest, "unknown package", "UNKNOWN_PACKAGE")
	case errors.Is(err, service.ErrFreeOrder):
		writeError(w, http.StatusUnprocessableEntity, "final amount is zero", "FREE_ORDER")
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, razorpay.ErrMalformedWebhook):
		writeError(w, http.StatusBadRequest, "malformed payload", "MALFORMED_PAYLOAD")
	case errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrCampaignNotFound),
		errors.Is(err, repository.ErrAPIKeyNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, service.ErrUnavailable):
		h.logger.Warn(op+" upstream unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable, please try again", "UNAVAILABLE")
	default:
		h.logger.Error(op+" error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(r, &req) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidLogin(req.Login) || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(r, &req) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Logout удаляет cookie сессии.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type creditsResponse struct {
	CreditsTotal     int64 `json:"creditsTotal"`
	CreditsUsed      int64 `json:"creditsUsed"`
	CreditsRemaining int64 `json:"creditsRemaining"`
}

// GetCredits возвращает кредитный счёт текущего пользователя.
func (h *Handler) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	acc, err := h.service.GetCredits(r.Context(), userID)
	if err != nil {
		h.logger.Error("get credits error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, creditsResponse{
		CreditsTotal:     acc.CreditsTotal,
		CreditsUsed:      acc.CreditsUsed,
		CreditsRemaining: acc.Remaining(),
	})
}

// ListPackages возвращает каталог пакетов.
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListPackages())
}

type couponResponse struct {
	Code                 string   `json:"code"`
	Description          string   `json:"description"`
	DiscountType         string   `json:"discountType"`
	DiscountValue        int64    `json:"discountValue"`
	ApplicablePackageIDs []string `json:"applicablePackageIds"`
}

// ListCoupons возвращает купоны, доступные для показа.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListCoupons(r.Context())
	if err != nil {
		h.logger.Error("list coupons error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		pkgs := c.ApplicablePackageIDs
		if pkgs == nil {
			pkgs = []string{}
		}
		resp = append(resp, couponResponse{
			Code:                 c.Code,
			Description:          c.Description,
			DiscountType:         string(c.DiscountKind),
			DiscountValue:        c.DiscountValue,
			ApplicablePackageIDs: pkgs,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type validateCouponRequest struct {
	Code      string `json:"code"`
	PackageID string `json:"packageId"`
}

// ValidateCoupon проверяет купон для пакета. Невалидный купон возвращается с кодом 200 и valid=false.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if !decodeJSON(r, &req) || req.PackageID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		userID = model.AnonymousUserID
	}

	quote, err := h.service.QuoteCoupon(r.Context(), userID, req.Code, req.PackageID)
	if err != nil {
		h.writeServiceError(w, "validate coupon", err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

type createOrderRequest struct {
	PackageID  string `json:"packageId"`
	CouponCode string `json:"couponCode"`
}

// CreateOrder создаёт заказ на покупку пакета кредитов.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if !decodeJSON(r, &req) || req.PackageID == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	checkout, err := h.service.CreateCheckout(r.Context(), userID, req.PackageID, req.CouponCode)
	if err != nil {
		h.writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusOK, checkout)
}

type verifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// VerifyPayment подтверждает оплату заказа и начисляет кредиты.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req verifyPaymentRequest
	if !decodeJSON(r, &req) || req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.service.VerifyPayment(r.Context(), userID, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.writeServiceError(w, "verify payment", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Webhook принимает уведомления платёжного шлюза.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.HandleWebhook(r.Context(), body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		h.writeServiceError(w, "webhook", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type paymentResponse struct {
	ID         string `json:"id"`
	OrderID    string `json:"orderId"`
	PaymentID  string `json:"paymentId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Credits    int64  `json:"credits"`
	PackageID  string `json:"packageId"`
	CouponCode string `json:"couponCode,omitempty"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
}

// GetPayments возвращает историю платежей текущего пользователя.
func (h *Handler) GetPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	payments, err := h.service.GetPayments(r.Context(), userID)
	if err != nil {
		h.logger.Error("get payments error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(payments) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, paymentResponse{
			ID:         p.ID,
			OrderID:    p.GatewayOrderID,
			PaymentID:  p.GatewayPaymentID,
			Amount:     p.AmountMinorUnits,
			Currency:   p.Currency,
			Credits:    p.CreditsAdded,
			PackageID:  p.PackageID,
			CouponCode: p.CouponCode,
			Status:     string(p.Status),
			CreatedAt:  p.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetInvoice возвращает HTML-счёт по платежу текущего пользователя.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	html, err := h.service.RenderInvoice(r.Context(), userID, chi.URLParam(r, "paymentID"))
	if err != nil {
		h.writeServiceError(w, "render invoice", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(html)
}
