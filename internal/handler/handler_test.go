package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/syncflo-billing/internal/catalog"
	"github.com/mmeshcher/syncflo-billing/internal/coupon"
	"github.com/mmeshcher/syncflo-billing/internal/ledger"
	"github.com/mmeshcher/syncflo-billing/internal/middleware"
	"github.com/mmeshcher/syncflo-billing/internal/model"
	"github.com/mmeshcher/syncflo-billing/internal/payment"
	"github.com/mmeshcher/syncflo-billing/internal/razorpay"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
	"github.com/mmeshcher/syncflo-billing/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	couponsResp []model.Coupon

	quoteUserID int64
	quoteResp   *service.Quote
	quoteErr    error

	checkoutResp *service.Checkout
	checkoutErr  error

	verifyResp *service.VerifyResult
	verifyErr  error

	webhookBody []byte
	webhookSig  string
	webhookErr  error

	creditsResp *model.CreditAccount
	creditsErr  error

	paymentsResp []model.PaymentRecord

	invoiceID   string
	invoiceResp []byte
	invoiceErr  error

	campaignResp *model.Campaign
	analyzeErr   error

	adsResp *service.AdsResult
	adsErr  error

	statsResp  *model.DashboardStats
	assetsResp []model.StoredAsset

	apiKeys     []model.APIKey
	newKeyName  string
	revokedKey  string
	revokeErr   error
	generateErr error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) ListPackages() []model.Package {
	return catalog.Default().List()
}

func (s *stubService) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	return s.couponsResp, nil
}

func (s *stubService) QuoteCoupon(ctx context.Context, userID int64, code, packageID string) (*service.Quote, error) {
	s.quoteUserID = userID
	return s.quoteResp, s.quoteErr
}

func (s *stubService) CreateCheckout(ctx context.Context, userID int64, packageID, couponCode string) (*service.Checkout, error) {
	return s.checkoutResp, s.checkoutErr
}

func (s *stubService) VerifyPayment(ctx context.Context, userID int64, orderID, paymentID, signature string) (*service.VerifyResult, error) {
	return s.verifyResp, s.verifyErr
}

func (s *stubService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	s.webhookBody = body
	s.webhookSig = signature
	return s.webhookErr
}

func (s *stubService) GetCredits(ctx context.Context, userID int64) (*model.CreditAccount, error) {
	return s.creditsResp, s.creditsErr
}

func (s *stubService) GetPayments(ctx context.Context, userID int64) ([]model.PaymentRecord, error) {
	return s.paymentsResp, nil
}

func (s *stubService) RenderInvoice(ctx context.Context, userID int64, paymentID string) ([]byte, error) {
	s.invoiceID = paymentID
	return s.invoiceResp, s.invoiceErr
}

func (s *stubService) AnalyzeBrand(ctx context.Context, userID int64, rawURL, goal, extra string) (*model.Campaign, error) {
	return s.campaignResp, s.analyzeErr
}

func (s *stubService) GenerateTones(ctx context.Context, analysis *model.BrandAnalysis) ([]string, error) {
	return []string{"Bold", "Playful"}, nil
}

func (s *stubService) GenerateAds(ctx context.Context, userID int64, req service.AdsRequest) (*service.AdsResult, error) {
	return s.adsResp, s.adsErr
}

func (s *stubService) RefineContent(ctx context.Context, content, instruction string) (string, error) {
	return "refined", nil
}

func (s *stubService) GetCampaigns(ctx context.Context, userID int64) ([]model.Campaign, error) {
	return nil, nil
}

func (s *stubService) GetDashboardStats(ctx context.Context, userID int64) (*model.DashboardStats, error) {
	return s.statsResp, nil
}

func (s *stubService) GetAssets(ctx context.Context, userID int64) ([]model.StoredAsset, error) {
	return s.assetsResp, nil
}

func (s *stubService) GenerateAPIKey(ctx context.Context, userID int64, name string) (*service.NewAPIKey, error) {
	s.newKeyName = name
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &service.NewAPIKey{
		Key: model.APIKey{ID: "key-1", UserID: userID, Name: name, KeyHash: "hash", KeyHint: "sk_live_...beef"},
		Raw: "sk_live_00beef",
	}, nil
}

func (s *stubService) ListAPIKeys(ctx context.Context, userID int64) ([]model.APIKey, error) {
	return s.apiKeys, nil
}

func (s *stubService) RevokeAPIKey(ctx context.Context, userID int64, keyID string) error {
	s.revokedKey = keyID
	return s.revokeErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth, middleware.NewRateLimiter(60, 2))
}

// authCookie возвращает cookie сессии для пользователя.
func authCookie(h *Handler, userID int64) *http.Cookie {
	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID)
	return rec.Result().Cookies()[0]
}

func doRequest(t *testing.T, h *Handler, method, path, body string, cookie *http.Cookie) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUserID: 42,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("expected auth cookie to be set")
	}
}

func TestRegister_Conflict(t *testing.T) {
	h := newTestHandler(t, &stubService{registerErr: repository.ErrUserExists})

	res := doRequest(t, h, http.MethodPost, "/api/user/register", `{"login":"user","password":"pass"}`, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	svc := &stubService{
		authErr: service.ErrInvalidCredentials,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Login:    "user",
		Password: "pass",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestGetCredits(t *testing.T) {
	svc := &stubService{
		creditsResp: &model.CreditAccount{UserID: 1, CreditsTotal: 1000, CreditsUsed: 300},
	}
	h := newTestHandler(t, svc)

	if res := doRequest(t, h, http.MethodGet, "/api/user/credits", "", nil); res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without cookie = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}

	res := doRequest(t, h, http.MethodGet, "/api/user/credits", "", authCookie(h, 1))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got creditsResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CreditsRemaining != 700 || got.CreditsTotal != 1000 {
		t.Fatalf("unexpected credits: %+v", got)
	}
}

func TestListPackages_Public(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(t, h, http.MethodGet, "/api/billing/packages", "", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var pkgs []model.Package
	if err := json.NewDecoder(res.Body).Decode(&pkgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(pkgs) != 3 || pkgs[1].ID != "growth" || !pkgs[1].IsFeatured {
		t.Fatalf("unexpected packages: %+v", pkgs)
	}
}

func TestListCoupons_EmptyPackagesAsArray(t *testing.T) {
	h := newTestHandler(t, &stubService{couponsResp: []model.Coupon{
		{Code: "WELCOME20", DiscountKind: model.DiscountPercentage, DiscountValue: 20},
	}})

	res := doRequest(t, h, http.MethodGet, "/api/billing/coupons", "", nil)
	var raw []map[string]any
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected one coupon, got %d", len(raw))
	}
	if _, ok := raw[0]["applicablePackageIds"].([]any); !ok {
		t.Fatalf("applicablePackageIds must be an array, got %v", raw[0]["applicablePackageIds"])
	}
}

func TestValidateCoupon_AnonymousAndAuthenticated(t *testing.T) {
	svc := &stubService{
		quoteResp: &service.Quote{PackageID: "growth", Code: "WELCOME20", Valid: false, Reason: coupon.ReasonNotFound, BaseAmount: 2500, FinalAmount: 2500},
	}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodPost, "/api/billing/coupons/validate", `{"code":"welcome20","packageId":"growth"}`, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if svc.quoteUserID != model.AnonymousUserID {
		t.Fatalf("anonymous request quoted for user %d", svc.quoteUserID)
	}

	var got service.Quote
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Valid || got.Reason != coupon.ReasonNotFound {
		t.Fatalf("unexpected quote: %+v", got)
	}

	doRequest(t, h, http.MethodPost, "/api/billing/coupons/validate", `{"code":"welcome20","packageId":"growth"}`, authCookie(h, 9))
	if svc.quoteUserID != 9 {
		t.Fatalf("authenticated request quoted for user %d, want 9", svc.quoteUserID)
	}
}

func TestValidateCoupon_UnknownPackage(t *testing.T) {
	h := newTestHandler(t, &stubService{quoteErr: catalog.ErrPackageNotFound})

	res := doRequest(t, h, http.MethodPost, "/api/billing/coupons/validate", `{"code":"X","packageId":"enterprise"}`, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestCreateOrder_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "success", err: nil, status: http.StatusOK},
		{name: "free order", err: service.ErrFreeOrder, status: http.StatusUnprocessableEntity},
		{name: "unknown package", err: catalog.ErrPackageNotFound, status: http.StatusBadRequest},
		{name: "gateway down", err: fmt.Errorf("%w: timeout", service.ErrUnavailable), status: http.StatusServiceUnavailable},
		{name: "unexpected", err: context.Canceled, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{checkoutErr: tt.err}
			if tt.err == nil {
				svc.checkoutResp = &service.Checkout{OrderID: "order_1", Amount: 2000, Currency: "USD", Key: "rzp_test"}
			}
			h := newTestHandler(t, svc)

			res := doRequest(t, h, http.MethodPost, "/api/billing/orders", `{"packageId":"growth","couponCode":"WELCOME20"}`, authCookie(h, 1))
			if res.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.status)
			}
		})
	}
}

func TestVerifyPayment_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		resp   *service.VerifyResult
		err    error
		status int
		code   string
	}{
		{name: "granted", resp: &service.VerifyResult{CreditsAdded: 3000}, status: http.StatusOK},
		{name: "repeated", resp: &service.VerifyResult{AlreadyGranted: true}, status: http.StatusOK},
		{name: "bad signature", err: &service.PaymentRejectedError{Reason: payment.RejectBadSignature}, status: http.StatusBadRequest, code: "INVALID_SIGNATURE"},
		{name: "foreign order", err: &service.PaymentRejectedError{Reason: payment.RejectForeignOrder}, status: http.StatusConflict, code: string(payment.RejectForeignOrder)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{verifyResp: tt.resp, verifyErr: tt.err})

			res := doRequest(t, h, http.MethodPost, "/api/billing/verify", `{"orderId":"order_1","paymentId":"pay_1","signature":"abc"}`, authCookie(h, 1))
			if res.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.status)
			}
			if tt.code != "" {
				var e errorResponse
				if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if e.Code != tt.code {
					t.Fatalf("code = %q, want %q", e.Code, tt.code)
				}
			}
		})
	}
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(t, h, http.MethodPost, "/api/billing/verify", `{"orderId":"order_1"}`, authCookie(h, 1))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestWebhook(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/billing/webhook", strings.NewReader(`{"event":"order.paid"}`))
	req.Header.Set("X-Razorpay-Signature", "sig")
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.webhookSig != "sig" || string(svc.webhookBody) != `{"event":"order.paid"}` {
		t.Fatalf("webhook not forwarded: %q %q", svc.webhookSig, svc.webhookBody)
	}

	svc.webhookErr = service.ErrInvalidSignature
	if res := doRequest(t, h, http.MethodPost, "/api/billing/webhook", `{}`, nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	svc.webhookErr = razorpay.ErrMalformedWebhook
	if res := doRequest(t, h, http.MethodPost, "/api/billing/webhook", `{}`, nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestGetPayments_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := doRequest(t, h, http.MethodGet, "/api/billing/payments", "", authCookie(h, 1))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestGetPayments_JSONResponse(t *testing.T) {
	h := newTestHandler(t, &stubService{paymentsResp: []model.PaymentRecord{
		{ID: "p1", GatewayPaymentID: "pay_1", AmountMinorUnits: 2000, Currency: "USD", CreditsAdded: 3000, Status: model.PaymentStatusPaid, CreatedAt: time.Now().UTC()},
	}})

	res := doRequest(t, h, http.MethodGet, "/api/billing/payments", "", authCookie(h, 1))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
}

func TestGetInvoice(t *testing.T) {
	svc := &stubService{invoiceResp: []byte("<html>INV-3F2A9C1E</html>")}
	h := newTestHandler(t, svc)

	res := doRequest(t, h, http.MethodGet, "/api/billing/invoices/3f2a9c1e-0000-4000-8000-000000000000", "", authCookie(h, 1))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if cc := res.Header.Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("cache-control = %q, want no-store", cc)
	}
	if svc.invoiceID != "3f2a9c1e-0000-4000-8000-000000000000" {
		t.Fatalf("payment id = %q", svc.invoiceID)
	}

	svc.invoiceErr = repository.ErrPaymentNotFound
	res = doRequest(t, h, http.MethodGet, "/api/billing/invoices/other", "", authCookie(h, 1))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestAds_CreditsExhausted(t *testing.T) {
	h := newTestHandler(t, &stubService{adsErr: ledger.ErrInsufficientCredits})

	res := doRequest(t, h, http.MethodPost, "/api/studio/ads", `{"tone":"Bold","platforms":["instagram"]}`, authCookie(h, 1))
	if res.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusPaymentRequired)
	}

	var e errorResponse
	if err := json.NewDecoder(res.Body).Decode(&e); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.Code != "CREDITS_EXHAUSTED" {
		t.Fatalf("code = %q, want CREDITS_EXHAUSTED", e.Code)
	}
}

func TestStudio_RateLimited(t *testing.T) {
	h := newTestHandler(t, &stubService{adsResp: &service.AdsResult{Ads: []model.AdVariant{{Platform: "instagram"}}}})
	cookie := authCookie(h, 1)
	router := h.SetupRouter()

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/studio/ads", strings.NewReader(`{"tone":"Bold","platforms":["instagram"]}`))
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
}

func TestAnalyze(t *testing.T) {
	h := newTestHandler(t, &stubService{campaignResp: &model.Campaign{
		ID: "c1", URL: "https://syncflo.ai", Status: model.CampaignStatusAnalyzed,
		Analysis: &model.BrandAnalysis{BrandName: "SyncFlo"},
	}})

	res := doRequest(t, h, http.MethodPost, "/api/studio/analyze", `{"url":"syncflo.ai"}`, authCookie(h, 1))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var got campaignResponse
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "c1" || got.Analysis == nil || got.Analysis.BrandName != "SyncFlo" {
		t.Fatalf("unexpected campaign: %+v", got)
	}

	if res := doRequest(t, h, http.MethodPost, "/api/studio/analyze", `{}`, authCookie(h, 1)); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}
