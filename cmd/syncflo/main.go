// Package main запускает HTTP-сервер сервиса биллинга SyncFlo.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/syncflo-billing/internal/catalog"
	"github.com/mmeshcher/syncflo-billing/internal/config"
	"github.com/mmeshcher/syncflo-billing/internal/coupon"
	"github.com/mmeshcher/syncflo-billing/internal/genai"
	"github.com/mmeshcher/syncflo-billing/internal/handler"
	"github.com/mmeshcher/syncflo-billing/internal/ledger"
	"github.com/mmeshcher/syncflo-billing/internal/middleware"
	"github.com/mmeshcher/syncflo-billing/internal/payment"
	"github.com/mmeshcher/syncflo-billing/internal/razorpay"
	"github.com/mmeshcher/syncflo-billing/internal/repository"
	"github.com/mmeshcher/syncflo-billing/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	verifier, err := payment.NewVerifier(cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
	if err != nil {
		sugar.Fatalw("payment verifier configuration error", "error", err.Error())
	}
	if cfg.RazorpayWebhookSecret == "" {
		sugar.Warn("RAZORPAY_WEBHOOK_SECRET is not set, webhooks will be rejected")
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	gen, err := genai.NewClient(context.Background(), cfg.GeminiAPIURL, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		sugar.Fatalw("generative client configuration error", "error", err.Error())
	}
	if cfg.GeminiAPIKey == "" {
		sugar.Warn("GEMINI_API_KEY is not set, studio generation is unavailable")
	}

	svc := service.NewService(service.Deps{
		Repo:           repo,
		Catalog:        catalog.Default(),
		Coupons:        coupon.NewEvaluator(repo, logger),
		Ledger:         ledger.New(repo, logger, cfg.DefaultCredits),
		Verifier:       verifier,
		Gateway:        razorpay.NewClient(cfg.RazorpayAPIURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Studio:         genai.NewStudio(gen),
		Logger:         logger,
		Currency:       cfg.Currency,
		GenerationCost: cfg.GenerationCost,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret).WithSecureCookie(cfg.SecureCookies)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, sessions will not survive a restart")
	}
	limiter := middleware.NewRateLimiter(cfg.GenerationsPerMin, 3)
	h := handler.NewHandler(svc, logger, authMiddleware, limiter)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Сверка неоплаченных заказов с платёжным шлюзом
	g.Go(func() error {
		return svc.RunReconciliation(ctx, cfg.ReconcileInterval)
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting syncflo billing server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
