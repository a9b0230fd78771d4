// Package config содержит логику чтения конфигурации сервиса биллинга SyncFlo.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress  = "localhost:8080"
	defaultRazorpayURL = "https://api.razorpay.com"
	defaultGeminiURL   = "https://generativelanguage.googleapis.com"
)

// Config содержит параметры конфигурации сервиса.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	AuthSecret    string `env:"AUTH_SECRET"`
	SecureCookies bool   `env:"SECURE_COOKIES"`

	RazorpayKeyID         string `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret     string `env:"RAZORPAY_KEY_SECRET"`
	RazorpayWebhookSecret string `env:"RAZORPAY_WEBHOOK_SECRET"`
	RazorpayAPIURL        string `env:"RAZORPAY_API_URL"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiAPIURL string `env:"GEMINI_API_URL"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-flash-lite-latest"`

	Currency          string        `env:"CURRENCY" envDefault:"USD"`
	DefaultCredits    int64         `env:"DEFAULT_CREDITS" envDefault:"1000"`
	GenerationCost    int64         `env:"GENERATION_COST" envDefault:"100"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`
	GenerationsPerMin int           `env:"GENERATIONS_PER_MINUTE" envDefault:"10"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := map[*string]string{
		&cfg.RunAddress:     cfg.RunAddress,
		&cfg.DatabaseURI:    cfg.DatabaseURI,
		&cfg.AuthSecret:     cfg.AuthSecret,
		&cfg.RazorpayKeyID:  cfg.RazorpayKeyID,
		&cfg.RazorpayAPIURL: cfg.RazorpayAPIURL,
		&cfg.GeminiAPIURL:   cfg.GeminiAPIURL,
	}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "session cookie signing secret")
	flag.StringVar(&cfg.RazorpayKeyID, "k", "", "payment gateway key id")
	flag.StringVar(&cfg.RazorpayAPIURL, "p", defaultRazorpayURL, "payment gateway API address")
	flag.StringVar(&cfg.GeminiAPIURL, "g", defaultGeminiURL, "generative API address")

	flag.Parse()

	for field, envValue := range fromEnv {
		if envValue != "" {
			*field = envValue
		}
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.RazorpayAPIURL == "" {
		cfg.RazorpayAPIURL = defaultRazorpayURL
	}
	if cfg.GeminiAPIURL == "" {
		cfg.GeminiAPIURL = defaultGeminiURL
	}

	return cfg, nil
}
