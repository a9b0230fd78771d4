// Package genai предоставляет клиент генеративной модели Gemini и операции студии
// поверх него: анализ бренда, подбор тональностей, генерацию и доработку текстов.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gemini "google.golang.org/genai"
)

const (
	// DefaultBaseURL задаёт адрес Generative Language API.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	// DefaultModel задаёт модель для текстовых операций.
	DefaultModel = "gemini-flash-lite-latest"
)

var (
	// ErrUnavailable возвращается, если сервис генерации недоступен.
	ErrUnavailable = errors.New("generative service unavailable")
	// ErrEmptyResponse возвращается, если модель не вернула содержимого.
	ErrEmptyResponse = errors.New("empty model response")
)

// Client выполняет запросы generateContent через SDK Gemini.
// Без ключа API клиент создаётся, но каждый вызов возвращает ErrUnavailable.
type Client struct {
	sdk   *gemini.Client
	model string
}

// NewClient создаёт клиент с указанным ключом API.
func NewClient(ctx context.Context, baseURL, apiKey, model string) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model}
	if apiKey == "" {
		return c, nil
	}

	sdk, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:      apiKey,
		Backend:     gemini.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
		HTTPOptions: gemini.HTTPOptions{BaseURL: strings.TrimRight(baseURL, "/")},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c.sdk = sdk
	return c, nil
}

// GenerateText возвращает текстовый ответ модели на запрос.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, nil)
}

// GenerateJSON запрашивает ответ, ограниченный схемой, и декодирует его в out.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *gemini.Schema, out any) error {
	text, err := c.generate(ctx, prompt, &gemini.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt string, cfg *gemini.GenerateContentConfig) (string, error) {
	if c == nil || c.sdk == nil {
		return "", fmt.Errorf("%w: api key not configured", ErrUnavailable)
	}

	resp, err := c.sdk.Models.GenerateContent(ctx, c.model, gemini.Text(prompt), cfg)
	if err != nil {
		return "", classify(err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// classify относит ошибки 429, 5xx и сбои транспорта к временной недоступности.
func classify(err error) error {
	code := 0
	var apiErr gemini.APIError
	var apiErrPtr *gemini.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if code == http.StatusTooManyRequests || code >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}
	return fmt.Errorf("generate content: %w", err)
}
