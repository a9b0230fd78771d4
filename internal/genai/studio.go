package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gemini "google.golang.org/genai"

	"github.com/mmeshcher/syncflo-billing/internal/model"
)

// ErrBadInput возвращается для пустых обязательных параметров генерации.
var ErrBadInput = errors.New("invalid generation input")

func stringSchema() *gemini.Schema {
	return &gemini.Schema{Type: gemini.TypeString}
}

var stringArray = &gemini.Schema{
	Type:  gemini.TypeArray,
	Items: stringSchema(),
}

var analysisSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"brandName":      stringSchema(),
		"industry":       stringSchema(),
		"targetAudience": stringSchema(),
		"valueProps":     stringArray,
		"brandVoice":     stringSchema(),
		"competitors":    stringArray,
	},
	Required: []string{"brandName", "industry", "targetAudience", "valueProps", "brandVoice"},
}

var adsSchema = &gemini.Schema{
	Type: gemini.TypeArray,
	Items: &gemini.Schema{
		Type: gemini.TypeObject,
		Properties: map[string]*gemini.Schema{
			"platform": stringSchema(),
			"headline": stringSchema(),
			"body":     stringSchema(),
			"cta":      stringSchema(),
		},
		Required: []string{"platform", "headline", "body"},
	},
}

// Generator описывает низкоуровневые вызовы модели.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *gemini.Schema, out any) error
}

// Studio выполняет цепочку генерации: анализ бренда, тональности, рекламные тексты.
type Studio struct {
	gen Generator
}

// NewStudio создаёт Studio поверх генератора.
func NewStudio(gen Generator) *Studio {
	return &Studio{gen: gen}
}

// AnalyzeBrand анализирует бренд по URL с учётом цели и дополнительного контекста.
func (s *Studio) AnalyzeBrand(ctx context.Context, brandURL, goal, extra string) (*model.BrandAnalysis, error) {
	if strings.TrimSpace(brandURL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrBadInput)
	}

	prompt := fmt.Sprintf("Analyze the brand identity of the website %s.", brandURL)
	if goal != "" {
		prompt += " Campaign goal: " + goal + "."
	}
	if extra != "" {
		prompt += " Additional context: " + extra + "."
	}

	var res model.BrandAnalysis
	if err := s.gen.GenerateJSON(ctx, prompt, analysisSchema, &res); err != nil {
		return nil, fmt.Errorf("analyze brand: %w", err)
	}
	if res.BrandName == "" {
		return nil, fmt.Errorf("analyze brand: %w", ErrEmptyResponse)
	}
	return &res, nil
}

// GenerateTones предлагает варианты тональности кампании.
func (s *Studio) GenerateTones(ctx context.Context, analysis *model.BrandAnalysis) ([]string, error) {
	if analysis == nil || analysis.BrandName == "" {
		return nil, fmt.Errorf("%w: analysis is required", ErrBadInput)
	}

	prompt := fmt.Sprintf("Suggest four distinct campaign tones for %s (%s), audience: %s, voice: %s.",
		analysis.BrandName, analysis.Industry, analysis.TargetAudience, analysis.BrandVoice)

	var tones []string
	if err := s.gen.GenerateJSON(ctx, prompt, stringArray, &tones); err != nil {
		return nil, fmt.Errorf("generate tones: %w", err)
	}
	if len(tones) == 0 {
		return nil, fmt.Errorf("generate tones: %w", ErrEmptyResponse)
	}
	return tones, nil
}

// GenerateAds генерирует рекламные тексты для перечисленных платформ.
func (s *Studio) GenerateAds(ctx context.Context, analysis *model.BrandAnalysis, tone string, platforms []string) ([]model.AdVariant, error) {
	if analysis == nil || analysis.BrandName == "" {
		return nil, fmt.Errorf("%w: analysis is required", ErrBadInput)
	}
	if tone == "" || len(platforms) == 0 {
		return nil, fmt.Errorf("%w: tone and platforms are required", ErrBadInput)
	}

	prompt := fmt.Sprintf("Write one ad per platform (%s) for %s in a %s tone. Value propositions: %s.",
		strings.Join(platforms, ", "), analysis.BrandName, tone, strings.Join(analysis.ValueProps, "; "))

	var ads []model.AdVariant
	if err := s.gen.GenerateJSON(ctx, prompt, adsSchema, &ads); err != nil {
		return nil, fmt.Errorf("generate ads: %w", err)
	}
	if len(ads) == 0 {
		return nil, fmt.Errorf("generate ads: %w", ErrEmptyResponse)
	}
	return ads, nil
}

// Refine дорабатывает текст по инструкции пользователя.
func (s *Studio) Refine(ctx context.Context, original, instruction string) (string, error) {
	if strings.TrimSpace(original) == "" || strings.TrimSpace(instruction) == "" {
		return "", fmt.Errorf("%w: content and prompt are required", ErrBadInput)
	}

	text, err := s.gen.GenerateText(ctx, "Rewrite the following ad copy. Instruction: "+instruction+"\n\n"+original)
	if err != nil {
		return "", fmt.Errorf("refine content: %w", err)
	}
	return strings.TrimSpace(text), nil
}
