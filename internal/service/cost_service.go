package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenttrace/spanengine/internal/domain"
)

// ModelPricing represents pricing for a model
type ModelPricing = domain.ModelPricing

// PriceSource loads the stored price table
type PriceSource interface {
	ListPrices(ctx context.Context) ([]ModelPricing, error)
}

// CostService turns token counts on LLM spans into SpanUsage.
// Lookup order: project override, stored table, built-in table, then the
// longest known model name that prefixes the requested one.
type CostService struct {
	mu        sync.RWMutex
	builtin   map[string]*ModelPricing
	stored    map[string]*ModelPricing
	overrides map[uuid.UUID]map[string]*ModelPricing
	source    PriceSource
	logger    *zap.Logger
}

// NewCostService creates a new cost service with default pricing.
// source may be nil, in which case only built-in and override prices apply.
func NewCostService(source PriceSource, logger *zap.Logger) *CostService {
	s := &CostService{
		builtin:   make(map[string]*ModelPricing),
		stored:    make(map[string]*ModelPricing),
		overrides: make(map[uuid.UUID]map[string]*ModelPricing),
		source:    source,
		logger:    logger.Named("cost"),
	}
	s.loadDefaultPricing()
	return s
}

// UsageForSpan computes the usage summary of an LLM span. Token reads go
// through the facade, so legacy token keys are migrated on attrs.
func (s *CostService) UsageForSpan(_ context.Context, projectID uuid.UUID, attrs *domain.SpanAttributes) domain.SpanUsage {
	inputTokens := attrs.InputTokens()
	outputTokens := attrs.CompletionTokens()

	usage := domain.SpanUsage{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
	}

	if model, ok := attrs.RequestModel(); ok {
		usage.RequestModel = &model
	}
	if model, ok := attrs.ResponseModel(); ok {
		usage.ResponseModel = &model
	}
	if provider, ok := attrs.ProviderName(); ok {
		usage.ProviderName = &provider
	}

	var model string
	switch {
	case usage.ResponseModel != nil:
		model = *usage.ResponseModel
	case usage.RequestModel != nil:
		model = *usage.RequestModel
	default:
		return usage
	}

	pricing := s.getPricing(projectID, model)
	if pricing == nil {
		s.logger.Debug("no pricing for model", zap.String("model", model))
		return usage
	}

	usage.InputCost = float64(inputTokens) * pricing.InputPricePer1K / 1000
	usage.OutputCost = float64(outputTokens) * pricing.OutputPricePer1K / 1000
	usage.TotalCost = usage.InputCost + usage.OutputCost
	return usage
}

// GetPricing returns pricing for a model
func (s *CostService) GetPricing(model string) *ModelPricing {
	return s.getPricing(uuid.Nil, model)
}

// SetProjectPricing sets custom pricing for a project
func (s *CostService) SetProjectPricing(projectID uuid.UUID, pricing *ModelPricing) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overrides[projectID] == nil {
		s.overrides[projectID] = make(map[string]*ModelPricing)
	}
	s.overrides[projectID][normalizeModel(pricing.Model)] = pricing
}

// Refresh reloads the stored price table. On error the previous table is kept.
func (s *CostService) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}

	prices, err := s.source.ListPrices(ctx)
	if err != nil {
		return err
	}

	stored := make(map[string]*ModelPricing, len(prices))
	for i := range prices {
		p := &prices[i]
		stored[normalizeModel(p.Model)] = p
	}

	s.mu.Lock()
	s.stored = stored
	s.mu.Unlock()

	s.logger.Info("loaded stored model prices", zap.Int("model_count", len(stored)))
	return nil
}

// RunRefresh reloads the stored price table every interval until ctx is done.
func (s *CostService) RunRefresh(ctx context.Context, interval time.Duration) {
	if s.source == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.logger.Warn("failed to refresh model prices", zap.Error(err))
			}
		}
	}
}

func (s *CostService) getPricing(projectID uuid.UUID, model string) *ModelPricing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalizedModel := normalizeModel(model)
	if normalizedModel == "" {
		return nil
	}

	if projectID != uuid.Nil {
		if pricing, ok := s.overrides[projectID][normalizedModel]; ok {
			return pricing
		}
	}

	if pricing, ok := s.stored[normalizedModel]; ok {
		return pricing
	}
	if pricing, ok := s.builtin[normalizedModel]; ok {
		return pricing
	}

	// Versioned model names (gpt-4o-2024-11-20-preview) fall back to the
	// longest known prefix; stored prices win ties.
	var best *ModelPricing
	bestLen := 0
	for _, table := range []map[string]*ModelPricing{s.stored, s.builtin} {
		for key, pricing := range table {
			if len(key) > bestLen && strings.HasPrefix(normalizedModel, key) {
				best, bestLen = pricing, len(key)
			}
		}
	}
	return best
}

// normalizeModel normalizes a model name for lookup
func normalizeModel(model string) string {
	return strings.ToLower(strings.TrimSpace(model))
}

func (s *CostService) loadDefaultPricing() {
	s.mu.Lock()
	defer s.mu.Unlock()

	models := []ModelPricing{
		{Model: "gpt-4o", Provider: "openai", InputPricePer1K: 0.0025, OutputPricePer1K: 0.010},
		{Model: "gpt-4o-2024-05-13", Provider: "openai", InputPricePer1K: 0.005, OutputPricePer1K: 0.015},
		{Model: "gpt-4o-mini", Provider: "openai", InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006},
		{Model: "o1", Provider: "openai", InputPricePer1K: 0.015, OutputPricePer1K: 0.060},
		{Model: "o1-mini", Provider: "openai", InputPricePer1K: 0.003, OutputPricePer1K: 0.012},
		{Model: "o3-mini", Provider: "openai", InputPricePer1K: 0.0011, OutputPricePer1K: 0.0044},
		{Model: "gpt-4-turbo", Provider: "openai", InputPricePer1K: 0.010, OutputPricePer1K: 0.030},
		{Model: "gpt-4", Provider: "openai", InputPricePer1K: 0.030, OutputPricePer1K: 0.060},
		{Model: "gpt-4-32k", Provider: "openai", InputPricePer1K: 0.060, OutputPricePer1K: 0.120},
		{Model: "gpt-3.5-turbo", Provider: "openai", InputPricePer1K: 0.0005, OutputPricePer1K: 0.0015},
		{Model: "gpt-3.5-turbo-instruct", Provider: "openai", InputPricePer1K: 0.0015, OutputPricePer1K: 0.002},
		{Model: "text-embedding-3-small", Provider: "openai", InputPricePer1K: 0.00002},
		{Model: "text-embedding-3-large", Provider: "openai", InputPricePer1K: 0.00013},

		{Model: "claude-opus-4", Provider: "anthropic", InputPricePer1K: 0.015, OutputPricePer1K: 0.075},
		{Model: "claude-sonnet-4", Provider: "anthropic", InputPricePer1K: 0.003, OutputPricePer1K: 0.015},
		{Model: "claude-3-5-sonnet", Provider: "anthropic", InputPricePer1K: 0.003, OutputPricePer1K: 0.015},
		{Model: "claude-3-5-haiku", Provider: "anthropic", InputPricePer1K: 0.001, OutputPricePer1K: 0.005},
		{Model: "claude-3-opus", Provider: "anthropic", InputPricePer1K: 0.015, OutputPricePer1K: 0.075},
		{Model: "claude-3-sonnet", Provider: "anthropic", InputPricePer1K: 0.003, OutputPricePer1K: 0.015},
		{Model: "claude-3-haiku", Provider: "anthropic", InputPricePer1K: 0.00025, OutputPricePer1K: 0.00125},

		{Model: "gemini-1.5-pro", Provider: "gemini", InputPricePer1K: 0.00125, OutputPricePer1K: 0.005},
		{Model: "gemini-1.5-flash", Provider: "gemini", InputPricePer1K: 0.000075, OutputPricePer1K: 0.0003},
		{Model: "gemini-1.5-flash-8b", Provider: "gemini", InputPricePer1K: 0.0000375, OutputPricePer1K: 0.00015},

		{Model: "mistral-large-latest", Provider: "mistral", InputPricePer1K: 0.002, OutputPricePer1K: 0.006},
		{Model: "mistral-small-latest", Provider: "mistral", InputPricePer1K: 0.0002, OutputPricePer1K: 0.0006},
		{Model: "open-mixtral-8x7b", Provider: "mistral", InputPricePer1K: 0.0007, OutputPricePer1K: 0.0007},

		{Model: "llama-3.1-70b-versatile", Provider: "groq", InputPricePer1K: 0.00059, OutputPricePer1K: 0.00079},
		{Model: "llama-3.1-8b-instant", Provider: "groq", InputPricePer1K: 0.00005, OutputPricePer1K: 0.00008},
		{Model: "mixtral-8x7b-32768", Provider: "groq", InputPricePer1K: 0.00024, OutputPricePer1K: 0.00024},

		{Model: "command-r-plus", Provider: "cohere", InputPricePer1K: 0.002, OutputPricePer1K: 0.01},
		{Model: "command-r", Provider: "cohere", InputPricePer1K: 0.00015, OutputPricePer1K: 0.0006},

		{Model: "deepseek-chat", Provider: "deepseek", InputPricePer1K: 0.00014, OutputPricePer1K: 0.00028},
		{Model: "deepseek-reasoner", Provider: "deepseek", InputPricePer1K: 0.00055, OutputPricePer1K: 0.00219},
	}

	for i := range models {
		m := &models[i]
		s.builtin[normalizeModel(m.Model)] = m
	}

	s.logger.Debug("loaded built-in pricing", zap.Int("model_count", len(s.builtin)))
}
