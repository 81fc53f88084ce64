// Package completion wraps the LLM providers with response caching and
// token-budget accounting. Every generation in the system goes through
// Service.Generate.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"creatorlab/pkg/ai"
	"creatorlab/pkg/domain"
	"creatorlab/pkg/store"
)

var (
	// ErrBudgetPaused is returned when an active token budget is paused and
	// generation must not proceed.
	ErrBudgetPaused = errors.New("token budget paused")

	// ErrGeneration wraps completion-service failures so callers can decide
	// to retry.
	ErrGeneration = errors.New("generation failed")

	// ErrPromptRequired rejects empty prompts before any spend happens.
	ErrPromptRequired = errors.New("prompt required")
)

// DefaultCacheTTL bounds cache entries when the caller does not choose one.
const DefaultCacheTTL = 24 * time.Hour

// Request describes one completion call.
type Request struct {
	Prompt       string
	SystemPrompt string
	// Operation labels the call for accounting and cache keying, e.g.
	// "business_plan" or "section:Growth Plan".
	Operation   string
	ClientID    string
	RequestedBy string
	UseCache    bool
	CacheTTL    time.Duration
}

// Result is the outcome of one completion call.
type Result struct {
	Text       string
	TokensUsed int
	Cost       float64
	Cached     bool
}

// Service is the completion adapter: cache in front, budget gate before the
// call, atomic usage accounting after it.
type Service struct {
	generator       ai.TextGenerator
	cache           Cache
	store           store.Store
	pricePerKTokens float64
}

// NewService wires a completion service. cache may be nil to disable caching.
func NewService(generator ai.TextGenerator, cache Cache, st store.Store, pricePerKTokens float64) (*Service, error) {
	if generator == nil {
		return nil, errors.New("text generator required")
	}
	if st == nil {
		return nil, errors.New("store required")
	}
	if pricePerKTokens < 0 {
		return nil, errors.New("price per 1k tokens must not be negative")
	}
	return &Service{
		generator:       generator,
		cache:           cache,
		store:           st,
		pricePerKTokens: pricePerKTokens,
	}, nil
}

// Generate runs one completion. Cache hits return without touching the model
// or the budgets. A paused active budget refuses the call with
// ErrBudgetPaused before any spend.
func (s *Service) Generate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, ErrPromptRequired
	}
	key := CacheKey(req.Prompt, req.SystemPrompt, req.Operation)
	if req.UseCache && s.cache != nil {
		text, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("completion cache read failed", "operation", req.Operation, "err", err)
		} else if ok {
			return Result{Text: text, Cached: true}, nil
		}
	}

	budgets, err := s.store.ListActiveBudgets()
	if err != nil {
		return Result{}, fmt.Errorf("load budgets: %w", err)
	}
	for _, b := range budgets {
		if b.IsPaused {
			return Result{}, fmt.Errorf("%w: %s budget", ErrBudgetPaused, b.Period)
		}
	}

	comp, err := s.generator.GenerateText(ctx, req.SystemPrompt, req.Prompt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	tokens := comp.Usage.Total()
	cost := float64(tokens) / 1000 * s.pricePerKTokens
	for _, b := range budgets {
		s.charge(b, tokens, cost, req.Operation)
	}

	if req.UseCache && s.cache != nil {
		ttl := req.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		if err := s.cache.Set(ctx, key, comp.Text, ttl); err != nil {
			slog.Warn("completion cache write failed", "operation", req.Operation, "err", err)
		}
	}
	return Result{Text: comp.Text, TokensUsed: tokens, Cost: cost}, nil
}

// charge records usage against one budget and fires any newly crossed alert
// thresholds. Accounting failures are logged, not fatal: the completion
// already happened and must be returned to the caller.
func (s *Service) charge(b domain.TokenBudget, tokens int, cost float64, operation string) {
	updated, err := s.store.ChargeBudget(b.ID, int64(tokens), cost)
	if err != nil {
		slog.Error("budget charge failed", "budget", b.ID, "period", b.Period, "err", err)
		return
	}
	if updated.IsPaused && !b.IsPaused {
		slog.Warn("token budget auto-paused at limit",
			"budget", updated.ID, "period", updated.Period,
			"tokensUsed", updated.TokensUsed, "tokenLimit", updated.TokenLimit)
	}
	util := utilizationPercent(updated)
	fired := make(map[int]bool, len(updated.AlertsFired))
	for _, t := range updated.AlertsFired {
		fired[t] = true
	}
	for _, threshold := range domain.AlertThresholds {
		if util < threshold || fired[threshold] {
			continue
		}
		if err := s.store.MarkBudgetAlert(updated.ID, threshold); err != nil {
			slog.Error("budget alert mark failed", "budget", updated.ID, "threshold", threshold, "err", err)
			continue
		}
		slog.Warn("token budget alert threshold crossed",
			"budget", updated.ID, "period", updated.Period,
			"threshold", threshold, "operation", operation)
	}
}

func utilizationPercent(b domain.TokenBudget) int {
	var tokenPct, costPct int
	if b.TokenLimit > 0 {
		tokenPct = int(b.TokensUsed * 100 / b.TokenLimit)
	}
	if b.CostLimit > 0 {
		costPct = int(b.CostUsed * 100 / b.CostLimit)
	}
	if costPct > tokenPct {
		return costPct
	}
	return tokenPct
}
