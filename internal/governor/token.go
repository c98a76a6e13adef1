package governor

import (
	"sync/atomic"
	"time"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

// BudgetAction is what the token governor lets a caller do with the
// LLM budget it asked about.
type BudgetAction string

const (
	BudgetAllow          BudgetAction = "ALLOW"
	BudgetEmbeddingsOnly BudgetAction = "EMBEDDINGS_ONLY"
	BudgetFallbackOnly   BudgetAction = "FALLBACK_ONLY"
	BudgetDowngrade      BudgetAction = "DOWNGRADE"
	BudgetReject         BudgetAction = "REJECT"
)

type BudgetDecision struct {
	Action       BudgetAction `json:"action"`
	CurrentUsage int64        `json:"currentUsage"`
	DailyBudget  int64        `json:"dailyBudget"`
	Reason       string       `json:"reason"`
}

// Allowed reports whether full LLM access (chat generation) is granted.
func (d BudgetDecision) Allowed() bool { return d.Action == BudgetAllow }

// CanUseLLM reports whether any LLM call at all may be made; embedding
// calls stay permitted after chat generation has been cut off.
func (d BudgetDecision) CanUseLLM() bool {
	return d.Action == BudgetAllow || d.Action == BudgetEmbeddingsOnly
}

type TokenUsageStats struct {
	TokensUsed      int64   `json:"tokensUsed"`
	DailyBudget     int64   `json:"dailyBudget"`
	UsageRatio      float64 `json:"usageRatio"`
	RemainingBudget int64   `json:"remainingBudget"`
	Date            string  `json:"date"`
}

// TokenGovernor enforces the daily LLM token budget. All state is in
// memory and resets at the first call of a new day.
type TokenGovernor interface {
	CheckBudget(estimatedTokens int64) BudgetDecision
	RecordUsage(tokensUsed int64)
	Stats() TokenUsageStats
}

type tokenGovernor struct {
	log               *logger.Logger
	dailyBudget       int64
	perRequestBudget  int64
	fallbackThreshold float64
	usage             atomic.Int64
	day               atomic.Pointer[string]
	now               func() time.Time
}

func NewTokenGovernor(dailyBudget, perRequestBudget int64, fallbackThreshold float64, baseLog *logger.Logger) TokenGovernor {
	g := &tokenGovernor{
		log:               baseLog.With("governor", "TokenGovernor"),
		dailyBudget:       dailyBudget,
		perRequestBudget:  perRequestBudget,
		fallbackThreshold: fallbackThreshold,
		now:               time.Now,
	}
	day := g.now().Format("2006-01-02")
	g.day.Store(&day)
	return g
}

func (g *tokenGovernor) CheckBudget(estimatedTokens int64) BudgetDecision {
	g.resetIfNewDay()

	current := g.usage.Load()
	usageRatio := float64(current) / float64(g.dailyBudget)

	if estimatedTokens > g.perRequestBudget {
		g.log.Warn("Request exceeds per-request budget", "estimated", estimatedTokens, "per_request_budget", g.perRequestBudget)
		return BudgetDecision{Action: BudgetDowngrade, CurrentUsage: current, DailyBudget: g.dailyBudget, Reason: "Per-request budget exceeded"}
	}
	if current+estimatedTokens > g.dailyBudget {
		g.log.Warn("Daily budget exhausted", "current", current, "estimated", estimatedTokens, "daily_budget", g.dailyBudget)
		return BudgetDecision{Action: BudgetReject, CurrentUsage: current, DailyBudget: g.dailyBudget, Reason: "Daily budget exhausted"}
	}
	if usageRatio >= g.fallbackThreshold {
		g.log.Info("Above fallback threshold", "usage_ratio", usageRatio)
		return BudgetDecision{Action: BudgetFallbackOnly, CurrentUsage: current, DailyBudget: g.dailyBudget, Reason: "Using fallback to preserve budget"}
	}
	if usageRatio >= 0.5 {
		return BudgetDecision{Action: BudgetEmbeddingsOnly, CurrentUsage: current, DailyBudget: g.dailyBudget, Reason: "Cached embeddings only"}
	}
	return BudgetDecision{Action: BudgetAllow, CurrentUsage: current, DailyBudget: g.dailyBudget, Reason: "Within budget"}
}

func (g *tokenGovernor) RecordUsage(tokensUsed int64) {
	g.resetIfNewDay()
	total := g.usage.Add(tokensUsed)
	g.log.Debug("Recorded token usage", "tokens", tokensUsed, "daily_total", total)
}

func (g *tokenGovernor) Stats() TokenUsageStats {
	g.resetIfNewDay()
	current := g.usage.Load()
	return TokenUsageStats{
		TokensUsed:      current,
		DailyBudget:     g.dailyBudget,
		UsageRatio:      float64(current) / float64(g.dailyBudget),
		RemainingBudget: g.dailyBudget - current,
		Date:            *g.day.Load(),
	}
}

// resetIfNewDay swaps the stored date with CAS so exactly one caller
// zeroes the counter at a day boundary.
func (g *tokenGovernor) resetIfNewDay() {
	today := g.now().Format("2006-01-02")
	stored := g.day.Load()
	if *stored == today {
		return
	}
	if g.day.CompareAndSwap(stored, &today) {
		previous := g.usage.Swap(0)
		g.log.Info("New day reset", "previous_day_usage", previous)
	}
}
