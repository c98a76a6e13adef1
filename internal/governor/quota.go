package governor

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

// YouTube Data API quota prices.
const (
	SearchListCost          = 100
	ChannelsListCostPerCall = 1
	channelsListBatchSize   = 50
	criticalQuotaRatio      = 0.9
	defaultQuotaMaxQueries  = 5
	reducedQuotaMaxQueries  = 3
	criticalQuotaMaxQueries = 2
	defaultQuotaMaxResults  = 50
	criticalQuotaMaxResults = 20
)

type QuotaAction string

const (
	QuotaAllow         QuotaAction = "ALLOW"
	QuotaReduceQueries QuotaAction = "REDUCE_QUERIES"
	QuotaReduceResults QuotaAction = "REDUCE_RESULTS"
	QuotaReject        QuotaAction = "REJECT"
)

type QuotaDecision struct {
	Action       QuotaAction `json:"action"`
	CurrentUsage int64       `json:"currentUsage"`
	DailyLimit   int64       `json:"dailyLimit"`
	Reason       string      `json:"reason"`
}

func (d QuotaDecision) Allowed() bool { return d.Action != QuotaReject }

// MaxQueries returns the query fan-out cap for this decision.
func (d QuotaDecision) MaxQueries() int {
	switch d.Action {
	case QuotaAllow:
		return defaultQuotaMaxQueries
	case QuotaReduceQueries:
		return reducedQuotaMaxQueries
	case QuotaReduceResults:
		return criticalQuotaMaxQueries
	default:
		return 0
	}
}

// MaxResults returns the per-query result cap for this decision.
func (d QuotaDecision) MaxResults() int {
	switch d.Action {
	case QuotaAllow, QuotaReduceQueries:
		return defaultQuotaMaxResults
	case QuotaReduceResults:
		return criticalQuotaMaxResults
	default:
		return 0
	}
}

type QuotaStats struct {
	UnitsUsed      int64   `json:"unitsUsed"`
	DailyLimit     int64   `json:"dailyLimit"`
	UsageRatio     float64 `json:"usageRatio"`
	RemainingUnits int64   `json:"remainingUnits"`
	Date           string  `json:"date"`
}

// QuotaGovernor tracks daily YouTube API unit spend and degrades the
// search fan-out before the hard limit is hit.
type QuotaGovernor interface {
	CheckQuota(estimatedCost int64) QuotaDecision
	EstimateCost(queryCount, maxResultsPerQuery int) int64
	RecordUsage(cost int64)
	Stats() QuotaStats
}

type quotaGovernor struct {
	log                *logger.Logger
	dailyQuota         int64
	downgradeThreshold float64
	usage              atomic.Int64
	day                atomic.Pointer[string]
	now                func() time.Time
}

func NewQuotaGovernor(dailyQuota int64, downgradeThreshold float64, baseLog *logger.Logger) QuotaGovernor {
	g := &quotaGovernor{
		log:                baseLog.With("governor", "QuotaGovernor"),
		dailyQuota:         dailyQuota,
		downgradeThreshold: downgradeThreshold,
		now:                time.Now,
	}
	day := g.now().Format("2006-01-02")
	g.day.Store(&day)
	return g
}

func (g *quotaGovernor) CheckQuota(estimatedCost int64) QuotaDecision {
	g.resetIfNewDay()

	current := g.usage.Load()
	usageRatio := float64(current) / float64(g.dailyQuota)

	if current+estimatedCost > g.dailyQuota {
		g.log.Warn("Daily quota exhausted", "current", current, "estimated", estimatedCost, "daily_quota", g.dailyQuota)
		return QuotaDecision{Action: QuotaReject, CurrentUsage: current, DailyLimit: g.dailyQuota, Reason: "Daily quota exhausted"}
	}
	if usageRatio >= criticalQuotaRatio {
		g.log.Info("Critical quota level", "usage_ratio", usageRatio)
		return QuotaDecision{Action: QuotaReduceResults, CurrentUsage: current, DailyLimit: g.dailyQuota, Reason: "Critical quota - reduce results to 20"}
	}
	if usageRatio >= g.downgradeThreshold {
		g.log.Info("Above downgrade threshold", "usage_ratio", usageRatio)
		return QuotaDecision{Action: QuotaReduceQueries, CurrentUsage: current, DailyLimit: g.dailyQuota, Reason: "Reducing queries to preserve quota"}
	}
	return QuotaDecision{Action: QuotaAllow, CurrentUsage: current, DailyLimit: g.dailyQuota, Reason: "Within quota"}
}

// EstimateCost prices a search fan-out: one search.list per query plus
// channels.list batches for the worst-case channel count.
func (g *quotaGovernor) EstimateCost(queryCount, maxResultsPerQuery int) int64 {
	searchCost := int64(queryCount) * SearchListCost
	totalChannels := queryCount * maxResultsPerQuery
	channelBatches := int64(math.Ceil(float64(totalChannels) / float64(channelsListBatchSize)))
	return searchCost + channelBatches*ChannelsListCostPerCall
}

func (g *quotaGovernor) RecordUsage(cost int64) {
	g.resetIfNewDay()
	total := g.usage.Add(cost)
	g.log.Debug("Recorded quota usage", "units", cost, "daily_total", total, "daily_quota", g.dailyQuota)
}

func (g *quotaGovernor) Stats() QuotaStats {
	g.resetIfNewDay()
	current := g.usage.Load()
	return QuotaStats{
		UnitsUsed:      current,
		DailyLimit:     g.dailyQuota,
		UsageRatio:     float64(current) / float64(g.dailyQuota),
		RemainingUnits: g.dailyQuota - current,
		Date:           *g.day.Load(),
	}
}

func (g *quotaGovernor) resetIfNewDay() {
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
