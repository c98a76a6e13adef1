package app

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
	"github.com/yungbote/hermes-backend/internal/utils"
)

type Config struct {
	SessionTTL     time.Duration
	SessionSliding bool

	YouTubeAPIKeys            []string
	YouTubeDailyQuota         int64
	YouTubeDowngradeThreshold float64
	MaxQueriesPerSearch       int
	MaxResultsPerQuery        int
	EnrichTopN                int

	CohereAPIKey     string
	CohereBaseURL    string
	CohereChatModel  string
	CohereEmbedModel string

	LLMDailyTokenBudget  int64
	LLMPerRequestBudget  int64
	LLMFallbackThreshold float64

	CacheL2TTL time.Duration

	SweepInterval time.Duration

	Features services.FeatureConfig
}

// fileConfig mirrors the optional HERMES_CONFIG YAML file. Pointers
// distinguish an absent key from an explicit zero, so a file can turn
// sliding expiration off without also zeroing every unset number.
type fileConfig struct {
	Session struct {
		TTLMinutes        *int  `yaml:"ttl-minutes"`
		SlidingExpiration *bool `yaml:"sliding-expiration"`
	} `yaml:"session"`
	YouTube struct {
		APIKeys             []string `yaml:"api-keys"`
		DailyQuota          *int64   `yaml:"daily-quota"`
		DowngradeThreshold  *float64 `yaml:"downgrade-threshold"`
		MaxQueriesPerSearch *int     `yaml:"max-queries-per-search"`
		MaxResultsPerQuery  *int     `yaml:"max-results-per-query"`
		EnrichTopN          *int     `yaml:"enrich-top-n"`
	} `yaml:"youtube"`
	Cohere struct {
		APIKey     string `yaml:"api-key"`
		BaseURL    string `yaml:"base-url"`
		ChatModel  string `yaml:"chat-model"`
		EmbedModel string `yaml:"embed-model"`
	} `yaml:"cohere"`
	LLM struct {
		DailyTokenBudget  *int64   `yaml:"daily-token-budget"`
		PerRequestBudget  *int64   `yaml:"per-request-budget"`
		FallbackThreshold *float64 `yaml:"fallback-threshold"`
	} `yaml:"llm"`
	Cache struct {
		L2TTLHours *int `yaml:"l2-ttl-hours"`
	} `yaml:"cache"`
	Sweep struct {
		IntervalMinutes *int `yaml:"interval-minutes"`
	} `yaml:"sweep"`
	Features struct {
		RedditEnrichment    *bool `yaml:"reddit-enrichment"`
		InstagramEnrichment *bool `yaml:"instagram-enrichment"`
		TwitterEnrichment   *bool `yaml:"twitter-enrichment"`
		TwitchEnrichment    *bool `yaml:"twitch-enrichment"`
	} `yaml:"features"`
}

// LoadConfig resolves every tunable from, in increasing precedence:
// built-in default, HERMES_CONFIG YAML file, environment variable.
func LoadConfig(log *logger.Logger) Config {
	file := loadFileConfig(log)

	sessionTTLMinutes := utils.GetEnvAsInt("SESSION_TTL_MINUTES",
		intFromFile(file.Session.TTLMinutes, 30), log)
	sessionSliding := utils.GetEnvAsBool("SESSION_SLIDING_EXPIRATION",
		boolFromFile(file.Session.SlidingExpiration, true), log)

	apiKeys := utils.GetEnvAsSlice("YOUTUBE_API_KEYS", file.YouTube.APIKeys, log)
	dailyQuota := utils.GetEnvAsInt64("YOUTUBE_DAILY_QUOTA",
		int64FromFile(file.YouTube.DailyQuota, 10000), log)
	downgradeThreshold := utils.GetEnvAsFloat("YOUTUBE_DOWNGRADE_THRESHOLD",
		floatFromFile(file.YouTube.DowngradeThreshold, 0.8), log)
	maxQueries := utils.GetEnvAsInt("YOUTUBE_MAX_QUERIES_PER_SEARCH",
		intFromFile(file.YouTube.MaxQueriesPerSearch, 5), log)
	maxResults := utils.GetEnvAsInt("YOUTUBE_MAX_RESULTS_PER_QUERY",
		intFromFile(file.YouTube.MaxResultsPerQuery, 50), log)
	enrichTopN := utils.GetEnvAsInt("YOUTUBE_ENRICH_TOP_N",
		intFromFile(file.YouTube.EnrichTopN, 20), log)

	cohereKey := utils.GetEnv("COHERE_API_KEY", file.Cohere.APIKey, log)
	cohereBaseURL := utils.GetEnv("COHERE_BASE_URL", file.Cohere.BaseURL, log)
	cohereChatModel := utils.GetEnv("COHERE_CHAT_MODEL", file.Cohere.ChatModel, log)
	cohereEmbedModel := utils.GetEnv("COHERE_EMBED_MODEL", file.Cohere.EmbedModel, log)

	dailyBudget := utils.GetEnvAsInt64("LLM_DAILY_TOKEN_BUDGET",
		int64FromFile(file.LLM.DailyTokenBudget, 1000000), log)
	perRequestBudget := utils.GetEnvAsInt64("LLM_PER_REQUEST_BUDGET",
		int64FromFile(file.LLM.PerRequestBudget, 2000), log)
	fallbackThreshold := utils.GetEnvAsFloat("LLM_FALLBACK_THRESHOLD",
		floatFromFile(file.LLM.FallbackThreshold, 0.9), log)

	l2TTLHours := utils.GetEnvAsInt("CACHE_L2_TTL_HOURS",
		intFromFile(file.Cache.L2TTLHours, 24), log)

	sweepMinutes := utils.GetEnvAsInt("SWEEP_INTERVAL_MINUTES",
		intFromFile(file.Sweep.IntervalMinutes, 5), log)

	features := services.FeatureConfig{
		RedditClientID:     utils.GetEnv("REDDIT_CLIENT_ID", "", log),
		RedditClientSecret: utils.GetEnv("REDDIT_CLIENT_SECRET", "", log),
		RedditEnabled: utils.GetEnvAsBool("FEATURE_REDDIT_ENRICHMENT",
			boolFromFile(file.Features.RedditEnrichment, false), log),
		InstagramAccessToken: utils.GetEnv("INSTAGRAM_ACCESS_TOKEN", "", log),
		InstagramEnabled: utils.GetEnvAsBool("FEATURE_INSTAGRAM_ENRICHMENT",
			boolFromFile(file.Features.InstagramEnrichment, false), log),
		TwitterBearerToken: utils.GetEnv("TWITTER_BEARER_TOKEN", "", log),
		TwitterEnabled: utils.GetEnvAsBool("FEATURE_TWITTER_ENRICHMENT",
			boolFromFile(file.Features.TwitterEnrichment, false), log),
		TwitchClientID:     utils.GetEnv("TWITCH_CLIENT_ID", "", log),
		TwitchClientSecret: utils.GetEnv("TWITCH_CLIENT_SECRET", "", log),
		TwitchEnabled: utils.GetEnvAsBool("FEATURE_TWITCH_ENRICHMENT",
			boolFromFile(file.Features.TwitchEnrichment, false), log),
	}

	return Config{
		SessionTTL:     time.Duration(sessionTTLMinutes) * time.Minute,
		SessionSliding: sessionSliding,

		YouTubeAPIKeys:            apiKeys,
		YouTubeDailyQuota:         dailyQuota,
		YouTubeDowngradeThreshold: downgradeThreshold,
		MaxQueriesPerSearch:       maxQueries,
		MaxResultsPerQuery:        maxResults,
		EnrichTopN:                enrichTopN,

		CohereAPIKey:     cohereKey,
		CohereBaseURL:    cohereBaseURL,
		CohereChatModel:  cohereChatModel,
		CohereEmbedModel: cohereEmbedModel,

		LLMDailyTokenBudget:  dailyBudget,
		LLMPerRequestBudget:  perRequestBudget,
		LLMFallbackThreshold: fallbackThreshold,

		CacheL2TTL: time.Duration(l2TTLHours) * time.Hour,

		SweepInterval: time.Duration(sweepMinutes) * time.Minute,

		Features: features,
	}
}

func loadFileConfig(log *logger.Logger) fileConfig {
	var cfg fileConfig
	path := utils.GetEnv("HERMES_CONFIG", "", log)
	if path == "" {
		return cfg
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn("Config file unreadable, using env and defaults", "path", path, "error", err)
		return cfg
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Warn("Config file unparseable, using env and defaults", "path", path, "error", err)
		return fileConfig{}
	}
	log.Info("Loaded config file", "path", path)
	return cfg
}

func intFromFile(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func int64FromFile(v *int64, fallback int64) int64 {
	if v != nil {
		return *v
	}
	return fallback
}

func floatFromFile(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func boolFromFile(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}
