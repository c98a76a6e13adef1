package services

import (
	"strings"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

// FeatureState is the three-state enablement model. A feature needs
// both credentials and an explicit flag to become ENABLED; credentials
// alone leave it CONFIGURED, ready to switch on without a deploy.
type FeatureState string

const (
	FeatureDisabled   FeatureState = "DISABLED"
	FeatureConfigured FeatureState = "CONFIGURED"
	FeatureEnabled    FeatureState = "ENABLED"
)

// Active reports whether the feature should execute. Only ENABLED
// runs; CONFIGURED stays dormant.
func (s FeatureState) Active() bool { return s == FeatureEnabled }

// HasCredentials reports whether credentials are present (CONFIGURED
// or ENABLED).
func (s FeatureState) HasCredentials() bool {
	return s == FeatureConfigured || s == FeatureEnabled
}

// ResolveFeatureState applies the enablement rule: no credentials is
// always DISABLED, credentials plus flag is ENABLED, credentials
// without flag is CONFIGURED.
func ResolveFeatureState(hasCredentials, flagEnabled bool) FeatureState {
	if !hasCredentials {
		return FeatureDisabled
	}
	if flagEnabled {
		return FeatureEnabled
	}
	return FeatureConfigured
}

type FeatureFlag string

const (
	// FeatureYouTubeCore is the base platform and cannot be disabled.
	FeatureYouTubeCore FeatureFlag = "YOUTUBE_CORE"

	FeatureRedditEnrichment    FeatureFlag = "REDDIT_ENRICHMENT"
	FeatureInstagramEnrichment FeatureFlag = "INSTAGRAM_ENRICHMENT"
	FeatureTwitterEnrichment   FeatureFlag = "TWITTER_ENRICHMENT"
	FeatureTwitchEnrichment    FeatureFlag = "TWITCH_ENRICHMENT"
)

// featureOrder fixes iteration order so snapshots and startup logs are
// deterministic.
var featureOrder = []FeatureFlag{
	FeatureYouTubeCore,
	FeatureRedditEnrichment,
	FeatureInstagramEnrichment,
	FeatureTwitterEnrichment,
	FeatureTwitchEnrichment,
}

// FeatureConfig carries the credential material and explicit flags the
// registry resolves from, populated from app config at wire time.
type FeatureConfig struct {
	RedditClientID       string
	RedditClientSecret   string
	RedditEnabled        bool
	InstagramAccessToken string
	InstagramEnabled     bool
	TwitterBearerToken   string
	TwitterEnabled       bool
	TwitchClientID       string
	TwitchClientSecret   string
	TwitchEnabled        bool
}

type FeatureSummary struct {
	Enabled    int `json:"enabled"`
	Configured int `json:"configured"`
	Disabled   int `json:"disabled"`
}

type FeatureDetail struct {
	State          FeatureState `json:"state"`
	Active         bool         `json:"active"`
	HasCredentials bool         `json:"hasCredentials"`
}

// FeatureSnapshot is the observability view served by the admin API.
type FeatureSnapshot struct {
	Summary         FeatureSummary           `json:"summary"`
	Features        map[string]FeatureDetail `json:"features"`
	EnabledFeatures string                   `json:"enabledFeatures"`
}

// FeatureRegistry is the single source of truth for feature
// enablement. States are resolved once at construction and never
// change at runtime.
type FeatureRegistry interface {
	State(flag FeatureFlag) FeatureState
	IsEnabled(flag FeatureFlag) bool
	Snapshot() FeatureSnapshot
}

type featureRegistry struct {
	log    *logger.Logger
	states map[FeatureFlag]FeatureState
}

func NewFeatureRegistry(cfg FeatureConfig, baseLog *logger.Logger) FeatureRegistry {
	registryLog := baseLog.With("service", "FeatureRegistry")

	states := map[FeatureFlag]FeatureState{
		FeatureYouTubeCore: FeatureEnabled,
		FeatureRedditEnrichment: ResolveFeatureState(
			hasValue(cfg.RedditClientID) && hasValue(cfg.RedditClientSecret),
			cfg.RedditEnabled,
		),
		FeatureInstagramEnrichment: ResolveFeatureState(
			hasValue(cfg.InstagramAccessToken),
			cfg.InstagramEnabled,
		),
		FeatureTwitterEnrichment: ResolveFeatureState(
			hasValue(cfg.TwitterBearerToken),
			cfg.TwitterEnabled,
		),
		FeatureTwitchEnrichment: ResolveFeatureState(
			hasValue(cfg.TwitchClientID) && hasValue(cfg.TwitchClientSecret),
			cfg.TwitchEnabled,
		),
	}

	for _, flag := range featureOrder {
		registryLog.Info("Feature resolved", "feature", string(flag), "state", string(states[flag]))
	}

	return &featureRegistry{log: registryLog, states: states}
}

func (fr *featureRegistry) State(flag FeatureFlag) FeatureState {
	if state, ok := fr.states[flag]; ok {
		return state
	}
	return FeatureDisabled
}

func (fr *featureRegistry) IsEnabled(flag FeatureFlag) bool {
	return fr.State(flag).Active()
}

func (fr *featureRegistry) Snapshot() FeatureSnapshot {
	features := make(map[string]FeatureDetail, len(featureOrder))
	var summary FeatureSummary
	enabled := make([]string, 0, len(featureOrder))

	for _, flag := range featureOrder {
		state := fr.State(flag)
		features[string(flag)] = FeatureDetail{
			State:          state,
			Active:         state.Active(),
			HasCredentials: state.HasCredentials(),
		}
		switch state {
		case FeatureEnabled:
			summary.Enabled++
			enabled = append(enabled, string(flag))
		case FeatureConfigured:
			summary.Configured++
		default:
			summary.Disabled++
		}
	}

	return FeatureSnapshot{
		Summary:         summary,
		Features:        features,
		EnabledFeatures: strings.Join(enabled, ", "),
	}
}

func hasValue(s string) bool { return strings.TrimSpace(s) != "" }
