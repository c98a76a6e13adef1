package app

import (
	"fmt"

	"github.com/yungbote/hermes-backend/internal/clients/cohere"
	"github.com/yungbote/hermes-backend/internal/clients/youtube"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
)

type Clients struct {
	Cohere  cohere.Client
	YouTube youtube.Client
}

// wireClients builds the external API clients. Missing credentials do
// not fail startup: an unconfigured client reports Configured() false
// and the services degrade around it.
func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	co, err := cohere.NewClient(cohere.Config{
		APIKey:     cfg.CohereAPIKey,
		BaseURL:    cfg.CohereBaseURL,
		ChatModel:  cfg.CohereChatModel,
		EmbedModel: cfg.CohereEmbedModel,
	}, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init cohere client: %w", err)
	}

	yt, err := youtube.NewClient(youtube.Config{
		APIKeys: cfg.YouTubeAPIKeys,
	}, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init youtube client: %w", err)
	}

	return Clients{Cohere: co, YouTube: yt}, nil
}
