package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/repos"
)

type Repos struct {
	Creators        repos.CreatorRepo
	Sessions        repos.SearchSessionRepo
	SessionResults  repos.SessionResultRepo
	QueryCache      repos.QueryCacheRepo
	QueryEmbeddings repos.QueryEmbeddingRepo
}

func wireRepos(gdb *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Creators:        repos.NewCreatorRepo(gdb, log),
		Sessions:        repos.NewSearchSessionRepo(gdb, log),
		SessionResults:  repos.NewSessionResultRepo(gdb, log),
		QueryCache:      repos.NewQueryCacheRepo(gdb, log),
		QueryEmbeddings: repos.NewQueryEmbeddingRepo(gdb, log),
	}
}
