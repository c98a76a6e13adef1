package jobs

import (
	"context"
	"time"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/services"
)

const defaultSweepInterval = 5 * time.Minute

// sweepTimeout bounds one pass so a wedged database cannot pile up
// overlapping sweeps.
const sweepTimeout = time.Minute

// Sweeper is the TTL housekeeper. Every interval it deletes expired
// search sessions (results cascade with them), expired query cache
// rows, and expired query embeddings. Reads never depend on it; it
// only reclaims rows that lookups already treat as dead.
type Sweeper struct {
	log        *logger.Logger
	sessions   services.SessionService
	queryCache services.QueryCacheService
	vectors    services.VectorScoringService
	interval   time.Duration
}

func NewSweeper(sessions services.SessionService, queryCache services.QueryCacheService, vectors services.VectorScoringService, interval time.Duration, baseLog *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{
		log:        baseLog.With("component", "Sweeper"),
		sessions:   sessions,
		queryCache: queryCache,
		vectors:    vectors,
		interval:   interval,
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) sweep(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, sweepTimeout)
	defer cancel()

	outcome, err := s.sessions.SweepExpired(ctx)
	if err != nil {
		s.log.Warn("session sweep failed", "error", err)
	} else if outcome.SessionsDeleted > 0 {
		s.log.Info("expired sessions swept",
			"sessions", outcome.SessionsDeleted,
			"results", outcome.ResultsDeleted)
	}

	swept, err := s.queryCache.SweepExpired(ctx)
	if err != nil {
		s.log.Warn("query cache sweep failed", "error", err)
	} else if swept > 0 {
		s.log.Info("expired query cache rows swept", "rows", swept)
	}

	embeddings, err := s.vectors.SweepExpired(ctx)
	if err != nil {
		s.log.Warn("embedding sweep failed", "error", err)
	} else if embeddings > 0 {
		s.log.Info("expired query embeddings swept", "rows", embeddings)
	}
}
