package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/db"
	"github.com/yungbote/hermes-backend/internal/observability"
	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/utils"
)

// startupReprocessLimit caps the best-effort re-ingestion pass that
// runs once when the app starts, picking up creators deferred by an
// earlier budget or key outage.
const startupReprocessLimit = 50

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading configuration...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "hermes-backend",
		Environment: utils.GetEnv("APP_ENV", logMode, log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	database, err := db.NewService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := database.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	gdb := database.DB()

	clientset, err := wireClients(cfg, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	reposet := wireRepos(gdb, log)
	serviceset := wireServices(gdb, log, cfg, reposet, clientset)
	handlerset := wireHandlers(log, serviceset)
	router := wireRouter(log, handlerset)

	return &App{
		Log:          log,
		DB:           gdb,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clientset,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background workers: the TTL sweeper and a single
// best-effort pass over creators whose ingestion was deferred.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.Sweeper != nil {
		a.Services.Sweeper.Start(ctx)
	}

	if a.Services.Ingestion != nil {
		go func() {
			reprocessCtx, done := context.WithTimeout(ctx, 2*time.Minute)
			defer done()
			outcome, err := a.Services.Ingestion.ReprocessPending(reprocessCtx, startupReprocessLimit)
			if err != nil {
				a.Log.Warn("Startup ingestion reprocess failed", "error", err)
				return
			}
			if outcome.Total() > 0 {
				a.Log.Info("Startup ingestion reprocess finished",
					"ingested", outcome.Ingested,
					"touched", outcome.Touched,
					"deferred", outcome.Deferred,
					"failed", outcome.Failed)
			}
		}()
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("OTel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
