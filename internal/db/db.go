package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/hermes-backend/internal/pkg/logger"
	"github.com/yungbote/hermes-backend/internal/types"
	"github.com/yungbote/hermes-backend/internal/utils"
)

// Service owns the database handle. Postgres is the production engine;
// without DATABASE_URL the service falls back to a local sqlite file so
// the stack boots with zero configuration.
type Service struct {
	db      *gorm.DB
	log     *logger.Logger
	dialect string
}

func NewService(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DatabaseService")

	databaseURL := utils.GetEnv("DATABASE_URL", "", log)
	if databaseURL != "" {
		serviceLog.Info("Connecting to Postgres...")
		gdb, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
		})
		if err != nil {
			serviceLog.Error("Failed to connect to Postgres", "error", err)
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &Service{db: gdb, log: serviceLog, dialect: "postgres"}, nil
	}

	sqlitePath := utils.GetEnv("SQLITE_PATH", "hermes.db", log)
	serviceLog.Warn("DATABASE_URL not set, falling back to sqlite", "path", sqlitePath)
	gdb, err := gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{TranslateError: true})
	if err != nil {
		serviceLog.Error("Failed to open sqlite database", "error", err)
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &Service{db: gdb, log: serviceLog, dialect: "sqlite"}, nil
}

// NewTestService opens an isolated in-memory database. The name keys
// the shared cache, so each test gets its own schema.
func NewTestService(name string, log *logger.Logger) (*Service, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory sqlite: %w", err)
	}
	return &Service{db: gdb, log: log.With("service", "DatabaseService"), dialect: "sqlite"}, nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&types.Creator{},
		&types.SearchSession{},
		&types.SearchSessionResult{},
		&types.QueryCache{},
		&types.QueryEmbedding{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}

	if s.dialect == "postgres" {
		s.log.Info("Configuring foreign key relationships...")
		if err := s.db.Exec(`
			ALTER TABLE "search_session_result"
			DROP CONSTRAINT IF EXISTS "fk_session_result_session_id"
		`).Error; err != nil {
			return fmt.Errorf("failed to drop fk_session_result_session_id: %w", err)
		}
		if err := s.db.Exec(`
			ALTER TABLE "search_session_result"
			ADD CONSTRAINT "fk_session_result_session_id"
			FOREIGN KEY ("session_id")
			REFERENCES "search_session"("session_id")
			ON DELETE CASCADE
		`).Error; err != nil {
			return fmt.Errorf("failed to add fk_session_result_session_id: %w", err)
		}
	}
	return nil
}

func (s *Service) DB() *gorm.DB    { return s.db }
func (s *Service) Dialect() string { return s.dialect }
