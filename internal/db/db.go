package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
	"github.com/yungbote/helpdesk-backend/internal/utils"
)

type Config struct {
	Driver string
	DSN    string
}

func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		Driver: utils.GetEnv("DB_DRIVER", "postgres", log),
		DSN:    utils.GetEnv("DB_DSN", "host=localhost user=postgres password=postgres dbname=helpdesk port=5432 sslmode=disable", log),
	}
}

type DatabaseService interface {
	DB() *gorm.DB
	AutoMigrateAll() error
	Close() error
}

type databaseService struct {
	log *logger.Logger
	db  *gorm.DB
}

// New opens the configured database. Postgres is the production driver;
// sqlite backs local development and tests without a server.
func New(log *logger.Logger, cfg Config) (DatabaseService, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}
	log.Info("database connected", "driver", cfg.Driver)
	return &databaseService{log: log.With("service", "DatabaseService"), db: gdb}, nil
}

func (s *databaseService) DB() *gorm.DB {
	return s.db
}

func (s *databaseService) AutoMigrateAll() error {
	if err := s.db.AutoMigrate(
		&types.Department{},
		&types.Ticket{},
		&types.TicketMessage{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	s.log.Info("database migrated")
	return nil
}

func (s *databaseService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
