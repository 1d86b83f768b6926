package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/db"
	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services

	dbService db.DatabaseService
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

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	dbService, err := db.New(log, db.ConfigFromEnv(log))
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("database automigrate: %w", err)
	}
	theDB := dbService.DB()

	clientset, err := wireClients(log)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reposet.Department.EnsureDefaults(ctx, nil, defaultDepartments()); err != nil {
		log.Sync()
		return nil, fmt.Errorf("seed departments: %w", err)
	}

	serviceset := wireServices(log, cfg, theDB, clientset, reposet)
	handlerset := wireHandlers(log, clientset, serviceset)
	router := wireRouter(log, cfg, handlerset)

	return &App{
		Log:       log,
		DB:        theDB,
		Router:    router,
		Cfg:       cfg,
		Clients:   clientset,
		Repos:     reposet,
		Services:  serviceset,
		dbService: dbService,
	}, nil
}

func defaultDepartments() []*types.Department {
	return []*types.Department{
		{Name: "it_support", NameKZ: "IT қолдау", Keywords: "пароль,vpn,компьютер,принтер,почта,сеть", IsActive: true},
		{Name: "hr", NameKZ: "Кадр қызметі", Keywords: "отпуск,больничный,справка,кадры", IsActive: true},
		{Name: "finance", NameKZ: "Қаржы", Keywords: "зарплата,оплата,счет,аванс", IsActive: true},
		{Name: "admin", NameKZ: "Әкімшілік", Keywords: "пропуск,кабинет,парковка,доступ", IsActive: true},
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting HTTP server", "port", a.Cfg.Port)
	return a.Router.Run(":" + a.Cfg.Port)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Clients.Redis != nil {
		if err := a.Clients.Redis.Close(); err != nil {
			a.Log.Warn("Redis close failed", "error", err)
		}
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("Database close failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
