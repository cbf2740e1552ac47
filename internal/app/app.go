package app

import (
	"net/http"

	"club-planner-go/internal/config"
	"club-planner-go/internal/db"
	directorydomain "club-planner-go/internal/domain/directory"
	scheduledomain "club-planner-go/internal/domain/schedule"
	"club-planner-go/internal/notify"
	directoryrepo "club-planner-go/internal/repository/directory"
	"club-planner-go/internal/repository/inmemory"
	schedulerepo "club-planner-go/internal/repository/schedule"
	"club-planner-go/internal/transport/httpserver"
	"club-planner-go/internal/transport/httpserver/handler"
	"club-planner-go/pkg/logger"
	"gorm.io/gorm"
)

type App struct {
	cfg        config.Config
	httpServer *http.Server
	db         *gorm.DB
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	log.Info("app: initializing database")
	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		return nil, err
	}

	log.Info("app: applying migrations")
	if err := db.Migrate(dbConn); err != nil {
		return nil, err
	}

	scheduleRepo := schedulerepo.NewPostgres(dbConn)
	syncEngine := scheduledomain.NewRosterSyncEngine(scheduleRepo, log)
	dispatcher := notify.NewLogDispatcher(log)
	scheduleService := scheduledomain.NewService(scheduleRepo, syncEngine, dispatcher, log)

	directoryRepo := directoryrepo.NewPostgres(dbConn)
	directoryService := directorydomain.NewService(directoryRepo, inmemory.NewNameCache(), cfg.Directory.NameCacheTTL)

	log.Info("app: initializing router")
	handlers := handler.New(scheduleService, directoryService, cfg.CalendarFeed, log)
	router := httpserver.NewRouter(cfg, handlers, directoryService, log)

	log.Info("app: initializing http server")
	srv := httpserver.New(cfg, router)

	return &App{
		cfg:        cfg,
		httpServer: srv,
		db:         dbConn,
	}, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
