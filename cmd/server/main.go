package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go-wiki-engine/internal/auth"
	"go-wiki-engine/internal/cache"
	"go-wiki-engine/internal/config"
	"go-wiki-engine/internal/convert"
	"go-wiki-engine/internal/data"
	"go-wiki-engine/internal/events"
	"go-wiki-engine/internal/handler"
	"go-wiki-engine/internal/logger"
	"go-wiki-engine/internal/middleware"
	"go-wiki-engine/internal/render"
	"go-wiki-engine/internal/search"
	"go-wiki-engine/internal/service"
	"go-wiki-engine/internal/session"
	"go-wiki-engine/internal/storage"
	"go-wiki-engine/internal/tree"
)

func main() {
	// --- Configuration Loading ---
	cfg, err := config.LoadConfig()
	if err != nil {
		// Use fmt.Printf here because the logger is not yet initialized.
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Initialization ---
	log := logger.New(cfg.Log)

	// --- Pre-flight Checks ---
	if cfg.Session.SecretKey == "" || cfg.Session.SecretKey == "CHANGE_ME_IN_PRODUCTION_SECRET!!" {
		log.Fatal(errors.New("session secret key not set"), "Please set a secure WIKI_SESSION_SECRETKEY environment variable.")
	}

	// --- Database Initialization and Migration ---
	log.Info("Applying database migrations...")
	if err := data.ApplyMigrations(cfg.DB.Driver, cfg.DB.DSN, filepath.Join("migrations", cfg.DB.Driver)); err != nil {
		log.Fatal(err, "Failed to apply migrations")
	}
	log.Info("Migrations applied successfully.")

	log.Info("Connecting to the database...")
	db, err := data.NewDB(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()
	log.Info("Database connection successful.")

	// --- Session Management Setup ---
	sessionManager := session.New(db, cfg.DB.Driver, cfg.Session, cfg.Server.TLS.Enabled)

	// --- Authentication and Authorization Setup ---
	log.Info("Initializing authentication and authorization...")
	authenticator, err := auth.NewAuthenticator(context.Background(), &cfg.OIDC)
	if err != nil {
		log.Fatal(err, "Failed to initialize authenticator")
	}
	enforcer, err := auth.NewEnforcer(cfg.DB.Driver, cfg.DB.DSN, "auth_model.conf")
	if err != nil {
		log.Fatal(err, "Failed to initialize enforcer")
	}
	auth.SeedDefaultPolicies(enforcer, log)
	checker := auth.NewCasbinChecker(enforcer)
	log.Info("Auth components initialized and policies seeded.")

	// --- Render Cache Initialization ---
	log.Info("Initializing render cache...")
	var store cache.ByteStore
	switch cfg.Cache.Store {
	case "sqlite":
		store, err = cache.NewSQLiteStore(cfg.Cache.Path)
	default:
		store, err = cache.NewFSStore(cfg.Cache.Path)
	}
	if err != nil {
		log.Fatal(err, "Failed to initialize cache store")
	}
	bus := events.NewMemoryBus()
	renderCache := cache.New(store, bus, log)
	defer renderCache.Close()
	log.Info("Render cache initialized.")

	// --- Repositories ---
	pageRepository := data.NewSQLPageRepository(db)
	treeRepository := data.NewSQLTreeRepository(db)
	historyRepository := data.NewSQLHistoryRepository(db)
	linkRepository := data.NewSQLLinkRepository(db)
	tagRepository := data.NewSQLTagRepository(db)

	// --- Tree Builder ---
	builder, err := tree.NewBuilder(context.Background(), pageRepository, treeRepository, log)
	if err != nil {
		log.Fatal(err, "Failed to initialize tree builder")
	}

	// --- Render Pipeline and Scheduler ---
	pipeline := render.NewPipeline()
	runner := render.NewRunner(pipeline, pageRepository, linkRepository, log)
	scheduler := render.NewScheduler(cfg.Renderer.Workers, runner.Run, log)
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	scheduler.Start(schedulerCtx)
	defer stopScheduler()
	defer scheduler.Stop()

	// --- Page Service ---
	pageService := service.NewPageService(service.Deps{
		Pages:     pageRepository,
		History:   historyRepository,
		Tags:      tagRepository,
		Links:     linkRepository,
		Builder:   builder,
		Cache:     renderCache,
		Renderer:  scheduler,
		Converter: convert.New(),
		Search:    search.NewLogEngine(log),
		Storage:   storage.NewLogConnector(log),
		Access:    checker,
		Log:       log,
	})

	// --- Handlers and Router ---
	pageHandler := handler.NewPageHandler(pageService, log)
	authHandler := handler.NewAuthHandler(authenticator, sessionManager)
	identity := middleware.Identity(sessionManager)
	errorMiddleware := middleware.Error(log)
	router := handler.NewRouter(pageHandler, authHandler, sessionManager, identity, errorMiddleware)

	// --- Server Initialization and Graceful Shutdown ---
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		if cfg.Server.TLS.Enabled {
			log.Info(fmt.Sprintf("Starting HTTPS server on %s", server.Addr))
			if err := server.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTPS server")
			}
		} else {
			log.Info(fmt.Sprintf("Starting HTTP server on %s", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal(err, "Could not start HTTP server")
			}
		}
	}()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Warn("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal(err, "Server forced to shutdown")
	}
	log.Info("Server exiting")
}
