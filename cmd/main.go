package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bonus-hunt/internal/auth"
	"bonus-hunt/internal/broadcast"
	"bonus-hunt/internal/config"
	"bonus-hunt/internal/database"
	"bonus-hunt/internal/handlers"
	"bonus-hunt/internal/repository"
	"bonus-hunt/internal/services"
	"bonus-hunt/internal/widget"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", "error", err)
	}

	logger := newLogger(cfg.App.LogLevel)
	log.SetDefault(logger)

	if logger.GetLevel() > log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	// Run migrations
	if err := database.AutoMigrate(database.GetDB()); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	broadcaster := broadcast.New(logger, broadcast.WithDeliveryTimeout(cfg.Widget.DeliveryTimeout))
	defer broadcaster.Close()

	repo := repository.NewRepository(database.GetDB())

	// The shared fetcher sits between the service and the broadcaster so a
	// committed change invalidates in-flight widget reads before any
	// subscriber is told to reload.
	var fetcher *widget.SharedFetcher
	huntService := services.NewHuntService(repo, services.NotifierFunc(func(huntID uuid.UUID) int {
		return fetcher.Notify(huntID)
	}), logger, services.HuntOptions{
		AllowSlotsWhileOpening: cfg.Hunt.AllowSlotsWhileOpening,
	})
	fetcher = widget.NewSharedFetcher(huntService, broadcaster)

	// Initialize handlers
	huntHandler := handlers.NewHuntHandler(huntService, cfg.Server.PublicBaseURL, logger)
	widgetHandler := handlers.NewWidgetHandler(fetcher, broadcaster, logger, handlers.WidgetOptions{
		ResyncInterval: cfg.Widget.ResyncInterval,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	router := handlers.NewRouter(handlers.RouterConfig{
		Hunts:          huntHandler,
		Widget:         widgetHandler,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	srv.RegisterOnShutdown(widgetHandler.Close)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", "port", cfg.Server.Port, "widget", cfg.Server.PublicBaseURL+"/widget/")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Streams end when their request contexts do; the broadcaster is
		// closed by the deferred call once every handler has returned.
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		broadcaster.Close()
		os.Exit(1)
	}

	logger.Info("Server exited")
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}
