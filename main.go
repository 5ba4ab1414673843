package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/FACorreiaa/go-trip-studio/app/db"
	appLogger "github.com/FACorreiaa/go-trip-studio/app/logger"
	appMiddleware "github.com/FACorreiaa/go-trip-studio/app/middleware"
	"github.com/FACorreiaa/go-trip-studio/app/observability/metrics"
	"github.com/FACorreiaa/go-trip-studio/app/tracer"
	"github.com/FACorreiaa/go-trip-studio/config"
	generativeAI "github.com/FACorreiaa/go-trip-studio/internal/api/generative_ai"
	"github.com/FACorreiaa/go-trip-studio/internal/api/itinerary"
	"github.com/FACorreiaa/go-trip-studio/internal/api/planner"
	"github.com/FACorreiaa/go-trip-studio/internal/api/poisource"
	"github.com/FACorreiaa/go-trip-studio/internal/api/replacement"
	"github.com/FACorreiaa/go-trip-studio/internal/api/studio"
	"github.com/FACorreiaa/go-trip-studio/internal/api/travel"
	"github.com/FACorreiaa/go-trip-studio/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics(cfg.Handlers.Prometheus.Port)
	metrics.InitAppMetrics()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Generative planning capability ---
	// The planner degrades to deterministic templates without it, so a
	// missing API key is a warning, not a startup failure.
	aiClient, err := generativeAI.NewAIClient(ctx, cfg.Planner.Model)
	if err != nil {
		logger.Warn("Generative AI client unavailable, planning falls back to templates", slog.Any("error", err))
		aiClient = nil
	}

	// --- Dependency Injection ---
	searchProvider := poisource.NewHTTPSearchProvider(
		cfg.Gateway.SearchBaseURL,
		os.Getenv("POI_SEARCH_API_KEY"),
		cfg.Gateway.SearchTimeout,
		cfg.Gateway.SearchRPS,
	)
	gatewayRepo := poisource.NewRepository(pool, logger)
	gateway := poisource.NewServiceImpl(gatewayRepo, searchProvider, cfg.Gateway.MinCandidates, cfg.Gateway.Freshness, logger)

	travelProvider := travel.NewHeuristicProvider()

	var proposer planner.SkeletonProposer
	if aiClient != nil {
		proposer = planner.NewAIProposer(aiClient, logger)
	}
	macroPlanner := planner.NewMacroPlanner(proposer, logger)
	poiPlanner := planner.NewPOIPlanner(gateway, cfg.Planner.MaxWalkRadiusMeters, logger)
	optimizer := planner.NewRouteOptimizer(travelProvider, logger)
	plannerRepo := planner.NewRepository(pool, logger)
	plannerService := planner.NewServiceImpl(plannerRepo, macroPlanner, poiPlanner, optimizer, aiClient, cfg.Planner.GenerateTimeout, logger)
	plannerHandler := planner.NewHandler(plannerService, logger)

	itineraryRepo := itinerary.NewRepository(pool, logger)
	itineraryService := itinerary.NewServiceImpl(itineraryRepo, logger)
	itineraryHandler := itinerary.NewHandler(itineraryService, logger)

	studioRepo := studio.NewRepository(pool, logger)
	studioService := studio.NewServiceImpl(studioRepo, travelProvider, logger)
	studioHandler := studio.NewHandler(studioService, logger)

	replacementRepo := replacement.NewRepository(pool, logger)
	replacementService := replacement.NewServiceImpl(replacementRepo, gateway, travelProvider, logger)
	replacementHandler := replacement.NewHandler(replacementService, logger)

	var authenticate func(http.Handler) http.Handler
	if os.Getenv("JWT_SECRET_KEY") != "" {
		authenticate = appMiddleware.Authenticate
	}

	mainRouter := router.SetupRouter(&router.Config{
		PlannerHandler:     plannerHandler,
		ItineraryHandler:   itineraryHandler,
		StudioHandler:      studioHandler,
		ReplacementHandler: replacementHandler,
		Authenticate:       authenticate,
	})

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(cfg.Server.Timeout))
	r.Use(middleware.Compress(5, "application/json"))
	r.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:    serverAddress,
		Handler: r,
		// Planning runs are long; write timeout must cover a full generate.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Planner.GenerateTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
