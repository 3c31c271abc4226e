package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cometrelay/internal/api"
	"cometrelay/internal/config"
	"cometrelay/internal/db"
	"cometrelay/internal/dispatch"
	"cometrelay/internal/jobs"
	"cometrelay/internal/pubsub"
	"cometrelay/internal/route"
	"cometrelay/internal/schema"
	"cometrelay/internal/service"
	"cometrelay/internal/ws"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Check for migrate command
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runGooseMigrations(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		log.Fatalf("Unknown command: %s (use 'serve' or 'migrate')", os.Args[1])
	}

	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Configuration is loaded once and threaded explicitly from here on
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Routing table; fails on duplicate form registrations
	routeTable, err := route.NewTable()
	if err != nil {
		logger.Fatal("Invalid route table", zap.Error(err))
	}

	// Database connection
	dbPool, err := db.NewPool(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Pub/sub bus
	bus := pubsub.New(rdb, logger)

	// Submission coordinator
	dispatcher := dispatch.New(logger, cfg.Delivery.HTTPTimeout)
	submissionSvc := service.NewSubmissionService(
		routeTable, dbPool.Queries, bus, dispatcher, cfg.Delivery, logger,
	)

	// Background worker processes queued submissions
	jobServer, jobClient := jobs.NewJobServer(cfg.Redis.Addr, submissionSvc, logger)
	go func() {
		if err := jobServer.Start(); err != nil {
			logger.Fatal("Job server failed", zap.Error(err))
		}
	}()
	defer jobServer.Stop()

	// WebSocket hub for the operator live feed
	hub := ws.NewHub(logger)
	go hub.Run()
	bus.SetWSHub(hub)

	// HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Timeout middleware - skip for WebSocket upgrades
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, req)
				return
			}
			middleware.Timeout(60 * time.Second)(next).ServeHTTP(w, req)
		})
	})

	// Mount API routes
	r.Mount("/v1", api.Routes(api.Dependencies{
		DB:          dbPool,
		Bus:         bus,
		Hub:         hub,
		Log:         logger,
		Routes:      routeTable,
		Validator:   schema.NewValidator(16),
		Submissions: submissionSvc,
		JobClient:   service.NewAsynqJobClient(jobClient),
		JWTSecret:   cfg.Auth.JWTSecret,
	}))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
