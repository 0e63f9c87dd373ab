package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/storypipe/internal/api"
	"github.com/fablecast/storypipe/internal/broker"
	"github.com/fablecast/storypipe/internal/config"
	"github.com/fablecast/storypipe/internal/database"
	"github.com/fablecast/storypipe/internal/dispatcher"
	"github.com/fablecast/storypipe/migrations"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Starting storypipe API server")

	// Load configuration
	cfg := config.Load()
	httpAddr := cfg.HTTPAddr

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := migrations.Run(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Initialize Redis-backed broker
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	b := broker.New(rdb, cfg.QueueName, cfg.VisibilityTimeout, cfg.BrokerPollInterval)

	// Initialize repositories, dispatcher, and HTTP handler
	stories := database.NewStoryRepository(db)
	scenes := database.NewSceneRepository(db)
	disp := dispatcher.New(stories, b, cfg)
	handler := api.NewHandler(disp, stories, scenes)

	// Setup HTTP router
	router := mux.NewRouter()
	router.HandleFunc("/health", healthHandler(db)).Methods("GET")

	apiRouter := router.PathPrefix("/v1").Subrouter()
	apiRouter.HandleFunc("/stories", handler.SubmitStory).Methods("POST")
	apiRouter.HandleFunc("/stories/{id}", handler.GetStory).Methods("GET")
	apiRouter.HandleFunc("/stories/{id}/status", handler.GetStory).Methods("GET")

	// Setup server
	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", httpAddr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func healthHandler(db *database.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := db.Health(); err != nil {
			log.Error().Err(err).Msg("Database health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"status":"unhealthy","error":"database"}`)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}
}
