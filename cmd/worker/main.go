package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fablecast/storypipe/internal/broker"
	"github.com/fablecast/storypipe/internal/config"
	"github.com/fablecast/storypipe/internal/database"
	"github.com/fablecast/storypipe/internal/obs"
	"github.com/fablecast/storypipe/internal/orchestrator"
	"github.com/fablecast/storypipe/internal/providers"
	"github.com/fablecast/storypipe/internal/storage"
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

	log.Info().Msg("Starting storypipe worker")

	// Load configuration
	cfg := config.Load()

	// Initialize database connection
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
	reaper := broker.NewReaper(b, cfg.ReaperInterval)

	// Initialize S3 storage client
	storageClient, err := storage.NewClient(
		cfg.S3Endpoint,
		cfg.S3Region,
		cfg.S3BucketImages,
		cfg.S3BucketAudio,
		cfg.S3AccessKey,
		cfg.S3SecretKey,
		cfg.S3UseSSL,
		cfg.S3PublicURL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize storage client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize provider adapters (real Gemini-family adapters, or mocks)
	providerSet, err := providers.NewSet(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize provider adapters")
	}

	stories := database.NewStoryRepository(db)
	scenes := database.NewSceneRepository(db)
	orch := orchestrator.New(stories, scenes, providerSet, storageClient, cfg)

	metricsSrv := obs.StartMetricsServer(cfg.MetricsAddr)
	defer metricsSrv.Close()
	obs.WorkersActive.Set(float64(cfg.JobParallelism))

	var wg sync.WaitGroup

	// Reaper redelivers stories whose visibility timeout expired without an ack.
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	// Worker pool pulling from the broker.
	for i := 0; i < cfg.JobParallelism; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			runWorker(ctx, workerID, b, orch, cfg)
		}(i)
	}

	log.Info().Int("workers", cfg.JobParallelism).Msg("Worker started, consuming story jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("Worker shutdown complete")
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Worker shutdown timeout")
	}

	log.Info().Msg("Worker exited")
}

// runWorker loops claiming one story at a time, processing it, and
// ack/nack-ing based on the outcome and the envelope's attempt count.
func runWorker(ctx context.Context, workerID int, b *broker.Client, orch *orchestrator.Orchestrator, cfg *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		handle, err := b.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Int("worker", workerID).Msg("dequeue failed")
			continue
		}
		if handle == nil {
			continue
		}

		storyID := handle.Envelope.StoryID
		log.Info().Int("worker", workerID).Str("story_id", storyID.String()).Int("attempt", handle.Envelope.Attempt).Msg("claimed story")
		obs.JobsClaimed.Inc()

		start := time.Now()
		err = processWithRenewal(ctx, b, handle, cfg, func() error {
			return orch.ProcessJob(ctx, storyID)
		})
		obs.JobProcessingDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			obs.JobsCompleted.Inc()
			if ackErr := b.Ack(ctx, handle); ackErr != nil {
				log.Error().Err(ackErr).Str("story_id", storyID.String()).Msg("ack failed")
			}
			continue
		}

		if !errors.Is(err, orchestrator.ErrShouldRetry) || handle.Envelope.Attempt >= cfg.MaxAttempts {
			obs.JobsFailed.Inc()
			log.Error().Err(err).Str("story_id", storyID.String()).Msg("story permanently failed")
			// ProcessJob already marks non-retryable failures FAILED itself.
			// A retryable failure that exhausted its attempt budget is still
			// sitting in PROCESSING and needs to be failed here instead.
			if errors.Is(err, orchestrator.ErrShouldRetry) {
				if failErr := orch.Fail(ctx, storyID, err.Error()); failErr != nil {
					log.Error().Err(failErr).Str("story_id", storyID.String()).Msg("failed to mark story failed")
				}
			}
			if ackErr := b.Ack(ctx, handle); ackErr != nil {
				log.Error().Err(ackErr).Str("story_id", storyID.String()).Msg("ack after terminal failure failed")
			}
			continue
		}

		obs.JobsNacked.Inc()
		log.Warn().Err(err).Str("story_id", storyID.String()).Msg("story failed, will retry")
		backoffDelay := time.Duration(handle.Envelope.Attempt) * time.Second
		if nackErr := b.Nack(ctx, handle, backoffDelay); nackErr != nil {
			log.Error().Err(nackErr).Str("story_id", storyID.String()).Msg("nack failed")
		}
	}
}

// processWithRenewal runs work while periodically renewing the handle's
// visibility deadline (every vt/3), so a story whose pipeline takes longer
// than VisibilityTimeout isn't redelivered to a second worker while the
// first is still processing it.
func processWithRenewal(ctx context.Context, b *broker.Client, handle *broker.Handle, cfg *config.Config, work func() error) error {
	renewCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	interval := cfg.VisibilityTimeout / 3
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-renewCtx.Done():
					return
				case <-ticker.C:
					if err := b.RenewVisibility(renewCtx, handle); err != nil {
						log.Error().Err(err).Str("story_id", handle.Envelope.StoryID.String()).Msg("renew visibility failed")
					}
				}
			}
		}()
	}

	return work()
}
