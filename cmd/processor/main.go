package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/delivery"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/enrich"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/journal"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/poller"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/ratelimit"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/retention"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/statushub"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/storage"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/tracker"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/transform"
	"github.com/FAbreu6/TP3-IS/cmd/processor/internal/webhook"
	"github.com/FAbreu6/TP3-IS/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.App)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	store := storage.NewSupabaseStore(cfg.Storage.SupabaseURL, cfg.Storage.ServiceRoleKey, cfg.Storage.Bucket, logger)

	clock := ratelimit.RealClock{}
	enrichExec := ratelimit.NewExecutor(
		ratelimit.NewLimiter(cfg.Enrichment.MaxCalls, cfg.Enrichment.Window, clock),
		cfg.Enrichment.MaxRetries, cfg.Enrichment.RetryBase, clock, logger)
	deliveryExec := ratelimit.NewExecutor(
		ratelimit.NewLimiter(cfg.Enrichment.MaxCalls, cfg.Enrichment.Window, clock),
		cfg.Delivery.MaxRetries, cfg.Delivery.RetryBase, clock, logger)

	market := enrich.NewCoinGeckoClient(cfg.Enrichment.BaseURL, cfg.Enrichment.HTTPTimeout)
	batcher := enrich.NewBatcher(market, enrichExec, cfg.Enrichment.BatchSize, enrich.NewRedisCache(rdb), logger)

	// Delivery-event journal (Kafka)
	journal.EnsureTopic(logger, &journal.RealKafkaDialer{Dialer: kafka.DefaultDialer}, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
	eventJournal := journal.NewJournal(writer, logger)

	hub := statushub.NewHub(logger)

	track := tracker.NewTracker(
		tracker.NewRedisPendingStore(rdb), store,
		cfg.Delivery.PendingTTL, clock, logger,
		eventJournal, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rebuild in-flight deliveries lost to a previous crash.
	if err := track.Restore(ctx); err != nil {
		logger.Error("Could not restore pending deliveries", zap.Error(err))
	}
	go track.Run(ctx, cfg.Delivery.SweepEvery)

	var transport delivery.Transport
	switch cfg.Delivery.Mode {
	case "socket":
		transport = delivery.NewSocketTransport(cfg.Delivery.SocketAddr, cfg.Delivery.Timeout, logger)
	default:
		transport = delivery.WithRetry(
			delivery.NewHTTPTransport(cfg.Delivery.UploadURL, cfg.Delivery.Timeout, logger),
			deliveryExec)
	}
	logger.Info("Delivery transport selected", zap.String("mode", cfg.Delivery.Mode))

	orch := poller.NewOrchestrator(
		store,
		transform.NewEngine(logger),
		batcher,
		transport,
		track,
		poller.NewRedisCursorStore(rdb),
		retention.NewSweeper(store, cfg.Pipeline.RetentionCap, logger),
		poller.Options{
			RawPrefix:       cfg.Storage.RawPrefix,
			ProcessedPrefix: cfg.Storage.ProcessedPrefix,
			WebhookURL:      cfg.Delivery.WebhookURL,
			PollInterval:    cfg.Pipeline.PollInterval,
		},
		logger)
	go orch.Run(ctx)

	// Inbound confirmation channel, concurrent with the poll loop.
	srv := &http.Server{
		Addr:    cfg.App.Port,
		Handler: webhook.NewServer(track, hub, logger).Handler(),
	}
	go func() {
		logger.Info("Confirmation listener started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	}

	if err := eventJournal.Close(); err != nil {
		logger.Error("Error closing Kafka writer", zap.Error(err))
	}

	logger.Info("Closing Redis...")
	rdb.Close()

	logger.Info("Processor exited cleanly")
}
