// Worker consumes session lifecycle events from Kafka and delivers them:
// renders each event, posts it to the notification webhook when one is
// configured, records the outcome, and optionally mirrors the raw payload
// to Loki. Set KAFKA_BROKERS and KAFKA_GROUP_ID; NOTIFY_WEBHOOK_URL,
// DATABASE_URL, and LOKI_URL are optional.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gaini88088/expert-pancake/internal/config"
	"github.com/gaini88088/expert-pancake/internal/db"
	"github.com/gaini88088/expert-pancake/internal/notify/delivery"
	notifyrepo "github.com/gaini88088/expert-pancake/internal/notify/repository"
)

const handleTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("component", "worker")
	slog.SetDefault(logger)

	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		log.Fatal("worker: KAFKA_BROKERS is required")
	}

	var sender delivery.Sender
	if cfg.WebhookURL != "" {
		sender = delivery.NewWebhookClient(cfg.WebhookURL, cfg.WebhookToken)
		logger.Info("delivering to webhook", "url", cfg.WebhookURL)
	} else {
		logger.Info("no webhook configured; deliveries go to the log")
	}

	var deliveryLog notifyrepo.Repository
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("worker: db: %v", err)
		}
		defer pool.Close()
		deliveryLog = notifyrepo.NewPostgresRepository(pool)
	}

	handler := delivery.NewHandler(sender, deliveryLog, cfg.LokiURL, logger)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.NotifyKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("consuming", "topic", cfg.NotifyKafkaTopic, "group", cfg.KafkaGroupID)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("stopped")
				return
			}
			logger.Warn("kafka read failed", "error", err)
			continue
		}

		handleCtx, cancelHandle := context.WithTimeout(ctx, handleTimeout)
		handler.HandleMessage(handleCtx, msg.Value)
		cancelHandle()
	}
}
