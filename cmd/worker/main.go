package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joripage/coinexchange/config"
	postgres_wrapper "github.com/joripage/coinexchange/pkg/infra/postgres"
	"github.com/joripage/coinexchange/pkg/journal"
	kafkawrapper "github.com/joripage/coinexchange/pkg/kafka_wrapper"
	"github.com/joripage/coinexchange/pkg/logging"
	"github.com/joripage/coinexchange/pkg/worker"
	"go.uber.org/zap"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel)).Named(cfg.ServiceName)
	zap.ReplaceGlobals(logger.Zap())
	defer logger.Sync() // nolint

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewRequestContext(ctx)

	db, err := postgres_wrapper.InitPostgresWithBackoff(cfg.ExchangeDB)
	if err != nil {
		logger.Fatal(ctx, "init db", zap.Error(err))
	}

	cg, err := kafkawrapper.NewConsumerGroup(kafkawrapper.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     cfg.Kafka.GroupID,
		Topic:       cfg.Kafka.TradeTopic,
		DLQTopic:    cfg.Kafka.DLQTopic,
		WorkerCount: cfg.Kafka.Workers,
		MaxRetries:  3,
	})
	if err != nil {
		logger.Fatal(ctx, "init consumer group", zap.Error(err))
	}
	defer cg.Close()

	w := worker.NewWorker(func(runID string) journal.EventStore {
		return journal.NewPostgresStore(db, runID)
	})
	defer w.Close()

	logger.Info(ctx, "worker started", zap.String("topic", cfg.Kafka.TradeTopic), zap.String("group", cfg.Kafka.GroupID))
	if err := w.StartConsumer(ctx, cg); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "consumer stopped", zap.Error(err))
	}
	logger.Info(ctx, "worker stopped")
}
