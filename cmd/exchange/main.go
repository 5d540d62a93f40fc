package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joripage/coinexchange/config"
	"github.com/joripage/coinexchange/pkg/balance"
	"github.com/joripage/coinexchange/pkg/broadcast"
	"github.com/joripage/coinexchange/pkg/event"
	"github.com/joripage/coinexchange/pkg/exchange"
	postgres_wrapper "github.com/joripage/coinexchange/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/coinexchange/pkg/infra/redis"
	"github.com/joripage/coinexchange/pkg/journal"
	kafkawrapper "github.com/joripage/coinexchange/pkg/kafka_wrapper"
	"github.com/joripage/coinexchange/pkg/logging"
	"github.com/joripage/coinexchange/pkg/pipeline"
	"github.com/joripage/coinexchange/pkg/riskrule"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	var configFile, feedFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&feedFile, "feed", "", "order feed (JSON lines); stdin when empty")
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

	var db *gorm.DB
	if cfg.ExchangeDB != nil {
		if db, err = postgres_wrapper.InitPostgresWithBackoff(cfg.ExchangeDB); err != nil {
			logger.Fatal(ctx, "init db", zap.Error(err))
		}
	}

	store, err := openStore(cfg, db)
	if err != nil {
		logger.Fatal(ctx, "open journal", zap.Error(err))
	}
	journaler := journal.NewJournaler(store, journal.Config{
		BatchSize:    cfg.Journal.BatchSize,
		WriteTimeout: time.Duration(cfg.Journal.WriteTimeoutSeconds) * time.Second,
	}, logger)
	defer journaler.Close()

	codec := codecFor(cfg.Pipeline.Codec)
	consumers := []pipeline.Consumer{{Name: "journal", Handler: journaler}}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.TradeTopic != "" {
		producer := kafkawrapper.NewProducer(kafkawrapper.ProducerConfig{Brokers: cfg.Kafka.Brokers})
		defer producer.Close()
		consumers = append(consumers, pipeline.Consumer{
			Name:    "broadcast",
			Handler: broadcast.NewTradeBroadcaster(producer, broadcast.Config{Topic: cfg.Kafka.TradeTopic, Codec: codec}, logger),
		})
	}

	p, err := pipeline.New(pipeline.Config{BufferSize: cfg.Pipeline.BufferSize}, logger)
	if err != nil {
		logger.Fatal(ctx, "init pipeline", zap.Error(err))
	}
	if err := p.Initialize(consumers...); err != nil {
		logger.Fatal(ctx, "start pipeline", zap.Error(err))
	}

	repo := balanceRepository(ctx, cfg, db, logger)
	instruments, err := buildInstruments(cfg.Instruments, repo)
	if err != nil {
		logger.Fatal(ctx, "instruments", zap.Error(err))
	}

	ex, err := exchange.New(instruments, exchange.Options{Publisher: p, Codec: codec, Logger: logger})
	if err != nil {
		logger.Fatal(ctx, "init exchange", zap.Error(err))
	}

	in := os.Stdin
	if feedFile != "" {
		f, err := os.Open(feedFile)
		if err != nil {
			logger.Fatal(ctx, "open feed", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	if err := runFeed(ctx, ex, in, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error(ctx, "feed stopped", zap.Error(err))
	}

	if err := p.Shutdown(); err != nil {
		logger.Error(ctx, "pipeline shutdown", zap.Error(err))
	}
	stats := ex.Stats()
	logger.Info(ctx, "exchange stopped",
		zap.Uint64("events", p.Cursor()),
		zap.Uint64("journaled", journaler.Written()),
		zap.Int64("trades", stats.Trades),
		zap.Int64("rejected", stats.Rejected))
}

func codecFor(name string) event.Codec {
	if name == "proto" {
		return event.ProtoCodec{}
	}
	return event.JSONCodec{}
}

func openStore(cfg *config.AppConfig, db *gorm.DB) (journal.EventStore, error) {
	switch cfg.Journal.Driver {
	case "memory":
		return journal.NewMemoryStore(), nil
	case "pebble":
		return journal.OpenPebbleStore(cfg.Journal.PebbleDir)
	case "postgres":
		return journal.NewPostgresStore(db, uuid.NewString()), nil
	default:
		return journal.NoopStore{}, nil
	}
}

// balanceRepository is nil without a database. Redis, when configured,
// caches reads in front of it.
func balanceRepository(ctx context.Context, cfg *config.AppConfig, db *gorm.DB, logger *logging.Logger) balance.Repository {
	if db == nil {
		return nil
	}
	var repo balance.Repository = balance.NewSQLRepository(db)
	if cfg.Redis == nil {
		return repo
	}
	client, err := redis_wrapper.InitRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn(ctx, "redis unavailable, balances read uncached", zap.Error(err))
		return repo
	}
	return balance.NewCachedRepository(repo, balance.NewRedisCache(client), cfg.Redis.CacheTTL())
}

func buildInstruments(cfgs []config.InstrumentConfig, repo balance.Repository) ([]exchange.Instrument, error) {
	instruments := make([]exchange.Instrument, 0, len(cfgs))
	for _, in := range cfgs {
		b, err := in.Bounds()
		if err != nil {
			return nil, err
		}

		var rules []riskrule.RiskRule
		if !b.TickSize.IsZero() {
			rules = append(rules, riskrule.NewTickSizeRule(map[string][]riskrule.TickSize{
				in.Symbol: {{Step: b.TickSize}},
			}))
		}
		if !b.MinPrice.IsZero() || !b.MaxPrice.IsZero() {
			rules = append(rules, riskrule.NewLimitPriceRule(map[string]riskrule.PriceBand{
				in.Symbol: {Floor: b.MinPrice, Ceil: b.MaxPrice},
			}))
		}
		if repo != nil && in.Base != "" {
			rules = append(rules, riskrule.NewBalanceRule(repo, map[string]riskrule.CurrencyPair{
				in.Symbol: {Base: in.Base, Quote: in.Quote},
			}, time.Second))
		}

		instruments = append(instruments, exchange.Instrument{Symbol: in.Symbol, Rules: rules})
	}
	return instruments, nil
}
