package config

import (
	"errors"
	"fmt"
	"os"

	postgres_wrapper "github.com/joripage/coinexchange/pkg/infra/postgres"
	redis_wrapper "github.com/joripage/coinexchange/pkg/infra/redis"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type InstrumentConfig struct {
	Symbol   string `yaml:"symbol"`
	TickSize string `yaml:"tick_size"` // empty = no tick rule
	MinPrice string `yaml:"min_price"` // empty = open
	MaxPrice string `yaml:"max_price"`
	Base     string `yaml:"base"`  // with quote, enables the balance rule
	Quote    string `yaml:"quote"`
}

type PipelineConfig struct {
	BufferSize int    `yaml:"buffer_size"`
	Codec      string `yaml:"codec"` // json | proto
}

type JournalConfig struct {
	Driver              string `yaml:"driver"` // noop | memory | pebble | postgres
	PebbleDir           string `yaml:"pebble_dir"`
	BatchSize           int    `yaml:"batch_size"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	TradeTopic string   `yaml:"trade_topic"`
	GroupID    string   `yaml:"group_id"`
	DLQTopic   string   `yaml:"dlq_topic"`
	Workers    int      `yaml:"workers"`
}

type AppConfig struct {
	ServiceName string                           `yaml:"service_name"`
	LogLevel    string                           `yaml:"log_level"`
	Instruments []InstrumentConfig               `yaml:"instruments"`
	Pipeline    PipelineConfig                   `yaml:"pipeline"`
	Journal     JournalConfig                    `yaml:"journal"`
	ExchangeDB  *postgres_wrapper.PostgresConfig `yaml:"exchange_db"`
	Redis       *redis_wrapper.RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig                      `yaml:"kafka"`
}

// Load load config from file and environment variables.
func Load(filePath string) (*AppConfig, error) {
	if len(filePath) == 0 {
		filePath = os.Getenv("CONFIG_FILE")
	}

	sugar := zap.S().With("func", "config.Load", "filePath", filePath)
	sugar.Debug("Load config...")

	configBytes, err := os.ReadFile(filePath)
	if err != nil {
		sugar.Error("Failed to load config file")
		return nil, err
	}
	configBytes = []byte(os.ExpandEnv(string(configBytes)))

	cfg := &AppConfig{}

	err = yaml.Unmarshal(configBytes, cfg)
	if err != nil {
		sugar.Error("Failed to parse config file")
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		sugar.Errorf("Invalid config: %v", err)
		return nil, err
	}

	zap.S().Debugf("config: %+v", cfg)

	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Pipeline.BufferSize == 0 {
		c.Pipeline.BufferSize = 1024
	}
	if c.Pipeline.Codec == "" {
		c.Pipeline.Codec = "json"
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "noop"
	}
}

// Validate checks everything the exchange needs before it starts.
func (c *AppConfig) Validate() error {
	var errs []error

	if len(c.Instruments) == 0 {
		errs = append(errs, errors.New("no instruments configured"))
	}
	seen := map[string]bool{}
	for i, in := range c.Instruments {
		if in.Symbol == "" {
			errs = append(errs, fmt.Errorf("instruments[%d]: empty symbol", i))
			continue
		}
		if seen[in.Symbol] {
			errs = append(errs, fmt.Errorf("instruments[%d]: duplicate symbol %s", i, in.Symbol))
		}
		seen[in.Symbol] = true
		if (in.Base == "") != (in.Quote == "") {
			errs = append(errs, fmt.Errorf("instruments[%d] %s: base and quote must be set together", i, in.Symbol))
		}
		if _, err := in.Bounds(); err != nil {
			errs = append(errs, fmt.Errorf("instruments[%d] %s: %w", i, in.Symbol, err))
		}
	}

	size := c.Pipeline.BufferSize
	if size < 1 || size&(size-1) != 0 {
		errs = append(errs, fmt.Errorf("pipeline.buffer_size %d is not a power of two", size))
	}
	switch c.Pipeline.Codec {
	case "json", "proto":
	default:
		errs = append(errs, fmt.Errorf("pipeline.codec %q: want json or proto", c.Pipeline.Codec))
	}

	switch c.Journal.Driver {
	case "noop", "memory":
	case "pebble":
		if c.Journal.PebbleDir == "" {
			errs = append(errs, errors.New("journal.pebble_dir is required for the pebble driver"))
		}
	case "postgres":
		if c.ExchangeDB == nil {
			errs = append(errs, errors.New("exchange_db is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("journal.driver %q is unknown", c.Journal.Driver))
	}

	return errors.Join(errs...)
}

// InstrumentBounds are the parsed decimal settings of an instrument. Zero
// values mean the setting is absent.
type InstrumentBounds struct {
	TickSize decimal.Decimal
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

func (in InstrumentConfig) Bounds() (InstrumentBounds, error) {
	var b InstrumentBounds
	var err error
	if b.TickSize, err = parseOptional(in.TickSize); err != nil {
		return b, fmt.Errorf("tick_size: %w", err)
	}
	if b.MinPrice, err = parseOptional(in.MinPrice); err != nil {
		return b, fmt.Errorf("min_price: %w", err)
	}
	if b.MaxPrice, err = parseOptional(in.MaxPrice); err != nil {
		return b, fmt.Errorf("max_price: %w", err)
	}
	if b.TickSize.IsNegative() || b.MinPrice.IsNegative() || b.MaxPrice.IsNegative() {
		return b, errors.New("negative bound")
	}
	if !b.MaxPrice.IsZero() && b.MinPrice.GreaterThan(b.MaxPrice) {
		return b, errors.New("min_price above max_price")
	}
	return b, nil
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
