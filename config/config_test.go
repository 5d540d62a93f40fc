package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const sample = `
service_name: coinexchange
log_level: debug
instruments:
  - symbol: BTCUSD
    tick_size: "0.5"
    min_price: "1"
    max_price: "100000"
  - symbol: BTCLTC
pipeline:
  buffer_size: 2048
  codec: proto
journal:
  driver: pebble
  pebble_dir: ${JOURNAL_DIR}
  batch_size: 64
kafka:
  brokers: ["localhost:9092"]
  trade_topic: trades
  group_id: journal-worker
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("JOURNAL_DIR", "/var/lib/journal")
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	require.Equal(t, "coinexchange", cfg.ServiceName)
	require.Len(t, cfg.Instruments, 2)
	require.Equal(t, 2048, cfg.Pipeline.BufferSize)
	require.Equal(t, "/var/lib/journal", cfg.Journal.PebbleDir)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)

	b, err := cfg.Instruments[0].Bounds()
	require.NoError(t, err)
	require.True(t, b.TickSize.Equal(decimal.RequireFromString("0.5")))
	require.True(t, b.MaxPrice.Equal(decimal.NewFromInt(100000)))

	open, err := cfg.Instruments[1].Bounds()
	require.NoError(t, err)
	require.True(t, open.TickSize.IsZero())
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "instruments:\n  - symbol: BTCUSD\n")
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 1024, cfg.Pipeline.BufferSize)
	require.Equal(t, "json", cfg.Pipeline.Codec)
	require.Equal(t, "noop", cfg.Journal.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no instruments", "service_name: x\n", "no instruments"},
		{"duplicate", "instruments:\n  - symbol: A\n  - symbol: A\n", "duplicate symbol A"},
		{"bad buffer", "instruments:\n  - symbol: A\npipeline:\n  buffer_size: 1000\n", "power of two"},
		{"bad decimal", "instruments:\n  - symbol: A\n    tick_size: abc\n", "tick_size"},
		{"inverted band", "instruments:\n  - symbol: A\n    min_price: \"10\"\n    max_price: \"5\"\n", "min_price above max_price"},
		{"pebble without dir", "instruments:\n  - symbol: A\njournal:\n  driver: pebble\n", "pebble_dir"},
		{"postgres without db", "instruments:\n  - symbol: A\njournal:\n  driver: postgres\n", "exchange_db"},
		{"bad codec", "instruments:\n  - symbol: A\npipeline:\n  codec: xml\n", "pipeline.codec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), "error %q should mention %q", err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadShippedConfig(t *testing.T) {
	t.Setenv("EXCHANGE_DB_DSN", "postgres://exchange@localhost/exchange")
	cfg, err := Load("config.yaml")
	require.NoError(t, err)

	require.Len(t, cfg.Instruments, 3)
	require.Equal(t, "BTC", cfg.Instruments[1].Base)
	require.Equal(t, "USD", cfg.Instruments[1].Quote)
	require.Equal(t, "postgres://exchange@localhost/exchange", cfg.ExchangeDB.DataSource)
	require.Equal(t, 30, cfg.Redis.CacheTTLSeconds)
}

func TestValidateBaseWithoutQuote(t *testing.T) {
	cfg := &AppConfig{Instruments: []InstrumentConfig{{Symbol: "BTCUSD", Base: "BTC"}}}
	cfg.applyDefaults()
	require.ErrorContains(t, cfg.Validate(), "base and quote")
}
