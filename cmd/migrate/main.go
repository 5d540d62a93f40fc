package main

import (
	"flag"

	"github.com/joripage/coinexchange/config"
	"github.com/joripage/coinexchange/pkg/infra"
	"go.uber.org/zap"
)

func main() {
	var configFile, source string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.StringVar(&source, "source", infra.DefaultMigrationSource, "migration source URL")
	flag.Parse()

	z, _ := zap.NewProduction()
	zap.ReplaceGlobals(z)
	defer z.Sync() // nolint

	cfg, err := config.Load(configFile)
	if err != nil {
		zap.S().Fatalf("load config: %v", err)
	}
	if cfg.ExchangeDB == nil || cfg.ExchangeDB.MigrationConnURL == "" {
		zap.S().Fatal("exchange_db.migration_conn_url is required")
	}

	if err := infra.Migrate(source, cfg.ExchangeDB.MigrationConnURL); err != nil {
		zap.S().Fatalf("migrate: %v", err)
	}
}
