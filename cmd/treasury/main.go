package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/onemorebsmith/kaspa-governance/src/common"
	"github.com/onemorebsmith/kaspa-governance/src/governance"
	"github.com/onemorebsmith/kaspa-governance/src/treasury"
	"go.uber.org/zap"
)

func main() {
	fullPath := common.ConfigPath()
	log.Printf("loading config @ `%s`", fullPath)
	cfg := governance.Config{}
	if err := common.LoadConfig(fullPath, &cfg); err != nil {
		log.Printf("%s", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.PromPort, "prom", cfg.PromPort, "address to serve prom stats and /readyz, default `:2112`")
	flag.StringVar(&cfg.HealthCheckPort, "hcp", cfg.HealthCheckPort, `(rarely used) if defined will expose a health check on /readyz, default ""`)
	flag.StringVar(&cfg.PostgresConfig, "pg", cfg.PostgresConfig, `config string for the postgres connection`)
	flag.StringVar(&cfg.SqlitePath, "sqlite", cfg.SqlitePath, `sqlite file to use instead of postgres`)
	flag.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, `redis address for cross-process task locks`)
	flag.StringVar(&cfg.KasplexAPI, "kasplex", cfg.KasplexAPI, `kasplex api base url`)
	flag.StringVar(&cfg.KaspaRestAPI, "kasparest", cfg.KaspaRestAPI, `kaspa rest api base url`)
	flag.StringVar(&cfg.SyncInterval, "interval", cfg.SyncInterval, `time between treasury syncs, default 10m`)
	flag.Parse()

	log.Println("----------------------------------")
	log.Printf("initializing treasury sync")
	log.Printf("\tprom:          %s", cfg.PromPort)
	log.Printf("\thealth check:  %s", cfg.HealthCheckPort)
	log.Printf("\tkasplex:       %s", cfg.KasplexAPI)
	log.Printf("\tkaspa rest:    %s", cfg.KaspaRestAPI)
	log.Printf("\tsqlite:        %s", cfg.SqlitePath)
	log.Printf("\tredis:         %s", cfg.RedisAddress)
	log.Printf("\tinterval:      %s", cfg.SyncInterval)
	for _, w := range cfg.TreasuryWallets {
		log.Printf("\twallet:        %s (%s)", w.Address, w.Label)
	}
	log.Println("----------------------------------")

	logger := common.ConfigureZap(common.ParseLevel(cfg.LogLevel))
	interval, err := cfg.SyncEvery()
	if err != nil {
		logger.Fatal("bad config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := governance.OpenTreasuryStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed opening treasury store", zap.Error(err))
	}
	syncer, err := governance.NewSynchronizer(cfg, store, logger)
	if err != nil {
		logger.Fatal("bad config", zap.Error(err))
	}

	common.StartOpsServer(cfg.PromPort, store.Ping, logger)
	common.StartHealthServer(cfg.HealthCheckPort, store.Ping, logger)
	treasury.StartPipeline(ctx, interval, governance.NewLocks(cfg, logger), syncer, logger)
}
