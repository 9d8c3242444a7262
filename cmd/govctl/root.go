package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/onemorebsmith/kaspa-governance/src/common"
	"github.com/onemorebsmith/kaspa-governance/src/governance"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "govctl",
	Short:         "Operate the governance wallets and treasury ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", common.ConfigPath(), "path to config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level from config")
}

func loadConfig() (governance.Config, *zap.Logger, error) {
	cfg := governance.Config{}
	if err := common.LoadConfig(configPath, &cfg); err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, common.ConfigureZap(common.ParseLevel(cfg.LogLevel)), nil
}

// openService connects through the configured kaspad resolver.
func openService() (*governance.Service, *zap.Logger, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	nodes := kaspaapi.NewResolver(cfg.RPCResolver, logger)
	svc, err := governance.New(cfg, nodes, governance.NewLocks(cfg, logger), logger)
	if err != nil {
		return nil, nil, err
	}
	return svc, logger, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
