package main

import (
	"fmt"

	"github.com/onemorebsmith/kaspa-governance/src/governance"
	"github.com/onemorebsmith/kaspa-governance/src/treasury"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one treasury sync over every configured treasury wallet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		store, err := governance.OpenTreasuryStore(ctx, cfg)
		if err != nil {
			return err
		}
		syncer, err := governance.NewSynchronizer(cfg, store, logger)
		if err != nil {
			return err
		}
		if !treasury.DoPipelineOnce(ctx, governance.NewLocks(cfg, logger), syncer, logger) {
			return fmt.Errorf("a treasury sync is already running")
		}
		return nil
	},
}
