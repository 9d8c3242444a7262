package main

import (
	"fmt"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(inscribeCmd)

	inscribeCmd.Flags().String("op", "transfer", "krc20 operation")
	inscribeCmd.Flags().String("to", "", "recipient address")
}

var burnCmd = &cobra.Command{
	Use:   "burn WALLET TICK AMOUNT",
	Short: "Burn krc20 tokens from a vault wallet to the configured burn address",
	Long: `Burn sends AMOUNT whole tokens (e.g. 5 or 0.5) of TICK from the named
wallet to burn_address with a commit and a reveal transaction. A confirmation
timeout is final and leaves the commit on chain for manual reconciliation.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := openService()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		revealID, err := svc.Burn(ctx, args[0], args[1], args[2])
		if err != nil {
			logger.Error("burn failed", zap.String("kind", string(model.Kind(err))), zap.Error(err))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), revealID)
		return nil
	},
}

var inscribeCmd = &cobra.Command{
	Use:   "inscribe WALLET TICK AMOUNT",
	Short: "Run an arbitrary krc20 operation signed by a vault wallet",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := openService()
		if err != nil {
			return err
		}
		op, _ := cmd.Flags().GetString("op")
		to, _ := cmd.Flags().GetString("to")
		ctx, cancel := signalContext()
		defer cancel()
		revealID, err := svc.Inscribe(ctx, args[0], model.OperationDescriptor{
			Op:     op,
			Tick:   args[1],
			Amount: args[2],
			To:     to,
		})
		if err != nil {
			logger.Error("inscription failed", zap.String("kind", string(model.Kind(err))), zap.Error(err))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), revealID)
		return nil
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer WALLET DESTINATION AMOUNT",
	Short: "Send AMOUNT KAS from a vault wallet",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := openService()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		txID, err := svc.Transfer(ctx, args[0], args[1], args[2])
		if err != nil {
			logger.Error("transfer failed", zap.String("kind", string(model.Kind(err))), zap.Error(err))
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), txID)
		return nil
	},
}
