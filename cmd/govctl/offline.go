package main

import (
	"fmt"
	"strconv"

	"github.com/onemorebsmith/kaspa-governance/src/identity"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(weightCmd)
}

var encryptCmd = &cobra.Command{
	Use:   "encrypt PRIVATE_KEY_HEX",
	Short: "Seal a private key with the configured vault key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		v, err := cfg.NewVault()
		if err != nil {
			return err
		}
		sealed, err := v.Encrypt([]byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return nil
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a wallet and print its address and sealed key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		params, err := kaspaapi.NetworkParams(cfg.NetworkID)
		if err != nil {
			return err
		}
		v, err := cfg.NewVault()
		if err != nil {
			return err
		}
		id, err := identity.Generate(params)
		if err != nil {
			return err
		}
		defer id.Destroy()
		sealed, err := v.Encrypt([]byte(id.PrivateKeyHex()))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "address:       %s\nencrypted_key: %s\n", id.Address(), sealed)
		return nil
	},
}

var weightCmd = &cobra.Command{
	Use:   "weight AMOUNT",
	Short: "Show the voting power of a vote fee (base units)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		amount, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[0])
		}
		calc := cfg.VoteCalculator()
		res, err := calc.Weight(amount)
		if err != nil {
			return err
		}
		th, err := calc.Thresholds()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "votes: %d\ntier:  %s\nmax:   %d\n", res.Votes, res.Tier, th.Max)
		return nil
	},
}
