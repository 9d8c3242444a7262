package governance

import (
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/common"
	"github.com/onemorebsmith/kaspa-governance/src/krc20"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/onemorebsmith/kaspa-governance/src/treasury"
	"github.com/onemorebsmith/kaspa-governance/src/txbuilder"
	"github.com/onemorebsmith/kaspa-governance/src/vault"
	"github.com/onemorebsmith/kaspa-governance/src/votes"
	"github.com/pkg/errors"
)

// WalletConfig is a signing wallet. The key is the vault encrypted hex private key.
type WalletConfig struct {
	Address      string `yaml:"address"`
	EncryptedKey string `yaml:"encrypted_key"`
}

type Config struct {
	common.CommonConfig `yaml:",inline"`

	VaultKey        string `yaml:"vault_key"`
	VaultPassphrase string `yaml:"vault_passphrase"`
	VaultSalt       string `yaml:"vault_salt"`

	Wallets     map[string]WalletConfig `yaml:"wallets"`
	BurnAddress string                  `yaml:"burn_address"`

	PriorityFee         uint64 `yaml:"priority_fee"`
	CommitAmount        uint64 `yaml:"commit_amount"`
	RevealFee           uint64 `yaml:"reveal_fee"`
	MaxInputsPerTx      int    `yaml:"max_inputs_per_tx"`
	OperationTimeoutMs  int64  `yaml:"operation_timeout_ms"`
	FallbackPollMs      int64  `yaml:"fallback_poll_ms"`
	RevealCheckAttempts int    `yaml:"reveal_check_attempts"`
	RevealCheckDelayMs  int64  `yaml:"reveal_check_delay_ms"`

	MinVoteFee uint64 `yaml:"min_vote_fee"`
	MaxVoteFee uint64 `yaml:"max_vote_fee"`
	MaxVotes   uint64 `yaml:"max_votes"`

	TreasuryWallets []model.TreasuryWallet `yaml:"treasury_wallets"`
	TreasuryTick    string                 `yaml:"treasury_tick"`
	KasplexAPI      string                 `yaml:"kasplex_api"`
	KaspaRestAPI    string                 `yaml:"kaspa_rest_api"`
	APIRateLimit    float64                `yaml:"api_rate_limit"`
	SyncInterval    string                 `yaml:"sync_interval"`
	MaxPages        int                    `yaml:"max_pages"`
}

func (c Config) TxOptions() txbuilder.Options {
	return txbuilder.Options{PriorityFee: c.PriorityFee, MaxInputsPerTransaction: c.MaxInputsPerTx}
}

func (c Config) KRC20Config() krc20.Config {
	return krc20.Config{
		CommitAmount:        c.CommitAmount,
		RevealFee:           c.RevealFee,
		Timeout:             time.Duration(c.OperationTimeoutMs) * time.Millisecond,
		FallbackInterval:    time.Duration(c.FallbackPollMs) * time.Millisecond,
		RevealCheckAttempts: c.RevealCheckAttempts,
		RevealCheckDelay:    time.Duration(c.RevealCheckDelayMs) * time.Millisecond,
		TxOptions:           c.TxOptions(),
	}
}

func (c Config) VoteCalculator() votes.Calculator {
	return votes.Calculator{MinFee: c.MinVoteFee, MaxFee: c.MaxVoteFee, MaxVotes: c.MaxVotes}
}

func (c Config) TreasuryConfig() treasury.Config {
	return treasury.Config{Wallets: c.TreasuryWallets, Tick: c.TreasuryTick, MaxPages: c.MaxPages}
}

// SyncEvery parses sync_interval, defaulting to 10 minutes.
func (c Config) SyncEvery() (time.Duration, error) {
	if c.SyncInterval == "" {
		return 10 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.SyncInterval)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid sync_interval %q", c.SyncInterval)
	}
	return d, nil
}

// NewVault builds the vault from vault_key (hex) or vault_passphrase + vault_salt.
func (c Config) NewVault() (*vault.Vault, error) {
	var (
		key []byte
		err error
	)
	switch {
	case c.VaultKey != "":
		key, err = vault.KeyFromHex(c.VaultKey)
	case c.VaultPassphrase != "":
		key, err = vault.KeyFromPassphrase(c.VaultPassphrase, c.VaultSalt)
	default:
		return nil, errors.Wrap(model.ErrSecret, "neither vault_key nor vault_passphrase configured")
	}
	if err != nil {
		return nil, err
	}
	return vault.NewVault(key)
}
