// Package governance wires the vault, the ledger connection and the engines
// together for the binaries.
package governance

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/onemorebsmith/kaspa-governance/src/exclusion"
	"github.com/onemorebsmith/kaspa-governance/src/identity"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/onemorebsmith/kaspa-governance/src/krc20"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/onemorebsmith/kaspa-governance/src/transfer"
	"github.com/onemorebsmith/kaspa-governance/src/vault"
	"github.com/onemorebsmith/kaspa-governance/src/votes"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Service struct {
	cfg       Config
	params    *dagconfig.Params
	vault     *vault.Vault
	transfers *transfer.Engine
	krc20     *krc20.Engine
	votes     votes.Calculator
	logger    *zap.Logger
}

func New(cfg Config, nodes kaspaapi.Connector, locks exclusion.Registry, logger *zap.Logger) (*Service, error) {
	params, err := kaspaapi.NetworkParams(cfg.NetworkID)
	if err != nil {
		return nil, err
	}
	v, err := cfg.NewVault()
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		params:    params,
		vault:     v,
		transfers: transfer.NewEngine(nodes, locks, cfg.TxOptions(), logger),
		krc20:     krc20.NewEngine(nodes, locks, cfg.KRC20Config(), logger),
		votes:     cfg.VoteCalculator(),
		logger:    logger.Named("governance"),
	}, nil
}

// NewLocks is the redis registry when redis is configured, the in-process one otherwise.
func NewLocks(cfg Config, logger *zap.Logger) exclusion.Registry {
	if cfg.RedisAddress == "" {
		return exclusion.NewLocal()
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	return exclusion.NewRedis(client, "kaspa-governance:", time.Duration(2*cfg.OperationTimeoutMs)*time.Millisecond+10*time.Minute, logger)
}

func (s *Service) Params() *dagconfig.Params { return s.params }

// OpenWallet decrypts the named wallet. The caller must Destroy it.
func (s *Service) OpenWallet(name string) (*identity.Identity, error) {
	w, ok := s.cfg.Wallets[name]
	if !ok {
		return nil, errors.Errorf("unknown wallet %q", name)
	}
	id, err := identity.Open(s.vault, w.EncryptedKey, s.params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed opening wallet %s", name)
	}
	if w.Address != "" && id.Address() != w.Address {
		id.Destroy()
		return nil, errors.Wrapf(model.ErrSecret, "wallet %s key derives %s, configured %s", name, id.Address(), w.Address)
	}
	return id, nil
}

// Inscribe runs one krc20 operation signed by the named wallet.
func (s *Service) Inscribe(ctx context.Context, wallet string, desc model.OperationDescriptor) (string, error) {
	id, err := s.OpenWallet(wallet)
	if err != nil {
		return "", err
	}
	defer id.Destroy()
	return s.krc20.Execute(ctx, krc20.Operation{Descriptor: desc, Identity: id})
}

// Burn sends amount (whole tokens, e.g. "5") of tick from wallet to the burn address.
func (s *Service) Burn(ctx context.Context, wallet, tick, amount string) (string, error) {
	if s.cfg.BurnAddress == "" {
		return "", errors.New("burn_address not configured")
	}
	units, err := krc20.ScaleAmount(amount)
	if err != nil {
		return "", err
	}
	s.logger.Info("burning tokens", zap.String("wallet", wallet), zap.String("tick", tick),
		zap.String("amount", units), zap.String("to", s.cfg.BurnAddress))
	return s.Inscribe(ctx, wallet, model.OperationDescriptor{
		Protocol: krc20.Protocol,
		Op:       "transfer",
		Tick:     tick,
		Amount:   units,
		To:       s.cfg.BurnAddress,
	})
}

// Transfer sends amount KAS (decimal, e.g. "1.5") from wallet to destination.
func (s *Service) Transfer(ctx context.Context, wallet, destination, amount string) (string, error) {
	units, ok := model.ParseUnits(amount)
	if !ok || units.Sign() <= 0 || !units.IsUint64() {
		return "", errors.Errorf("invalid KAS amount %q", amount)
	}
	id, err := s.OpenWallet(wallet)
	if err != nil {
		return "", err
	}
	defer id.Destroy()
	return s.transfers.Transfer(ctx, id, destination, units.Uint64())
}

func (s *Service) Weight(amount uint64) (votes.Result, error) {
	return s.votes.Weight(amount)
}
