package governance

import (
	"context"

	"github.com/onemorebsmith/kaspa-governance/src/postgres"
	"github.com/onemorebsmith/kaspa-governance/src/sqlitestore"
	"github.com/onemorebsmith/kaspa-governance/src/treasury"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TreasuryBackend is a treasury store that can report its health.
type TreasuryBackend interface {
	treasury.Store
	Ping(ctx context.Context) error
}

// OpenTreasuryStore uses sqlite when sqlite_path is set and postgres otherwise.
func OpenTreasuryStore(ctx context.Context, cfg Config) (TreasuryBackend, error) {
	if cfg.SqlitePath != "" {
		return sqlitestore.Open(cfg.SqlitePath)
	}
	if cfg.PostgresConfig == "" {
		return nil, errors.New("one of postgres or sqlite_path must be configured")
	}
	postgres.ConfigurePostgres(cfg.PostgresConfig)
	if err := postgres.Migrate(ctx); err != nil {
		return nil, err
	}
	return postgres.TreasuryStore{}, nil
}

func NewSynchronizer(cfg Config, store treasury.Store, logger *zap.Logger) (*treasury.Synchronizer, error) {
	if cfg.KasplexAPI == "" || cfg.KaspaRestAPI == "" {
		return nil, errors.New("kasplex_api and kaspa_rest_api must be configured")
	}
	return treasury.NewSynchronizer(
		treasury.NewKasplexClient(cfg.KasplexAPI, nil, cfg.APIRateLimit),
		treasury.NewKaspaRestClient(cfg.KaspaRestAPI, nil, cfg.APIRateLimit),
		store,
		cfg.TreasuryConfig(),
		logger,
	), nil
}
