package kaspaapi

import (
	"context"
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Connector opens a fresh ledger connection, one per operation.
type Connector interface {
	Connect(ctx context.Context) (Node, error)
}

// Resolver walks an ordered list of kaspad endpoints and returns the first one
// that is synced and utxo-indexed.
type Resolver struct {
	Candidates []string
	Attempts   int
	Delay      time.Duration
	logger     *zap.Logger
}

func NewResolver(candidates []string, logger *zap.Logger) *Resolver {
	return &Resolver{
		Candidates: candidates,
		Attempts:   3,
		Delay:      5 * time.Second,
		logger:     logger.Named("resolver"),
	}
}

func (r *Resolver) Connect(ctx context.Context) (Node, error) {
	if len(r.Candidates) == 0 {
		return nil, errors.New("no kaspad endpoints configured")
	}
	var lastErr error
	for _, address := range r.Candidates {
		api, err := NewKaspaAPI(address, r.logger)
		if err != nil {
			r.logger.Warn("kaspad endpoint unreachable", zap.String("kaspad", address), zap.Error(err))
			lastErr = errors.Wrap(model.ErrNodeNotReady, err.Error())
			continue
		}
		if err := api.WaitForSync(ctx, r.Attempts, r.Delay); err != nil {
			api.Close()
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		return api, nil
	}
	return nil, lastErr
}
