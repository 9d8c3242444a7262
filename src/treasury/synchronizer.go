// Package treasury mirrors treasury wallet history from the kasplex and kaspa
// rest apis into the append-only treasury ledger.
package treasury

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize = 50
	DefaultMaxPages = 1000
)

// Store is the treasury ledger. Rows are only ever inserted.
type Store interface {
	TreasuryRowExists(ctx context.Context, hash string) (bool, error)
	PutTreasuryRow(ctx context.Context, row *model.TreasuryRow) error
}

type Config struct {
	Wallets []model.TreasuryWallet
	// Tick limits the token walk to one ticker, empty for all.
	Tick     string
	PageSize int
	MaxPages int
}

type Stats struct {
	Inserted int64
	Skipped  int64
	Failed   int64
}

type Synchronizer struct {
	tokens TokenHistory
	native NativeHistory
	store  Store
	cfg    Config
	// hashes known to be stored, saves a round trip on re-walks
	seen   *cache.Cache
	logger *zap.Logger
}

func NewSynchronizer(tokens TokenHistory, native NativeHistory, store Store, cfg Config, logger *zap.Logger) *Synchronizer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Synchronizer{
		tokens: tokens,
		native: native,
		store:  store,
		cfg:    cfg,
		seen:   cache.New(6*time.Hour, 30*time.Minute),
		logger: logger.With(zap.String("component", "treasury")),
	}
}

// SyncAll syncs every configured wallet. A failing wallet is logged and the
// run moves on to the next one.
func (s *Synchronizer) SyncAll(ctx context.Context) Stats {
	start := time.Now()
	total := Stats{}
	for _, wallet := range s.cfg.Wallets {
		stats, err := s.SyncWallet(ctx, wallet)
		total.Inserted += stats.Inserted
		total.Skipped += stats.Skipped
		total.Failed += stats.Failed
		if err != nil {
			s.logger.Error("failed syncing treasury wallet", zap.String("wallet", string(wallet.Address)),
				zap.String("label", wallet.Label), zap.Error(err))
			continue
		}
	}
	prometheusSyncDuration.Observe(time.Since(start).Seconds())
	s.logger.Info(fmt.Sprintf("treasury sync complete: %d inserted, %d skipped, %d failed in %s",
		total.Inserted, total.Skipped, total.Failed, time.Since(start)))
	return total
}

// SyncWallet fetches both histories of wallet concurrently, then records the
// token operations before the native transactions. A reveal transaction shows
// up in both histories under one hash and is stored as the krc20 operation.
// Rows fetched before a walk failed are still recorded.
func (s *Synchronizer) SyncWallet(ctx context.Context, wallet model.TreasuryWallet) (Stats, error) {
	stats := &Stats{}
	logger := s.logger.With(zap.String("wallet", string(wallet.Address)))

	var tokenRows, nativeRows []*model.TreasuryRow
	g := errgroup.Group{}
	g.Go(func() error {
		var err error
		tokenRows, err = s.walkTokenOperations(ctx, wallet, stats, logger)
		return errors.Wrap(err, "token history")
	})
	g.Go(func() error {
		var err error
		nativeRows, err = s.walkNativeTransactions(ctx, wallet, stats, logger)
		return errors.Wrap(err, "native history")
	})
	err := g.Wait()

	for _, row := range tokenRows {
		s.record(ctx, row, stats, logger)
	}
	for _, row := range nativeRows {
		s.record(ctx, row, stats, logger)
	}
	return *stats, err
}

// walkTokenOperations follows the next cursor until it is empty or stops moving.
func (s *Synchronizer) walkTokenOperations(ctx context.Context, wallet model.TreasuryWallet, stats *Stats, logger *zap.Logger) ([]*model.TreasuryRow, error) {
	var rows []*model.TreasuryRow
	next := ""
	for page := 0; page < s.cfg.MaxPages; page++ {
		resp, err := s.tokens.OperationList(ctx, string(wallet.Address), s.cfg.Tick, next)
		if err != nil {
			return rows, err
		}
		for _, op := range resp.Result {
			row, ok, err := classifyTokenOperation(wallet, op)
			if err != nil {
				logger.Warn("skipping malformed token operation", zap.Error(err))
				prometheusRowsSkipped.WithLabelValues(string(model.TreasuryRowKRC20), "malformed").Inc()
				atomic.AddInt64(&stats.Failed, 1)
				continue
			}
			if !ok {
				prometheusRowsSkipped.WithLabelValues(string(model.TreasuryRowKRC20), "unaccepted").Inc()
				continue
			}
			rows = append(rows, row)
		}
		if resp.Next == "" || resp.Next == next {
			return rows, nil
		}
		next = resp.Next
	}
	logger.Warn(fmt.Sprintf("token history walk stopped at the %d page cap", s.cfg.MaxPages))
	return rows, nil
}

// walkNativeTransactions pages backwards by block time until a page comes back
// empty or the watermark stops moving. The api's before bound is exclusive, so
// each page asks for one millisecond past the previous oldest block time and
// transactions sharing that time are fetched again and deduplicated on record.
// More than a page of transactions at one block time still ends the walk.
func (s *Synchronizer) walkNativeTransactions(ctx context.Context, wallet model.TreasuryWallet, stats *Stats, logger *zap.Logger) ([]*model.TreasuryRow, error) {
	var rows []*model.TreasuryRow
	before := int64(0)
	for page := 0; page < s.cfg.MaxPages; page++ {
		txs, err := s.native.AddressTransactions(ctx, string(wallet.Address), before, s.cfg.PageSize)
		if err != nil {
			return rows, err
		}
		if len(txs) == 0 {
			return rows, nil
		}
		oldest := txs[0].BlockTime
		for _, tx := range txs {
			if tx.BlockTime < oldest {
				oldest = tx.BlockTime
			}
			row, ok, err := classifyNativeTransaction(wallet, tx)
			if err != nil {
				logger.Warn("skipping malformed native transaction", zap.Error(err))
				prometheusRowsSkipped.WithLabelValues(string(model.TreasuryRowKaspa), "malformed").Inc()
				atomic.AddInt64(&stats.Failed, 1)
				continue
			}
			if !ok {
				prometheusRowsSkipped.WithLabelValues(string(model.TreasuryRowKaspa), "unaccepted").Inc()
				continue
			}
			rows = append(rows, row)
		}
		next := oldest + 1
		if before != 0 && next >= before {
			logger.Warn("native history watermark did not advance", zap.Int64("before", before))
			return rows, nil
		}
		before = next
	}
	logger.Warn(fmt.Sprintf("native history walk stopped at the %d page cap", s.cfg.MaxPages))
	return rows, nil
}

// record inserts row unless its hash is already stored. Failures are logged
// with enough context to replay and never abort the page.
func (s *Synchronizer) record(ctx context.Context, row *model.TreasuryRow, stats *Stats, logger *zap.Logger) {
	if _, ok := s.seen.Get(row.Hash); ok {
		prometheusRowsSkipped.WithLabelValues(string(row.Type), "duplicate").Inc()
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}
	fields := []zap.Field{zap.String("hash", row.Hash), zap.String("type", string(row.Type)),
		zap.String("ticker", row.Ticker), zap.String("amount", row.DecimalAmount())}

	exists, err := s.store.TreasuryRowExists(ctx, row.Hash)
	if err != nil {
		logger.Error("failed checking treasury row", append(fields, zap.Error(err))...)
		atomic.AddInt64(&stats.Failed, 1)
		return
	}
	if exists {
		s.seen.SetDefault(row.Hash, struct{}{})
		prometheusRowsSkipped.WithLabelValues(string(row.Type), "duplicate").Inc()
		atomic.AddInt64(&stats.Skipped, 1)
		return
	}
	if err := s.store.PutTreasuryRow(ctx, row); err != nil {
		logger.Error("failed inserting treasury row", append(fields, zap.Error(err))...)
		atomic.AddInt64(&stats.Failed, 1)
		return
	}
	s.seen.SetDefault(row.Hash, struct{}{})
	prometheusRowsInserted.WithLabelValues(string(row.Type)).Inc()
	atomic.AddInt64(&stats.Inserted, 1)
	logger.Info("recorded treasury row", fields...)
}
