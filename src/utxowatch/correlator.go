// Package utxowatch correlates utxo-changed notifications with a transaction
// the caller is waiting on.
package utxowatch

import (
	"context"
	"time"

	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Subscriber is the part of a node connection the correlator needs.
type Subscriber interface {
	SubscribeUTXOsChanged(addresses []string) (<-chan model.UTXOChange, func(), error)
	GetUTXOs(address string) ([]*model.UTXO, error)
}

// Correlator watches a single address for the duration of one pending
// operation. It is not reusable after AwaitConfirmation returns.
type Correlator struct {
	node        Subscriber
	address     string
	changes     <-chan model.UTXOChange
	unsubscribe func()
	logger      *zap.Logger

	// FallbackInterval, when non-zero, also polls the live utxo set in case a
	// notification was missed.
	FallbackInterval time.Duration
}

// Watch subscribes before anything is submitted so no notification can slip
// between submission and the wait.
func Watch(node Subscriber, address string, logger *zap.Logger) (*Correlator, error) {
	changes, unsubscribe, err := node.SubscribeUTXOsChanged([]string{address})
	if err != nil {
		return nil, errors.Wrapf(err, "failed subscribing to utxo changes for %s", address)
	}
	return &Correlator{
		node:        node,
		address:     address,
		changes:     changes,
		unsubscribe: unsubscribe,
		logger:      logger.With(zap.String("component", "utxowatch"), zap.String("wallet", address)),
	}, nil
}

func (c *Correlator) Close() {
	c.unsubscribe()
}

// Matches reports whether a batch confirms expectedTxID for address: the batch
// must spend from the address and credit it an output of the expected transaction.
func Matches(change model.UTXOChange, address, expectedTxID string) bool {
	spent := false
	for _, u := range change.Removed {
		if u.Address == address {
			spent = true
			break
		}
	}
	if !spent {
		return false
	}
	for _, u := range change.Added {
		if u.Address == address && u.TransactionID == expectedTxID {
			return true
		}
	}
	return false
}

// AwaitConfirmation blocks until expectedTxID is observed, the deadline passes
// (false, nil) or ctx is cancelled. The subscription is released on return.
func (c *Correlator) AwaitConfirmation(ctx context.Context, expectedTxID string, deadline time.Time) (bool, error) {
	defer c.Close()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var poll <-chan time.Time
	if c.FallbackInterval > 0 {
		ticker := time.NewTicker(c.FallbackInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			c.logger.Warn("confirmation deadline passed", zap.String("txid", expectedTxID))
			return false, nil
		case change, ok := <-c.changes:
			if !ok {
				return false, errors.Errorf("utxo subscription for %s closed while waiting on %s", c.address, expectedTxID)
			}
			if Matches(change, c.address, expectedTxID) {
				c.logger.Info("transaction confirmed", zap.String("txid", expectedTxID))
				return true, nil
			}
		case <-poll:
			utxos, err := c.node.GetUTXOs(c.address)
			if err != nil {
				c.logger.Warn("fallback utxo poll failed", zap.Error(err))
				continue
			}
			for _, u := range utxos {
				if u.TransactionID == expectedTxID {
					c.logger.Info("transaction confirmed by poll", zap.String("txid", expectedTxID))
					return true, nil
				}
			}
		}
	}
}
