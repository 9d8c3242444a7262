// Package transfer sends plain value from a vault wallet to an address.
package transfer

import (
	"context"
	"fmt"

	"github.com/onemorebsmith/kaspa-governance/src/exclusion"
	"github.com/onemorebsmith/kaspa-governance/src/identity"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/onemorebsmith/kaspa-governance/src/txbuilder"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Engine struct {
	nodes  kaspaapi.Connector
	locks  exclusion.Registry
	opts   txbuilder.Options
	logger *zap.Logger
}

func NewEngine(nodes kaspaapi.Connector, locks exclusion.Registry, opts txbuilder.Options, logger *zap.Logger) *Engine {
	initPrometheusMetrics()
	return &Engine{
		nodes:  nodes,
		locks:  locks,
		opts:   opts,
		logger: logger.With(zap.String("component", "transfer")),
	}
}

// Transfer pays amount sompi to destination and returns the id of the last
// transaction submitted. Large utxo sets are compounded first; the batch is
// submitted strictly in order and aborts on the first rejection.
func (e *Engine) Transfer(ctx context.Context, id *identity.Identity, destination string, amount uint64) (string, error) {
	if amount == 0 {
		return "", errors.Wrap(model.ErrBelowMinimum, "transfer amount must be positive")
	}
	var txID string
	ran, err := e.locks.RunExclusive(ctx, exclusion.WalletKey(id.Address()), func(ctx context.Context) error {
		var err error
		txID, err = e.transfer(ctx, id, destination, amount)
		return err
	})
	if err != nil {
		prometheusTransfers.WithLabelValues(string(model.Kind(err))).Inc()
		if !ran {
			return "", errors.Wrapf(err, "failed locking wallet %s", id.Address())
		}
		return "", err
	}
	if !ran {
		prometheusTransfers.WithLabelValues("busy").Inc()
		return "", errors.Wrapf(model.ErrWalletBusy, "wallet %s", id.Address())
	}
	prometheusTransfers.WithLabelValues("ok").Inc()
	return txID, nil
}

func (e *Engine) transfer(ctx context.Context, id *identity.Identity, destination string, amount uint64) (string, error) {
	logger := e.logger.With(zap.String("wallet", id.Address()), zap.String("destination", destination),
		zap.Uint64("amount", amount))

	payment, err := txbuilder.PaymentTo(destination, amount, id.Params())
	if err != nil {
		return "", err
	}

	node, err := e.nodes.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer node.Close()

	utxos, err := node.GetUTXOs(id.Address())
	if err != nil {
		return "", err
	}
	plan, err := txbuilder.Plan(utxos, []txbuilder.Payment{payment}, id.ScriptPublicKey(), id.Address(), e.opts)
	if err != nil {
		return "", err
	}
	logger.Info(fmt.Sprintf("transfer planned as %d transaction(s) from %d utxos", len(plan), len(utxos)))

	submitted := make([]string, 0, len(plan))
	for i, tx := range plan {
		if err := ctx.Err(); err != nil {
			return "", &model.SubmissionError{Partial: submitted, Err: err}
		}
		if err := txbuilder.Sign(tx, id.KeyPair(), id.ScriptPublicKey()); err != nil {
			return "", &model.SubmissionError{Partial: submitted, Err: err}
		}
		txID, err := node.SubmitTransaction(tx)
		if err != nil {
			logger.Error(fmt.Sprintf("transaction %d/%d rejected", i+1, len(plan)),
				zap.Strings("accepted", submitted), zap.Error(err))
			return "", &model.SubmissionError{Partial: submitted, Err: err}
		}
		prometheusSubmittedTxs.Inc()
		submitted = append(submitted, txID)
		logger.Info(fmt.Sprintf("submitted transaction %d/%d", i+1, len(plan)), zap.String("txid", txID))
	}
	return submitted[len(submitted)-1], nil
}
