package krc20

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/kaspad/domain/consensus/utils/txscript"
	"github.com/looplab/fsm"
	"github.com/onemorebsmith/kaspa-governance/src/exclusion"
	"github.com/onemorebsmith/kaspa-governance/src/identity"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/onemorebsmith/kaspa-governance/src/txbuilder"
	"github.com/onemorebsmith/kaspa-governance/src/utxowatch"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DefaultCommitAmount = 30_000_000 // 0.3 KAS
	DefaultRevealFee    = 30_000_000
	DefaultTimeout      = 120 * time.Second
)

type Config struct {
	CommitAmount uint64
	RevealFee    uint64
	// Timeout bounds each confirmation wait.
	Timeout          time.Duration
	FallbackInterval time.Duration
	// RevealCheckAttempts is how many times the sender utxo set is checked for
	// the reveal output before giving up. One means fail fast.
	RevealCheckAttempts int
	RevealCheckDelay    time.Duration
	TxOptions           txbuilder.Options
}

func (c Config) withDefaults() Config {
	if c.CommitAmount == 0 {
		c.CommitAmount = DefaultCommitAmount
	}
	if c.RevealFee == 0 {
		c.RevealFee = DefaultRevealFee
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RevealCheckAttempts <= 0 {
		c.RevealCheckAttempts = 1
	}
	return c
}

// Operation is one krc20 operation signed by Identity.
type Operation struct {
	Descriptor model.OperationDescriptor
	Identity   *identity.Identity
}

type Engine struct {
	nodes  kaspaapi.Connector
	locks  exclusion.Registry
	cfg    Config
	logger *zap.Logger
}

func NewEngine(nodes kaspaapi.Connector, locks exclusion.Registry, cfg Config, logger *zap.Logger) *Engine {
	initPrometheusMetrics()
	return &Engine{
		nodes:  nodes,
		locks:  locks,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "krc20")),
	}
}

// Execute commits op, waits for the commit to confirm, reveals it and waits
// for the reveal. It returns the reveal transaction id. Timeouts are final:
// nothing is resubmitted.
func (e *Engine) Execute(ctx context.Context, op Operation) (string, error) {
	r, err := e.newRun(op)
	if err != nil {
		return "", err
	}
	var revealID string
	ran, err := e.locks.RunExclusive(ctx, exclusion.WalletKey(op.Identity.Address()), func(ctx context.Context) error {
		var err error
		revealID, err = r.execute(ctx)
		return err
	})
	if err != nil {
		prometheusOperations.WithLabelValues(op.Descriptor.Op, string(model.Kind(err))).Inc()
		if !ran {
			return "", errors.Wrapf(err, "failed locking wallet %s", op.Identity.Address())
		}
		return "", err
	}
	if !ran {
		prometheusOperations.WithLabelValues(op.Descriptor.Op, "busy").Inc()
		return "", errors.Wrapf(model.ErrWalletBusy, "wallet %s", op.Identity.Address())
	}
	prometheusOperations.WithLabelValues(op.Descriptor.Op, "ok").Inc()
	return revealID, nil
}

// run is the state of a single Execute call.
type run struct {
	engine       *Engine
	op           Operation
	redeemScript []byte
	commitAddr   string
	commitScript *externalapi.ScriptPublicKey
	machine      *fsm.FSM
	pending      *model.PendingOperation
	logger       *zap.Logger
}

func (e *Engine) newRun(op Operation) (*run, error) {
	envelope, err := EnvelopeFor(op.Descriptor)
	if err != nil {
		return nil, err
	}
	payload, err := envelope.Encode()
	if err != nil {
		return nil, err
	}
	redeem, err := RedeemScript(op.Identity.PublicKey(), payload)
	if err != nil {
		return nil, err
	}
	addr, script, err := CommitAddress(redeem, op.Identity.Params())
	if err != nil {
		return nil, err
	}
	r := &run{
		engine:       e,
		op:           op,
		redeemScript: redeem,
		commitAddr:   addr.EncodeAddress(),
		commitScript: script,
		logger: e.logger.With(
			zap.String("wallet", op.Identity.Address()),
			zap.String("op", op.Descriptor.Op),
			zap.String("tick", op.Descriptor.Tick),
			zap.String("amount", op.Descriptor.Amount),
			zap.String("p2sh", addr.EncodeAddress()),
		),
	}
	r.machine = newOperationFSM(fsm.Callbacks{
		"enter_state": func(_ context.Context, ev *fsm.Event) {
			r.logger.Debug(fmt.Sprintf("%s -> %s", ev.Src, ev.Dst))
		},
	})
	return r, nil
}

func (r *run) transition(ctx context.Context, event string) error {
	if err := r.machine.Event(ctx, event); err != nil {
		return errors.Wrapf(err, "invalid transition %s from %s", event, r.machine.Current())
	}
	return nil
}

func (r *run) fail(ctx context.Context, err error) error {
	fields := []zap.Field{zap.String("state", r.machine.Current()), zap.Error(err)}
	if r.pending != nil {
		fields = append(fields, zap.String("pending_id", r.pending.ID),
			zap.String("phase", string(r.pending.Phase)),
			zap.String("txid", r.pending.SubmittedTxID))
	}
	if r.machine.Can(evFail) {
		r.machine.Event(ctx, evFail)
	}
	r.logger.Error("krc20 operation failed", fields...)
	return err
}

func (r *run) execute(ctx context.Context) (string, error) {
	cfg := r.engine.cfg
	sender := r.op.Identity

	node, err := r.engine.nodes.Connect(ctx)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	defer node.Close()

	// commit
	if err := r.transition(ctx, evBuildCommit); err != nil {
		return "", r.fail(ctx, err)
	}
	utxos, err := node.GetUTXOs(sender.Address())
	if err != nil {
		return "", r.fail(ctx, err)
	}
	plan, err := txbuilder.Plan(utxos, []txbuilder.Payment{{ScriptPublicKey: r.commitScript, Amount: cfg.CommitAmount}},
		sender.ScriptPublicKey(), sender.Address(), cfg.TxOptions)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	watch, err := r.watch(node)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	commitID, err := r.submitAll(node, plan)
	if err != nil {
		watch.Close()
		return "", r.fail(ctx, err)
	}
	r.track(model.PhaseCommit, commitID)
	if err := r.transition(ctx, evSubmitCommit); err != nil {
		watch.Close()
		return "", r.fail(ctx, err)
	}
	r.logger.Info("commit submitted", zap.String("txid", commitID), zap.Uint64("commit_amount", cfg.CommitAmount))
	if err := r.await(ctx, watch, model.ErrCommitTimeout); err != nil {
		return "", r.fail(ctx, err)
	}
	if err := r.transition(ctx, evConfirmCommit); err != nil {
		return "", r.fail(ctx, err)
	}

	// reveal
	if err := r.transition(ctx, evBuildReveal); err != nil {
		return "", r.fail(ctx, err)
	}
	reveal, err := r.buildReveal(node, commitID)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	if !r.machine.Can(evSubmitReveal) {
		return "", r.fail(ctx, errors.Errorf("reveal submission not allowed from %s", r.machine.Current()))
	}
	watch, err = r.watch(node)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	revealID, err := node.SubmitTransaction(reveal)
	if err != nil {
		watch.Close()
		return "", r.fail(ctx, &model.SubmissionError{Partial: []string{commitID}, Err: err})
	}
	prometheusSubmittedTxs.WithLabelValues(string(model.PhaseReveal)).Inc()
	r.track(model.PhaseReveal, revealID)
	if err := r.transition(ctx, evSubmitReveal); err != nil {
		watch.Close()
		return "", r.fail(ctx, err)
	}
	r.logger.Info("reveal submitted", zap.String("commit_txid", commitID), zap.String("txid", revealID))
	if err := r.await(ctx, watch, model.ErrRevealTimeout); err != nil {
		return "", r.fail(ctx, err)
	}
	if err := r.checkAccepted(ctx, node, revealID); err != nil {
		return "", r.fail(ctx, err)
	}
	if err := r.transition(ctx, evConfirmReveal); err != nil {
		return "", r.fail(ctx, err)
	}
	r.logger.Info("krc20 operation complete", zap.String("commit_txid", commitID), zap.String("txid", revealID))
	return revealID, nil
}

func (r *run) watch(node kaspaapi.Node) (*utxowatch.Correlator, error) {
	watch, err := utxowatch.Watch(node, r.op.Identity.Address(), r.logger)
	if err != nil {
		return nil, err
	}
	watch.FallbackInterval = r.engine.cfg.FallbackInterval
	return watch, nil
}

func (r *run) track(phase model.OperationPhase, txID string) {
	r.pending = &model.PendingOperation{
		ID:            uuid.NewString(),
		Phase:         phase,
		SubmittedTxID: txID,
		ExpectedTxID:  txID,
		Deadline:      time.Now().Add(r.engine.cfg.Timeout),
	}
}

// await blocks on the pending operation's confirmation, failing with timeoutErr at the deadline.
func (r *run) await(ctx context.Context, watch *utxowatch.Correlator, timeoutErr error) error {
	start := time.Now()
	ok, err := watch.AwaitConfirmation(ctx, r.pending.ExpectedTxID, r.pending.Deadline)
	prometheusConfirmWait.WithLabelValues(string(r.pending.Phase)).Observe(time.Since(start).Seconds())
	if err != nil {
		return errors.Wrapf(err, "waiting on %s %s", r.pending.Phase, r.pending.ExpectedTxID)
	}
	if !ok {
		return errors.Wrapf(timeoutErr, "%s %s not observed by %s, manual reconciliation required",
			r.pending.Phase, r.pending.ExpectedTxID, r.pending.Deadline.Format(time.RFC3339))
	}
	r.pending.Confirmed = true
	return nil
}

// submitAll submits a planned batch in order and returns the last id.
func (r *run) submitAll(node kaspaapi.Node, plan []*externalapi.DomainTransaction) (string, error) {
	sender := r.op.Identity
	submitted := make([]string, 0, len(plan))
	for _, tx := range plan {
		if err := txbuilder.Sign(tx, sender.KeyPair(), sender.ScriptPublicKey()); err != nil {
			return "", &model.SubmissionError{Partial: submitted, Err: err}
		}
		txID, err := node.SubmitTransaction(tx)
		if err != nil {
			return "", &model.SubmissionError{Partial: submitted, Err: err}
		}
		prometheusSubmittedTxs.WithLabelValues(string(model.PhaseCommit)).Inc()
		submitted = append(submitted, txID)
	}
	return submitted[len(submitted)-1], nil
}

// buildReveal spends the commit output first, then the sender's utxos, and
// returns everything but the fee to the sender.
func (r *run) buildReveal(node kaspaapi.Node, commitID string) (*externalapi.DomainTransaction, error) {
	sender := r.op.Identity
	locked, err := node.GetUTXOs(r.commitAddr)
	if err != nil {
		return nil, err
	}
	var commitOut *model.UTXO
	for _, u := range locked {
		if u.TransactionID == commitID {
			commitOut = u
			break
		}
	}
	if commitOut == nil {
		return nil, errors.Errorf("commit output of %s not found at %s", commitID, r.commitAddr)
	}
	owned, err := node.GetUTXOs(sender.Address())
	if err != nil {
		return nil, err
	}
	sort.SliceStable(owned, func(i, j int) bool { return owned[i].Amount > owned[j].Amount })
	if limit := r.engine.cfg.TxOptions.MaxInputs() - 1; len(owned) > limit {
		owned = owned[:limit]
	}

	tx, err := txbuilder.Build(append([]*model.UTXO{commitOut}, owned...), nil, sender.ScriptPublicKey(), r.engine.cfg.RevealFee)
	if err != nil {
		return nil, err
	}
	if err := txbuilder.Sign(tx, sender.KeyPair(), sender.ScriptPublicKey()); err != nil {
		return nil, err
	}
	sig, err := txscript.RawTxInSignature(tx, 0, consensushashing.SigHashAll, sender.KeyPair(), &consensushashing.SighashReusedValues{})
	if err != nil {
		return nil, errors.Wrap(err, "failed signing commit input")
	}
	sigScript, err := revealSignatureScript(sig, r.redeemScript)
	if err != nil {
		return nil, err
	}
	tx.Inputs[0].SignatureScript = sigScript
	return tx, nil
}

// checkAccepted looks for the reveal's change output in the sender's utxo set.
func (r *run) checkAccepted(ctx context.Context, node kaspaapi.Node, revealID string) error {
	cfg := r.engine.cfg
	for attempt := 1; ; attempt++ {
		utxos, err := node.GetUTXOs(r.op.Identity.Address())
		if err != nil {
			return err
		}
		for _, u := range utxos {
			if u.TransactionID == revealID {
				return nil
			}
		}
		if attempt >= cfg.RevealCheckAttempts {
			return errors.Wrapf(model.ErrRevealNotAccepted, "reveal %s missing from %s after %d check(s)",
				revealID, r.op.Identity.Address(), attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.RevealCheckDelay):
		}
	}
}
