package krc20

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/onemorebsmith/kaspa-governance/src/exclusion"
	"github.com/onemorebsmith/kaspa-governance/src/identity"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi/kaspaapitest"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/onemorebsmith/kaspa-governance/src/txbuilder"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var params = &dagconfig.SimnetParams

func burnOperation(t *testing.T, sender *identity.Identity) Operation {
	burn, err := identity.Generate(params)
	if err != nil {
		t.Fatal(err)
	}
	return Operation{
		Identity: sender,
		Descriptor: model.OperationDescriptor{
			Op:     "transfer",
			Tick:   "TEST",
			Amount: "500000000",
			To:     burn.Address(),
		},
	}
}

func fundedSender(t *testing.T, node *kaspaapitest.FakeNode) *identity.Identity {
	sender, err := identity.Generate(params)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := node.Fund(sender.Address(), 10*model.KasDigitMultiplier); err != nil {
		t.Fatal(err)
	}
	return sender
}

func TestBurnEndToEnd(t *testing.T) {
	node := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, node)
	op := burnOperation(t, sender)
	engine := NewEngine(node, exclusion.NewLocal(), Config{Timeout: 5 * time.Second}, zap.NewNop())

	revealID, err := engine.Execute(context.Background(), op)
	if err != nil {
		t.Fatal(err)
	}

	submitted := node.Submitted()
	if len(submitted) != 2 {
		t.Fatalf("expected commit and reveal, got %d transactions", len(submitted))
	}
	commit, reveal := submitted[0], submitted[1]

	env, _ := EnvelopeFor(op.Descriptor)
	payload, _ := env.Encode()
	redeem, _ := RedeemScript(sender.PublicKey(), payload)
	p2sh, p2shScript, err := CommitAddress(redeem, params)
	if err != nil {
		t.Fatal(err)
	}
	if commit.Outputs[0].Value != DefaultCommitAmount || !commit.Outputs[0].ScriptPublicKey.Equal(p2shScript) {
		t.Fatalf("commit output 0 should pay %d to %s", DefaultCommitAmount, p2sh.EncodeAddress())
	}

	commitID := txbuilder.TransactionID(commit)
	if reveal.Inputs[0].PreviousOutpoint.TransactionID.String() != commitID {
		t.Fatal("reveal must spend the commit output first")
	}
	if len(reveal.Inputs) < 2 {
		t.Fatal("reveal should also spend the sender's utxos")
	}
	if !bytes.HasSuffix(reveal.Inputs[0].SignatureScript, redeem) {
		t.Fatal("p2sh input must carry the redeem script")
	}
	for _, out := range reveal.Outputs {
		if !out.ScriptPublicKey.Equal(sender.ScriptPublicKey()) {
			t.Fatal("reveal should only return change to the sender")
		}
	}
	if revealID != txbuilder.TransactionID(reveal) {
		t.Fatal("returned id is not the reveal id")
	}
	if node.Balance(p2sh.EncodeAddress()) != 0 {
		t.Fatal("commit output left unspent")
	}
	if node.Subscribers() != 0 {
		t.Fatal("subscriptions leaked")
	}
}

func TestCommitTimeoutNeverReveals(t *testing.T) {
	node := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, node)
	node.Withhold = true
	engine := NewEngine(node, exclusion.NewLocal(), Config{Timeout: 100 * time.Millisecond}, zap.NewNop())

	r, err := engine.newRun(burnOperation(t, sender))
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.execute(context.Background())
	if !errors.Is(err, model.ErrCommitTimeout) {
		t.Fatalf("expected commit timeout, got %v", err)
	}
	if model.Kind(err) != model.KindFatal {
		t.Fatal("commit timeout must be fatal")
	}
	if r.machine.Current() != StateFailed {
		t.Fatalf("expected failed state, got %s", r.machine.Current())
	}
	if n := len(node.Submitted()); n != 1 {
		t.Fatalf("only the commit may be submitted, got %d transactions", n)
	}
	if r.pending == nil || r.pending.Phase != model.PhaseCommit || r.pending.Confirmed {
		t.Fatalf("unexpected pending operation %+v", r.pending)
	}
}

// hidingNode confirms every submission but leaves the reveal out of the sender's utxo set.
type hidingNode struct {
	*kaspaapitest.FakeNode
	lock   sync.Mutex
	count  int
	hidden string
}

func (h *hidingNode) Connect(ctx context.Context) (kaspaapi.Node, error) { return h, nil }

func (h *hidingNode) SubmitTransaction(tx *externalapi.DomainTransaction) (string, error) {
	id, err := h.FakeNode.SubmitTransaction(tx)
	h.lock.Lock()
	defer h.lock.Unlock()
	h.count++
	if h.count == 2 {
		h.hidden = id
	}
	return id, err
}

func (h *hidingNode) GetUTXOs(address string) ([]*model.UTXO, error) {
	utxos, err := h.FakeNode.GetUTXOs(address)
	h.lock.Lock()
	defer h.lock.Unlock()
	out := utxos[:0]
	for _, u := range utxos {
		if h.hidden == "" || u.TransactionID != h.hidden {
			out = append(out, u)
		}
	}
	return out, err
}

func TestRevealNotAccepted(t *testing.T) {
	fake := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, fake)
	node := &hidingNode{FakeNode: fake}
	engine := NewEngine(node, exclusion.NewLocal(), Config{
		Timeout:             5 * time.Second,
		RevealCheckAttempts: 3,
		RevealCheckDelay:    time.Millisecond,
	}, zap.NewNop())

	_, err := engine.Execute(context.Background(), burnOperation(t, sender))
	if !errors.Is(err, model.ErrRevealNotAccepted) {
		t.Fatalf("expected reveal not accepted, got %v", err)
	}
	if len(fake.Submitted()) != 2 {
		t.Fatal("reveal should have been submitted exactly once")
	}
}

func TestExecuteWalletBusy(t *testing.T) {
	node := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, node)
	locks := exclusion.NewLocal()
	engine := NewEngine(node, locks, Config{}, zap.NewNop())

	locks.RunExclusive(context.Background(), exclusion.WalletKey(sender.Address()), func(ctx context.Context) error {
		_, err := engine.Execute(ctx, burnOperation(t, sender))
		if !errors.Is(err, model.ErrWalletBusy) {
			t.Fatalf("expected busy wallet, got %v", err)
		}
		return nil
	})
	if len(node.Submitted()) != 0 {
		t.Fatal("nothing should be submitted for a busy wallet")
	}
}

func TestCommitRejected(t *testing.T) {
	node := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, node)
	node.Reject = func(tx *externalapi.DomainTransaction) error { return errors.New("fee too low") }
	engine := NewEngine(node, exclusion.NewLocal(), Config{}, zap.NewNop())

	_, err := engine.Execute(context.Background(), burnOperation(t, sender))
	if !errors.Is(err, model.ErrSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	if node.Subscribers() != 0 {
		t.Fatal("subscription leaked")
	}
}

func TestRevealTimeout(t *testing.T) {
	node := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, node)
	node.WithholdAfter = 1 // the commit confirms, the reveal never does
	engine := NewEngine(node, exclusion.NewLocal(), Config{Timeout: 100 * time.Millisecond}, zap.NewNop())

	r, err := engine.newRun(burnOperation(t, sender))
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.execute(context.Background())
	if !errors.Is(err, model.ErrRevealTimeout) {
		t.Fatalf("expected reveal timeout, got %v", err)
	}
	if model.Kind(err) != model.KindFatal {
		t.Fatal("reveal timeout must be fatal")
	}
	if r.machine.Current() != StateFailed {
		t.Fatalf("expected failed state, got %s", r.machine.Current())
	}
	submitted := node.Submitted()
	if len(submitted) != 2 {
		t.Fatalf("expected commit and reveal, got %d transactions", len(submitted))
	}
	if r.pending == nil || r.pending.Phase != model.PhaseReveal || r.pending.Confirmed {
		t.Fatalf("unexpected pending operation %+v", r.pending)
	}
	if r.pending.ExpectedTxID != txbuilder.TransactionID(submitted[1]) {
		t.Fatal("pending operation should expect the reveal")
	}
	if node.Subscribers() != 0 {
		t.Fatal("subscriptions leaked")
	}
}

type failingLocks struct{}

func (failingLocks) RunExclusive(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	return false, errors.Wrap(model.ErrLockUnavailable, "dial tcp 127.0.0.1:6379: connection refused")
}

func TestExecuteLockBackendFailure(t *testing.T) {
	node := kaspaapitest.NewFakeNode(params)
	sender := fundedSender(t, node)
	engine := NewEngine(node, failingLocks{}, Config{}, zap.NewNop())

	_, err := engine.Execute(context.Background(), burnOperation(t, sender))
	if errors.Is(err, model.ErrWalletBusy) {
		t.Fatalf("a lock backend failure is not a busy wallet: %v", err)
	}
	if !errors.Is(err, model.ErrLockUnavailable) || model.Kind(err) != model.KindRetryable {
		t.Fatalf("expected retryable lock failure, got %v", err)
	}
	if len(node.Submitted()) != 0 {
		t.Fatal("nothing should be submitted without the lock")
	}
}
