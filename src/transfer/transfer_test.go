package transfer

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/onemorebsmith/kaspa-governance/src/exclusion"
	"github.com/onemorebsmith/kaspa-governance/src/identity"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi/kaspaapitest"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/onemorebsmith/kaspa-governance/src/txbuilder"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type fixture struct {
	node   *kaspaapitest.FakeNode
	locks  *exclusion.Local
	engine *Engine
	sender *identity.Identity
	dest   *identity.Identity
}

func newFixture(t *testing.T, maxInputs int) *fixture {
	params := &dagconfig.SimnetParams
	sender, err := identity.Generate(params)
	if err != nil {
		t.Fatal(err)
	}
	dest, err := identity.Generate(params)
	if err != nil {
		t.Fatal(err)
	}
	node := kaspaapitest.NewFakeNode(params)
	locks := exclusion.NewLocal()
	engine := NewEngine(node, locks, txbuilder.Options{PriorityFee: 1000, MaxInputsPerTransaction: maxInputs}, zap.NewNop())
	return &fixture{node: node, locks: locks, engine: engine, sender: sender, dest: dest}
}

func TestTransferSingle(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.node.Fund(f.sender.Address(), 10*model.KasDigitMultiplier); err != nil {
		t.Fatal(err)
	}
	txID, err := f.engine.Transfer(context.Background(), f.sender, f.dest.Address(), 3*model.KasDigitMultiplier)
	if err != nil {
		t.Fatal(err)
	}
	submitted := f.node.Submitted()
	if len(submitted) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(submitted))
	}
	if txbuilder.TransactionID(submitted[0]) != txID {
		t.Fatal("returned id does not match submitted transaction")
	}
	if got := f.node.Balance(f.dest.Address()); got != 3*model.KasDigitMultiplier {
		t.Fatalf("destination balance %d", got)
	}
	fee := txbuilder.EstimateFee(1, 2, 1000)
	if d := cmp.Diff(uint64(7*model.KasDigitMultiplier)-fee, f.node.Balance(f.sender.Address())); d != "" {
		t.Fatalf("sender change (-want +got):\n%s", d)
	}
}

func TestTransferBatchReturnsFinalID(t *testing.T) {
	f := newFixture(t, 3)
	for i := 0; i < 8; i++ {
		if _, err := f.node.Fund(f.sender.Address(), model.KasDigitMultiplier); err != nil {
			t.Fatal(err)
		}
	}
	txID, err := f.engine.Transfer(context.Background(), f.sender, f.dest.Address(), 6*model.KasDigitMultiplier)
	if err != nil {
		t.Fatal(err)
	}
	submitted := f.node.Submitted()
	if len(submitted) < 2 {
		t.Fatalf("expected a compounding batch, got %d transaction(s)", len(submitted))
	}
	if txbuilder.TransactionID(submitted[len(submitted)-1]) != txID {
		t.Fatal("returned id is not the final transaction")
	}
	if got := f.node.Balance(f.dest.Address()); got != 6*model.KasDigitMultiplier {
		t.Fatalf("destination balance %d", got)
	}
}

func TestTransferPartialFailure(t *testing.T) {
	f := newFixture(t, 3)
	for i := 0; i < 8; i++ {
		if _, err := f.node.Fund(f.sender.Address(), model.KasDigitMultiplier); err != nil {
			t.Fatal(err)
		}
	}
	calls := 0
	f.node.Reject = func(tx *externalapi.DomainTransaction) error {
		calls++
		if calls == 2 {
			return errors.New("orphan transaction")
		}
		return nil
	}
	_, err := f.engine.Transfer(context.Background(), f.sender, f.dest.Address(), 6*model.KasDigitMultiplier)
	if !errors.Is(err, model.ErrSubmissionFailed) {
		t.Fatalf("expected submission failure, got %v", err)
	}
	var subErr *model.SubmissionError
	if !errors.As(err, &subErr) || len(subErr.Partial) != 1 {
		t.Fatalf("expected exactly one accepted transaction, got %+v", err)
	}
	if calls != 2 {
		t.Fatalf("batch continued after rejection: %d submit calls", calls)
	}
}

func TestTransferWalletBusy(t *testing.T) {
	f := newFixture(t, 0)
	ran, err := f.locks.RunExclusive(context.Background(), exclusion.WalletKey(f.sender.Address()), func(ctx context.Context) error {
		_, err := f.engine.Transfer(ctx, f.sender, f.dest.Address(), model.KasDigitMultiplier)
		return err
	})
	if !ran || !errors.Is(err, model.ErrWalletBusy) {
		t.Fatalf("expected busy wallet, got ran=%t err=%v", ran, err)
	}
}

type unavailableLocks struct{}

func (unavailableLocks) RunExclusive(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	return false, errors.Wrap(model.ErrLockUnavailable, "connection refused")
}

func TestTransferLockBackendFailure(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.node.Fund(f.sender.Address(), 5*model.KasDigitMultiplier); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(f.node, unavailableLocks{}, txbuilder.Options{}, zap.NewNop())
	_, err := engine.Transfer(context.Background(), f.sender, f.dest.Address(), model.KasDigitMultiplier)
	if errors.Is(err, model.ErrWalletBusy) || !errors.Is(err, model.ErrLockUnavailable) {
		t.Fatalf("expected lock failure, got %v", err)
	}
	if model.Kind(err) != model.KindRetryable {
		t.Fatalf("expected retryable, got %s", model.Kind(err))
	}
	if len(f.node.Submitted()) != 0 {
		t.Fatal("nothing should be submitted without the lock")
	}
}

func TestTransferNodeNotReady(t *testing.T) {
	f := newFixture(t, 0)
	f.node.NotReady = true
	_, err := f.engine.Transfer(context.Background(), f.sender, f.dest.Address(), model.KasDigitMultiplier)
	if model.Kind(err) != model.KindRetryable {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	f := newFixture(t, 0)
	if _, err := f.node.Fund(f.sender.Address(), model.KasDigitMultiplier); err != nil {
		t.Fatal(err)
	}
	_, err := f.engine.Transfer(context.Background(), f.sender, f.dest.Address(), 5*model.KasDigitMultiplier)
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if len(f.node.Submitted()) != 0 {
		t.Fatal("nothing should be submitted")
	}
}
