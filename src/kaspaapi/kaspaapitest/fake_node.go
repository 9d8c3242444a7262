// Package kaspaapitest provides an in-memory ledger that stands in for kaspad in tests.
package kaspaapitest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/domain/consensus/utils/consensushashing"
	"github.com/kaspanet/kaspad/domain/consensus/utils/txscript"
	"github.com/kaspanet/kaspad/domain/dagconfig"
	"github.com/kaspanet/kaspad/util"
	"github.com/onemorebsmith/kaspa-governance/src/kaspaapi"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
)

type outpoint struct {
	txID  string
	index uint32
}

type fakeSub struct {
	addresses map[string]bool
	ch        chan model.UTXOChange
	done      chan struct{}
	once      sync.Once
}

// FakeNode applies submitted transactions to its utxo set immediately and
// notifies subscribers, unless Withhold is set.
type FakeNode struct {
	Params *dagconfig.Params

	// Withhold accepts submissions without ever applying them, so they never confirm.
	Withhold bool
	// WithholdAfter, when positive, withholds every submission past the first WithholdAfter.
	WithholdAfter int
	// Reject, when set, is consulted before each submission.
	Reject func(tx *externalapi.DomainTransaction) error
	// NotReady makes Connect fail like an unsynced node.
	NotReady bool

	lock      sync.Mutex
	utxos     map[string]map[outpoint]*model.UTXO
	submitted []*externalapi.DomainTransaction
	subs      map[int]*fakeSub
	nextSub   int
	connects  int
}

var _ kaspaapi.Node = (*FakeNode)(nil)
var _ kaspaapi.Connector = (*FakeNode)(nil)

func NewFakeNode(params *dagconfig.Params) *FakeNode {
	return &FakeNode{
		Params: params,
		utxos:  map[string]map[outpoint]*model.UTXO{},
		subs:   map[int]*fakeSub{},
	}
}

func (f *FakeNode) Connect(ctx context.Context) (kaspaapi.Node, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.connects++
	if f.NotReady {
		return nil, errors.Wrap(model.ErrNodeNotReady, "fake node not synced")
	}
	return f, nil
}

func (f *FakeNode) Close() {}

// Fund credits address with a fresh utxo and returns its outpoint transaction id.
func (f *FakeNode) Fund(address string, amount uint64) (string, error) {
	script, err := f.scriptFor(address)
	if err != nil {
		return "", err
	}
	raw := make([]byte, externalapi.DomainHashSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	u := &model.UTXO{
		Address:         address,
		TransactionID:   hex.EncodeToString(raw),
		Index:           0,
		Amount:          amount,
		ScriptPublicKey: script,
	}
	f.lock.Lock()
	defer f.lock.Unlock()
	f.add(u)
	f.notify(model.UTXOChange{Added: []*model.UTXO{u}})
	return u.TransactionID, nil
}

func (f *FakeNode) scriptFor(address string) (*externalapi.ScriptPublicKey, error) {
	addr, err := util.DecodeAddress(address, f.Params.Prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid address %s", address)
	}
	return txscript.PayToAddrScript(addr)
}

func (f *FakeNode) add(u *model.UTXO) {
	set, ok := f.utxos[u.Address]
	if !ok {
		set = map[outpoint]*model.UTXO{}
		f.utxos[u.Address] = set
	}
	set[outpoint{u.TransactionID, u.Index}] = u
}

func (f *FakeNode) GetUTXOs(address string) ([]*model.UTXO, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	out := make([]*model.UTXO, 0, len(f.utxos[address]))
	for _, u := range f.utxos[address] {
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (f *FakeNode) Balance(address string) uint64 {
	utxos, _ := f.GetUTXOs(address)
	return model.TotalAmount(utxos)
}

// Submitted returns every accepted transaction in submission order.
func (f *FakeNode) Submitted() []*externalapi.DomainTransaction {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]*externalapi.DomainTransaction{}, f.submitted...)
}

func (f *FakeNode) Connects() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.connects
}

func (f *FakeNode) SubmitTransaction(tx *externalapi.DomainTransaction) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.Reject != nil {
		if err := f.Reject(tx); err != nil {
			return "", err
		}
	}

	change := model.UTXOChange{}
	for i, in := range tx.Inputs {
		op := outpoint{in.PreviousOutpoint.TransactionID.String(), in.PreviousOutpoint.Index}
		var spent *model.UTXO
		for _, set := range f.utxos {
			if u, ok := set[op]; ok {
				spent = u
				break
			}
		}
		if spent == nil {
			return "", fmt.Errorf("input %d spends unknown outpoint %s:%d", i, op.txID, op.index)
		}
		if len(in.SignatureScript) == 0 {
			return "", fmt.Errorf("input %d is not signed", i)
		}
		change.Removed = append(change.Removed, spent)
	}

	id := consensushashing.TransactionID(tx).String()
	for i, out := range tx.Outputs {
		_, addr, err := txscript.ExtractScriptPubKeyAddress(out.ScriptPublicKey, f.Params)
		if err != nil {
			return "", errors.Wrapf(err, "output %d has no address", i)
		}
		change.Added = append(change.Added, &model.UTXO{
			Address:         addr.EncodeAddress(),
			TransactionID:   id,
			Index:           uint32(i),
			Amount:          out.Value,
			ScriptPublicKey: out.ScriptPublicKey,
		})
	}
	f.submitted = append(f.submitted, tx)
	if f.Withhold || (f.WithholdAfter > 0 && len(f.submitted) > f.WithholdAfter) {
		return id, nil
	}
	for _, u := range change.Removed {
		delete(f.utxos[u.Address], outpoint{u.TransactionID, u.Index})
	}
	for _, u := range change.Added {
		f.add(u)
	}
	f.notify(change)
	return id, nil
}

func (f *FakeNode) SubscribeUTXOsChanged(addresses []string) (<-chan model.UTXOChange, func(), error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	sub := &fakeSub{
		addresses: map[string]bool{},
		ch:        make(chan model.UTXOChange, 256),
		done:      make(chan struct{}),
	}
	for _, a := range addresses {
		sub.addresses[a] = true
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = sub
	return sub.ch, func() {
		sub.once.Do(func() {
			close(sub.done)
			f.lock.Lock()
			delete(f.subs, id)
			close(sub.ch)
			f.lock.Unlock()
		})
	}, nil
}

// Subscribers is the number of live subscriptions.
func (f *FakeNode) Subscribers() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.subs)
}

// Notify pushes a hand made batch to subscribers.
func (f *FakeNode) Notify(change model.UTXOChange) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.notify(change)
}

// caller holds f.lock
func (f *FakeNode) notify(change model.UTXOChange) {
	for _, sub := range f.subs {
		filtered := model.UTXOChange{}
		for _, u := range change.Added {
			if sub.addresses[u.Address] {
				filtered.Added = append(filtered.Added, u)
			}
		}
		for _, u := range change.Removed {
			if sub.addresses[u.Address] {
				filtered.Removed = append(filtered.Removed, u)
			}
		}
		if len(filtered.Added) == 0 && len(filtered.Removed) == 0 {
			continue
		}
		select {
		case sub.ch <- filtered:
		case <-sub.done:
		}
	}
}
