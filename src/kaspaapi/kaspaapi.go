package kaspaapi

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/kaspanet/kaspad/app/appmessage"
	"github.com/kaspanet/kaspad/domain/consensus/model/externalapi"
	"github.com/kaspanet/kaspad/infrastructure/network/rpcclient"
	"github.com/onemorebsmith/kaspa-governance/src/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Node is the slice of kaspad the engines need.
type Node interface {
	GetUTXOs(address string) ([]*model.UTXO, error)
	SubmitTransaction(tx *externalapi.DomainTransaction) (string, error)
	SubscribeUTXOsChanged(addresses []string) (<-chan model.UTXOChange, func(), error)
	Close()
}

const subscriberBuffer = 256

type subscriber struct {
	ch   chan model.UTXOChange
	done chan struct{}
	once sync.Once
}

type KaspaApi struct {
	address string
	logger  *zap.Logger
	kaspad  *rpcclient.RPCClient

	subLock     sync.Mutex
	registered  map[string]bool
	subscribers map[int]*subscriber
	nextSub     int
}

func NewKaspaAPI(address string, logger *zap.Logger) (*KaspaApi, error) {
	client, err := rpcclient.NewRPCClient(address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed connecting to kaspad at %s", address)
	}
	client.SetTimeout(30 * time.Second)
	return &KaspaApi{
		address:     address,
		logger:      logger.With(zap.String("component", "kaspaapi"), zap.String("kaspad", address)),
		kaspad:      client,
		registered:  map[string]bool{},
		subscribers: map[int]*subscriber{},
	}, nil
}

func (ka *KaspaApi) Address() string { return ka.address }

func (ka *KaspaApi) Close() {
	if err := ka.kaspad.Close(); err != nil {
		ka.logger.Warn("failed closing kaspad connection", zap.Error(err))
	}
}

// CheckReady fails with ErrNodeNotReady unless the node is synced and has a utxo index.
func (ka *KaspaApi) CheckReady() error {
	info, err := ka.kaspad.GetInfo()
	if err != nil {
		return errors.Wrapf(model.ErrNodeNotReady, "GetInfo failed: %s", err)
	}
	if !info.IsSynced || !info.IsUtxoIndexed {
		return errors.Wrapf(model.ErrNodeNotReady, "kaspad %s synced: %t, utxoindex: %t",
			ka.address, info.IsSynced, info.IsUtxoIndexed)
	}
	return nil
}

// WaitForSync polls CheckReady up to attempts times, sleeping delay in between.
// It always checks at least once.
func (ka *KaspaApi) WaitForSync(ctx context.Context, attempts int, delay time.Duration) error {
	return waitReady(ctx, ka.CheckReady, attempts, delay, ka.logger)
}

func waitReady(ctx context.Context, check func() error, attempts int, delay time.Duration, logger *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = check(); err == nil {
			return nil
		}
		logger.Warn(fmt.Sprintf("kaspad not ready (attempt %d/%d)", i+1, attempts), zap.Error(err))
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func (ka *KaspaApi) GetUTXOs(address string) ([]*model.UTXO, error) {
	resp, err := ka.kaspad.GetUTXOsByAddresses([]string{address})
	if err != nil {
		return nil, errors.Wrapf(err, "failed fetching utxos for %s", address)
	}
	utxos := make([]*model.UTXO, 0, len(resp.Entries))
	for _, e := range resp.Entries {
		u, err := utxoFromRPC(e)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

func (ka *KaspaApi) SubmitTransaction(tx *externalapi.DomainTransaction) (string, error) {
	resp, err := ka.kaspad.SubmitTransaction(appmessage.DomainTransactionToRPCTransaction(tx), false)
	if err != nil {
		return "", errors.Wrap(err, "kaspad rejected transaction")
	}
	return resp.TransactionID, nil
}

// SubscribeUTXOsChanged registers for utxo notifications once per connection and
// fans batches out to every subscriber. The returned func unsubscribes and
// closes the channel.
func (ka *KaspaApi) SubscribeUTXOsChanged(addresses []string) (<-chan model.UTXOChange, func(), error) {
	ka.subLock.Lock()
	defer ka.subLock.Unlock()

	var missing []string
	for _, a := range addresses {
		if !ka.registered[a] {
			missing = append(missing, a)
		}
	}
	if len(missing) > 0 {
		if len(ka.registered) > 0 {
			// rpcclient spawns a dequeue loop per registration, a second one would steal notifications
			return nil, nil, errors.Errorf("utxo notifications already registered on this connection, open a new one for %v", missing)
		}
		if err := ka.kaspad.RegisterForUTXOsChangedNotifications(missing, ka.dispatch); err != nil {
			return nil, nil, errors.Wrap(err, "failed registering for utxo notifications")
		}
		for _, a := range missing {
			ka.registered[a] = true
		}
	}

	id := ka.nextSub
	ka.nextSub++
	sub := &subscriber{
		ch:   make(chan model.UTXOChange, subscriberBuffer),
		done: make(chan struct{}),
	}
	ka.subscribers[id] = sub
	return sub.ch, func() {
		sub.once.Do(func() {
			close(sub.done)
			ka.subLock.Lock()
			delete(ka.subscribers, id)
			close(sub.ch)
			ka.subLock.Unlock()
		})
	}, nil
}

func (ka *KaspaApi) dispatch(n *appmessage.UTXOsChangedNotificationMessage) {
	change := model.UTXOChange{}
	for _, e := range n.Added {
		if u, err := utxoFromRPC(e); err == nil {
			change.Added = append(change.Added, u)
		}
	}
	for _, e := range n.Removed {
		if u, err := utxoFromRPC(e); err == nil {
			change.Removed = append(change.Removed, u)
		}
	}
	ka.subLock.Lock()
	defer ka.subLock.Unlock()
	for _, sub := range ka.subscribers {
		select {
		case sub.ch <- change:
		case <-sub.done:
		}
	}
}

func utxoFromRPC(e *appmessage.UTXOsByAddressesEntry) (*model.UTXO, error) {
	if e.Outpoint == nil {
		return nil, errors.Errorf("utxo entry for %s has no outpoint", e.Address)
	}
	u := &model.UTXO{
		Address:       e.Address,
		TransactionID: e.Outpoint.TransactionID,
		Index:         e.Outpoint.Index,
	}
	if e.UTXOEntry == nil { // removed entries may come without the entry body
		return u, nil
	}
	u.Amount = e.UTXOEntry.Amount
	u.BlockDAAScore = e.UTXOEntry.BlockDAAScore
	u.IsCoinbase = e.UTXOEntry.IsCoinbase
	if e.UTXOEntry.ScriptPublicKey != nil {
		script, err := hex.DecodeString(e.UTXOEntry.ScriptPublicKey.Script)
		if err != nil {
			return nil, errors.Wrapf(err, "bad script on utxo %s:%d", u.TransactionID, u.Index)
		}
		u.ScriptPublicKey = &externalapi.ScriptPublicKey{
			Script:  script,
			Version: e.UTXOEntry.ScriptPublicKey.Version,
		}
	}
	return u, nil
}
