// Package exclusion keeps two instances of the same named task from running at once.
package exclusion

import (
	"context"
	"sync"
)

type Registry interface {
	// RunExclusive runs task unless name is already running. ran is false when
	// the task was skipped; skipped tasks are not queued.
	RunExclusive(ctx context.Context, name string, task func(ctx context.Context) error) (ran bool, err error)
}

type Local struct {
	lock    sync.Mutex
	running map[string]struct{}
}

func NewLocal() *Local {
	return &Local{running: map[string]struct{}{}}
}

func (l *Local) tryAcquire(name string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	if _, held := l.running[name]; held {
		return false
	}
	l.running[name] = struct{}{}
	return true
}

func (l *Local) release(name string) {
	l.lock.Lock()
	delete(l.running, name)
	l.lock.Unlock()
}

func (l *Local) IsRunning(name string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	_, held := l.running[name]
	return held
}

func (l *Local) RunExclusive(ctx context.Context, name string, task func(ctx context.Context) error) (bool, error) {
	if !l.tryAcquire(name) {
		return false, nil
	}
	defer l.release(name) // runs on panic too
	return true, task(ctx)
}

// WalletKey is the lock name that serializes chain operations per wallet.
func WalletKey(address string) string {
	return "wallet:" + address
}
