// Package keylock provides per-key exclusive sections for serializing work
// on a single quote or wallet while unrelated keys proceed in parallel.
package keylock

import (
	"context"
	"sync"
)

type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

func New() *Map {
	return &Map{locks: make(map[string]*entry)}
}

func (m *Map) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *Map) lockOne(ctx context.Context, key string) (func(), error) {
	e := m.acquire(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	return func() {
		<-e.sem
		m.release(key, e)
	}, nil
}

// Lock acquires every key in the order given and returns a function that
// releases them in reverse. Callers that take more than one key must use a
// fixed global order to stay deadlock free. If ctx is done before all keys
// are held, the ones already taken are released.
func (m *Map) Lock(ctx context.Context, keys ...string) (func(), error) {
	unlocks := make([]func(), 0, len(keys))
	unlockAll := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, key := range keys {
		unlock, err := m.lockOne(ctx, key)
		if err != nil {
			unlockAll()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}

	return unlockAll, nil
}

// Len reports how many keys are currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func QuoteKey(id string) string {
	return "quote:" + id
}

func WalletKey(partnerID string) string {
	return "wallet:" + partnerID
}
