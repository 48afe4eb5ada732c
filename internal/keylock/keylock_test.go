package keylock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, QuoteKey("q1"))
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("Expected at most 1 holder, saw %d", maxSeen)
	}
	if m.Len() != 0 {
		t.Errorf("Expected lock table to be empty, got %d entries", m.Len())
	}
}

func TestLockDifferentKeysIndependent(t *testing.T) {
	m := New()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, WalletKey("a"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	unlockB, err := m.Lock(ctx, WalletKey("b"))
	if err != nil {
		t.Fatalf("Expected independent key to lock, got %v", err)
	}
	unlockB()
}

func TestLockContextCancelled(t *testing.T) {
	m := New()

	unlock, err := m.Lock(context.Background(), QuoteKey("q1"))
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// The wallet key is free, so it is taken and must be given back when
	// the quote key times out.
	_, err = m.Lock(ctx, WalletKey("p1"), QuoteKey("q1"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected DeadlineExceeded, got %v", err)
	}

	unlock()

	if m.Len() != 0 {
		t.Errorf("Expected all keys released, got %d entries", m.Len())
	}
}
