package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/louisbranch/improv.engine/internal/storage/memory"
)

func newLedger(t *testing.T) *Ledger {
	t.Helper()
	return New(memory.NewStore())
}

func TestStartEncounterInitializesPool(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: true, Size: 3}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}
	pool, err := l.PoolState(ctx, "enc-1")
	if err != nil {
		t.Fatalf("PoolState: %v", err)
	}
	if !pool.Enabled || pool.Size != 3 || pool.Remaining != 3 {
		t.Fatalf("pool = %+v, want enabled 3/3", pool)
	}
}

func TestTryConsumeAdvantageOncePerEncounter(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	if err := l.StartEncounter(ctx, "enc-1", Pool{}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}

	result, err := l.TryConsumeAdvantage(ctx, "enc-1", "hero")
	if err != nil {
		t.Fatalf("TryConsumeAdvantage: %v", err)
	}
	if !result.OK {
		t.Fatalf("first consume denied: %s", result.Reason)
	}
	result, err = l.TryConsumeAdvantage(ctx, "enc-1", "hero")
	if err != nil {
		t.Fatalf("TryConsumeAdvantage: %v", err)
	}
	if result.OK || result.Reason != "Advantage already used this encounter" {
		t.Fatalf("second consume = %+v, want the already-used denial", result)
	}

	// Other actors are unaffected.
	result, err = l.TryConsumeAdvantage(ctx, "enc-1", "sidekick")
	if err != nil || !result.OK {
		t.Fatalf("TryConsumeAdvantage(sidekick) = %+v, %v; want a grant", result, err)
	}

	// A new encounter resets usage.
	if err := l.StartEncounter(ctx, "enc-2", Pool{}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}
	result, err = l.TryConsumeAdvantage(ctx, "enc-2", "hero")
	if err != nil || !result.OK {
		t.Fatalf("TryConsumeAdvantage in new encounter = %+v, %v; want a grant", result, err)
	}
}

func TestConcurrentAdvantageGrantsOnce(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	if err := l.StartEncounter(ctx, "enc-1", Pool{}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	granted := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := l.TryConsumeAdvantage(ctx, "enc-1", "hero")
			if err != nil {
				t.Errorf("TryConsumeAdvantage: %v", err)
				return
			}
			granted <- result.OK
		}()
	}
	wg.Wait()
	close(granted)

	grants := 0
	for ok := range granted {
		if ok {
			grants++
		}
	}
	if grants != 1 {
		t.Fatalf("grants = %d, want exactly one for the same actor", grants)
	}
}

func TestTrySpendPoolToken(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: true, Size: 2}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}

	result, err := l.TrySpendPoolToken(ctx, "enc-1", "hero")
	if err != nil {
		t.Fatalf("TrySpendPoolToken: %v", err)
	}
	if !result.OK {
		t.Fatalf("spend denied: %s", result.Reason)
	}

	// The same actor cannot spend twice regardless of balance.
	result, err = l.TrySpendPoolToken(ctx, "enc-1", "hero")
	if err != nil {
		t.Fatalf("TrySpendPoolToken: %v", err)
	}
	if result.OK || result.Reason != "Already spent this encounter" {
		t.Fatalf("second spend = %+v, want the already-spent denial", result)
	}

	pool, err := l.PoolState(ctx, "enc-1")
	if err != nil {
		t.Fatalf("PoolState: %v", err)
	}
	if pool.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1 (denial must not decrement)", pool.Remaining)
	}
}

func TestTrySpendPoolTokenDenials(t *testing.T) {
	ctx := context.Background()

	t.Run("no encounter", func(t *testing.T) {
		l := newLedger(t)
		result, err := l.TrySpendPoolToken(ctx, "", "hero")
		if err != nil {
			t.Fatalf("TrySpendPoolToken: %v", err)
		}
		if result.OK || result.Reason != "No encounter" {
			t.Fatalf("result = %+v, want the no-encounter denial", result)
		}
	})

	t.Run("pool disabled", func(t *testing.T) {
		l := newLedger(t)
		if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: false, Size: 3}); err != nil {
			t.Fatalf("StartEncounter: %v", err)
		}
		result, err := l.TrySpendPoolToken(ctx, "enc-1", "hero")
		if err != nil {
			t.Fatalf("TrySpendPoolToken: %v", err)
		}
		if result.OK || result.Reason != "Pool disabled" {
			t.Fatalf("result = %+v, want the disabled denial", result)
		}
		pool, _ := l.PoolState(ctx, "enc-1")
		if pool.Remaining != 3 {
			t.Fatalf("remaining = %d, want untouched", pool.Remaining)
		}
	})

	t.Run("pool empty", func(t *testing.T) {
		l := newLedger(t)
		if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: true, Size: 1}); err != nil {
			t.Fatalf("StartEncounter: %v", err)
		}
		if result, _ := l.TrySpendPoolToken(ctx, "enc-1", "hero"); !result.OK {
			t.Fatalf("first spend denied: %s", result.Reason)
		}
		result, err := l.TrySpendPoolToken(ctx, "enc-1", "sidekick")
		if err != nil {
			t.Fatalf("TrySpendPoolToken: %v", err)
		}
		if result.OK || result.Reason != "No tokens left" {
			t.Fatalf("result = %+v, want the empty denial", result)
		}
	})
}

func TestResetPoolKeepsSpentFlags(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: true, Size: 2}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}
	if result, _ := l.TrySpendPoolToken(ctx, "enc-1", "hero"); !result.OK {
		t.Fatalf("spend denied: %s", result.Reason)
	}

	if err := l.ResetPool(ctx, "enc-1"); err != nil {
		t.Fatalf("ResetPool: %v", err)
	}
	pool, err := l.PoolState(ctx, "enc-1")
	if err != nil {
		t.Fatalf("PoolState: %v", err)
	}
	if pool.Remaining != 2 {
		t.Fatalf("remaining = %d, want refilled to 2", pool.Remaining)
	}

	result, err := l.TrySpendPoolToken(ctx, "enc-1", "hero")
	if err != nil {
		t.Fatalf("TrySpendPoolToken: %v", err)
	}
	if result.OK {
		t.Fatal("spent flags must survive a pool reset")
	}
}

func TestPoolInvariants(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: true, Size: 2, Remaining: 9}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}
	pool, err := l.PoolState(ctx, "enc-1")
	if err != nil {
		t.Fatalf("PoolState: %v", err)
	}
	if pool.Remaining > pool.Size || pool.Remaining < 0 {
		t.Fatalf("pool = %+v, remaining outside [0,size]", pool)
	}
}

func TestNoEncounterErrors(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	if err := l.StartEncounter(ctx, "", Pool{}); !errors.Is(err, ErrNoEncounter) {
		t.Fatalf("StartEncounter err = %v, want ErrNoEncounter", err)
	}
	if _, err := l.TryConsumeAdvantage(ctx, "", "hero"); !errors.Is(err, ErrNoEncounter) {
		t.Fatalf("TryConsumeAdvantage err = %v, want ErrNoEncounter", err)
	}
}

func TestConcurrentSpendsNeverOverdraw(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	const actors = 8
	if err := l.StartEncounter(ctx, "enc-1", Pool{Enabled: true, Size: 3}); err != nil {
		t.Fatalf("StartEncounter: %v", err)
	}

	var wg sync.WaitGroup
	granted := make(chan bool, actors)
	for i := 0; i < actors; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			result, err := l.TrySpendPoolToken(ctx, "enc-1", string(rune('a'+id)))
			if err != nil {
				t.Errorf("TrySpendPoolToken: %v", err)
				return
			}
			granted <- result.OK
		}(i)
	}
	wg.Wait()
	close(granted)

	spends := 0
	for ok := range granted {
		if ok {
			spends++
		}
	}
	if spends != 3 {
		t.Fatalf("spends = %d, want exactly the pool size", spends)
	}
	pool, err := l.PoolState(ctx, "enc-1")
	if err != nil {
		t.Fatalf("PoolState: %v", err)
	}
	if pool.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", pool.Remaining)
	}
}
