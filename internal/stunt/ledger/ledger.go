// Package ledger tracks the two once-per-encounter consumable resources:
// the per-actor Advantage token and the shared Cinematic Pool.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/louisbranch/improv.engine/internal/storage"
)

const (
	poolFlag      = "cinematic_pool"
	poolUsageFlag = "pool_usage"
	advUsageFlag  = "advantage_usage"
)

// ErrNoEncounter indicates a resource was requested outside an encounter.
var ErrNoEncounter = errors.New("no active encounter")

// Pool is the persisted cinematic pool state.
type Pool struct {
	Enabled   bool `json:"enabled"`
	Size      int  `json:"size"`
	Remaining int  `json:"remaining"`
}

// SpendResult reports the outcome of a pool spend attempt.
type SpendResult struct {
	OK     bool
	Reason string
}

// Ledger gates encounter-scoped resources. Flag reads and writes go through
// the host's FlagStore; mutations for one encounter are serialized with an
// in-process mutex to close the read-then-write race between near-
// simultaneous spends. Cross-process hosts must bring their own
// serialization.
type Ledger struct {
	store storage.FlagStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over the provided flag store.
func New(store storage.FlagStore) *Ledger {
	return &Ledger{store: store, locks: map[string]*sync.Mutex{}}
}

// StartEncounter initializes both ledgers for a new encounter: the pool at
// full size and every usage map empty.
func (l *Ledger) StartEncounter(ctx context.Context, encounterID string, pool Pool) error {
	if err := l.check(encounterID); err != nil {
		return err
	}
	if pool.Remaining == 0 {
		pool.Remaining = pool.Size
	}
	pool = clampPool(pool)

	scope := storage.EncounterScope(encounterID)
	if err := l.setJSON(ctx, scope, poolFlag, pool); err != nil {
		return err
	}
	if err := l.setJSON(ctx, scope, poolUsageFlag, map[string]bool{}); err != nil {
		return err
	}
	return l.setJSON(ctx, scope, advUsageFlag, map[string]bool{})
}

// TryConsumeAdvantage atomically consumes the actor's once-per-encounter
// Advantage. Marking happens before the roll so a quick retry cannot
// double-spend; a second attempt in the same encounter is denied with the
// usage map untouched.
func (l *Ledger) TryConsumeAdvantage(ctx context.Context, encounterID, actorID string) (SpendResult, error) {
	if err := l.check(encounterID); err != nil {
		return SpendResult{}, err
	}
	unlock := l.lock(encounterID)
	defer unlock()

	usage, err := l.usageMap(ctx, encounterID, advUsageFlag)
	if err != nil {
		return SpendResult{}, err
	}
	if usage[actorID] {
		return SpendResult{OK: false, Reason: "Advantage already used this encounter"}, nil
	}
	usage[actorID] = true
	if err := l.setJSON(ctx, storage.EncounterScope(encounterID), advUsageFlag, usage); err != nil {
		return SpendResult{}, err
	}
	return SpendResult{OK: true}, nil
}

// TrySpendPoolToken atomically spends one cinematic pool token for the actor.
// It fails when the pool is disabled, empty, or the actor already spent this
// encounter; the pool is untouched on failure.
func (l *Ledger) TrySpendPoolToken(ctx context.Context, encounterID, actorID string) (SpendResult, error) {
	if encounterID == "" {
		return SpendResult{OK: false, Reason: "No encounter"}, nil
	}
	if l == nil || l.store == nil {
		return SpendResult{}, fmt.Errorf("flag store is required")
	}
	unlock := l.lock(encounterID)
	defer unlock()

	pool, err := l.poolState(ctx, encounterID)
	if err != nil {
		return SpendResult{}, err
	}
	if !pool.Enabled {
		return SpendResult{OK: false, Reason: "Pool disabled"}, nil
	}
	if pool.Remaining <= 0 {
		return SpendResult{OK: false, Reason: "No tokens left"}, nil
	}

	usage, err := l.usageMap(ctx, encounterID, poolUsageFlag)
	if err != nil {
		return SpendResult{}, err
	}
	if usage[actorID] {
		return SpendResult{OK: false, Reason: "Already spent this encounter"}, nil
	}

	scope := storage.EncounterScope(encounterID)
	pool.Remaining--
	if err := l.setJSON(ctx, scope, poolFlag, clampPool(pool)); err != nil {
		return SpendResult{}, err
	}
	usage[actorID] = true
	if err := l.setJSON(ctx, scope, poolUsageFlag, usage); err != nil {
		return SpendResult{}, err
	}
	return SpendResult{OK: true}, nil
}

// ResetPool restores the pool's remaining count to its configured size.
// Per-actor spent flags survive; only a new encounter clears them.
func (l *Ledger) ResetPool(ctx context.Context, encounterID string) error {
	if err := l.check(encounterID); err != nil {
		return err
	}
	unlock := l.lock(encounterID)
	defer unlock()

	pool, err := l.poolState(ctx, encounterID)
	if err != nil {
		return err
	}
	pool.Remaining = pool.Size
	return l.setJSON(ctx, storage.EncounterScope(encounterID), poolFlag, clampPool(pool))
}

// PoolState returns the current pool state for an encounter.
func (l *Ledger) PoolState(ctx context.Context, encounterID string) (Pool, error) {
	if err := l.check(encounterID); err != nil {
		return Pool{}, err
	}
	return l.poolState(ctx, encounterID)
}

func (l *Ledger) poolState(ctx context.Context, encounterID string) (Pool, error) {
	payload, ok, err := l.store.GetFlag(ctx, storage.EncounterScope(encounterID), poolFlag)
	if err != nil {
		return Pool{}, fmt.Errorf("load cinematic pool: %w", err)
	}
	if !ok {
		return Pool{}, nil
	}
	var pool Pool
	if err := json.Unmarshal(payload, &pool); err != nil {
		return Pool{}, fmt.Errorf("decode cinematic pool: %w", err)
	}
	return clampPool(pool), nil
}

func (l *Ledger) usageMap(ctx context.Context, encounterID, flag string) (map[string]bool, error) {
	payload, ok, err := l.store.GetFlag(ctx, storage.EncounterScope(encounterID), flag)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", flag, err)
	}
	usage := map[string]bool{}
	if !ok {
		return usage, nil
	}
	if err := json.Unmarshal(payload, &usage); err != nil {
		return nil, fmt.Errorf("decode %s: %w", flag, err)
	}
	return usage, nil
}

func (l *Ledger) setJSON(ctx context.Context, scope storage.Scope, name string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := l.store.SetFlag(ctx, scope, name, payload); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

func (l *Ledger) check(encounterID string) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("flag store is required")
	}
	if encounterID == "" {
		return ErrNoEncounter
	}
	return nil
}

// lock serializes mutations per encounter.
func (l *Ledger) lock(encounterID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[encounterID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[encounterID] = lock
	}
	l.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// clampPool enforces the pool invariants: remaining within [0, size].
func clampPool(pool Pool) Pool {
	if pool.Size < 0 {
		pool.Size = 0
	}
	if pool.Remaining > pool.Size {
		pool.Remaining = pool.Size
	}
	if pool.Remaining < 0 {
		pool.Remaining = 0
	}
	return pool
}
