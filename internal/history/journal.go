package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store persists ledger snapshots.
type Store interface {
	LoadHistory(ctx context.Context) (Snapshot, error)
	SaveHistory(ctx context.Context, snap Snapshot) error
}

// Journal pairs a Ledger with a Store and saves after every mutation.
type Journal struct {
	mu     sync.Mutex
	ledger *Ledger
	store  Store
}

// OpenJournal loads the persisted ledger from store.
func OpenJournal(ctx context.Context, store Store) (*Journal, error) {
	snap, err := store.LoadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("history: load: %w", err)
	}
	ledger := NewLedger(snap.MaxSize)
	ledger.Restore(snap)
	return &Journal{ledger: ledger, store: store}, nil
}

// Record adds command to the ledger and persists the result. Blank input
// is ignored without touching the store.
func (j *Journal) Record(ctx context.Context, command string) error {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ledger.Record(command)
	return j.save(ctx)
}

// List returns the entries, most recent first.
func (j *Journal) List() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ledger.List()
}

// Clear empties the ledger and persists the result.
func (j *Journal) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ledger.Clear()
	return j.save(ctx)
}

// MaxSize returns the ledger limit.
func (j *Journal) MaxSize() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ledger.MaxSize()
}

// SetMaxSize changes the ledger limit and persists the result.
func (j *Journal) SetMaxSize(ctx context.Context, n int) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ledger.SetMaxSize(n)
	return j.save(ctx)
}

func (j *Journal) save(ctx context.Context) error {
	if err := j.store.SaveHistory(ctx, j.ledger.Snapshot()); err != nil {
		return fmt.Errorf("history: save: %w", err)
	}
	return nil
}
