package memory

import (
	"context"
	"sync"

	ledger "tienda-cloud/internal/ledger/domain"
)

// LedgerRepository is an in-memory ledger store with the same conditional
// write semantics as the Postgres implementation.
type LedgerRepository struct {
	mu   sync.RWMutex
	data map[string]*ledger.Entry
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{data: make(map[string]*ledger.Entry)}
}

// Create stores a new entry.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	_ = ctx
	if entry == nil {
		return ledger.ErrNilEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[entry.EntityID]; exists {
		return ledger.ErrDuplicateEntry
	}
	r.data[entry.EntityID] = entry.Clone()
	return nil
}

// Get loads an entry, nil when absent.
func (r *LedgerRepository) Get(ctx context.Context, entityID string) (*ledger.Entry, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data[entityID].Clone(), nil
}

// Save persists an updated entry, conditional on the stored version.
func (r *LedgerRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	_ = ctx
	if entry == nil {
		return ledger.ErrNilEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, exists := r.data[entry.EntityID]
	if !exists {
		return ledger.ErrNotFound
	}
	if stored.Version != entry.Version {
		return ledger.ErrVersionConflict
	}
	next := entry.Clone()
	next.Version++
	r.data[entry.EntityID] = next
	entry.Version = next.Version
	return nil
}
