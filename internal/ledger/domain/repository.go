package ledger

import "context"

// Repository persists ledger entries. Save uses the entry's version for a
// conditional write and fails with ErrVersionConflict when another writer
// got there first.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, entityID string) (*Entry, error)
	Save(ctx context.Context, entry *Entry) error
}
