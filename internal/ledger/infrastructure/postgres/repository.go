package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	ledger "tienda-cloud/internal/ledger/domain"
)

const (
	defaultLedgerTable = "balance_ledger"
	defaultEventsTable = "ledger_events"
)

// LedgerRepository is a Postgres ledger store. Updates are conditional on
// the stored version so concurrent writers cannot double-credit a payment.
type LedgerRepository struct {
	db          *sql.DB
	ledgerTable string
	eventsTable string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*LedgerRepository)

// WithTables overrides the default table names.
func WithTables(ledgerTable, eventsTable string) RepositoryOption {
	return func(repo *LedgerRepository) {
		if ledgerTable != "" {
			repo.ledgerTable = ledgerTable
		}
		if eventsTable != "" {
			repo.eventsTable = eventsTable
		}
	}
}

// NewLedgerRepository constructs a repository with defaults.
func NewLedgerRepository(db *sql.DB, opts ...RepositoryOption) *LedgerRepository {
	repo := &LedgerRepository{
		db:          db,
		ledgerTable: defaultLedgerTable,
		eventsTable: defaultEventsTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Create inserts a fresh entry.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if entry == nil {
		return ledger.ErrNilEntry
	}

	query := fmt.Sprintf(`
INSERT INTO %s (entity_id, total_due, total_paid, outstanding, status, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (entity_id) DO NOTHING`, r.ledgerTable)

	result, err := r.db.ExecContext(ctx, query,
		entry.EntityID,
		entry.TotalDue,
		entry.TotalPaid,
		entry.Outstanding,
		entry.Status,
		entry.Version,
		entry.CreatedAt.UTC(),
		entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrDuplicateEntry
	}
	return nil
}

// Get loads an entry with its events, nil when absent.
func (r *LedgerRepository) Get(ctx context.Context, entityID string) (*ledger.Entry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	if entityID == "" {
		return nil, ledger.ErrEmptyEntityID
	}

	query := fmt.Sprintf(`
SELECT entity_id, total_due, total_paid, outstanding, status, version, created_at, updated_at
FROM %s
WHERE entity_id = $1
LIMIT 1`, r.ledgerTable)

	var entry ledger.Entry
	row := r.db.QueryRowContext(ctx, query, entityID)
	err := row.Scan(
		&entry.EntityID,
		&entry.TotalDue,
		&entry.TotalPaid,
		&entry.Outstanding,
		&entry.Status,
		&entry.Version,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	events, err := r.listEvents(ctx, entityID)
	if err != nil {
		return nil, err
	}
	entry.Events = events
	return &entry, nil
}

// Save persists updated totals and appends new events, conditional on the
// entry's version. A stale version fails with ErrVersionConflict.
func (r *LedgerRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	if entry == nil {
		return ledger.ErrNilEntry
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	update := fmt.Sprintf(`
UPDATE %s
SET total_paid = $1,
	outstanding = $2,
	status = $3,
	version = version + 1,
	updated_at = $4
WHERE entity_id = $5 AND version = $6`, r.ledgerTable)

	result, err := tx.ExecContext(ctx, update,
		entry.TotalPaid,
		entry.Outstanding,
		entry.Status,
		entry.UpdatedAt.UTC(),
		entry.EntityID,
		entry.Version,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrVersionConflict
	}

	var stored int
	count := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE entity_id = $1`, r.eventsTable)
	if err := tx.QueryRowContext(ctx, count, entry.EntityID).Scan(&stored); err != nil {
		return err
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (entity_id, seq, occurred_at, amount, lines, is_final)
VALUES ($1, $2, $3, $4, $5, $6)`, r.eventsTable)
	for i := stored; i < len(entry.Events); i++ {
		event := entry.Events[i]
		lines, err := json.Marshal(event.Lines)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insert,
			entry.EntityID, i, event.At.UTC(), event.Amount, lines, event.IsFinal,
		); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	entry.Version++
	return nil
}

func (r *LedgerRepository) listEvents(ctx context.Context, entityID string) ([]ledger.SettlementEvent, error) {
	query := fmt.Sprintf(`
SELECT occurred_at, amount, lines, is_final
FROM %s
WHERE entity_id = $1
ORDER BY seq ASC`, r.eventsTable)

	rows, err := r.db.QueryContext(ctx, query, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ledger.SettlementEvent
	for rows.Next() {
		var event ledger.SettlementEvent
		var lines []byte
		if err := rows.Scan(&event.At, &event.Amount, &lines, &event.IsFinal); err != nil {
			return nil, err
		}
		if len(lines) > 0 {
			if err := json.Unmarshal(lines, &event.Lines); err != nil {
				return nil, err
			}
		}
		event.At = event.At.UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
