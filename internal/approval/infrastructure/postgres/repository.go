package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	approval "tienda-cloud/internal/approval/domain"
)

const defaultRequestsTable = "discount_requests"

// pgUniqueViolation is the Postgres error code raised by the partial unique
// index on (session_id) WHERE state = 'PENDING'.
const pgUniqueViolation = "23505"

// ApprovalRepository is a Postgres discount request store. The PENDING
// uniqueness guard and the conditional resolution both live in the
// database, so concurrent submitters and approvers race safely.
type ApprovalRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ApprovalRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ApprovalRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewApprovalRepository constructs a repository with defaults.
func NewApprovalRepository(db *sql.DB, opts ...RepositoryOption) *ApprovalRepository {
	repo := &ApprovalRepository{db: db, table: defaultRequestsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Create inserts a request. A second PENDING request for the same session
// trips the partial unique index and maps to ErrDuplicatePendingRequest.
func (r *ApprovalRepository) Create(ctx context.Context, request *approval.DiscountRequest) error {
	if r == nil || r.db == nil {
		return errors.New("approval repo: nil db")
	}
	if request == nil {
		return approval.ErrNilRequest
	}
	snapshot, err := json.Marshal(request.Sale)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, session_id, store_id, requested_by, sale_snapshot, discount_type,
	percentage, amount_reference, reason, state, approved_by, rejection_reason,
	created_at, resolved_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		request.ID,
		request.SessionID,
		request.StoreID,
		request.RequestedBy,
		snapshot,
		request.DiscountType,
		request.Percentage,
		request.AmountReference,
		request.Reason,
		request.State,
		nullable(request.ApprovedBy),
		nullable(request.RejectionReason),
		request.CreatedAt.UTC(),
		nullableTime(request.ResolvedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return approval.ErrDuplicatePendingRequest
		}
		return err
	}
	return nil
}

// Get loads a request by id, nil when absent.
func (r *ApprovalRepository) Get(ctx context.Context, id string) (*approval.DiscountRequest, error) {
	query := fmt.Sprintf(`%s WHERE id = $1 LIMIT 1`, r.selectClause())
	return r.queryOne(ctx, query, id)
}

// LatestBySession returns the most recently created request for a session.
func (r *ApprovalRepository) LatestBySession(ctx context.Context, sessionID string) (*approval.DiscountRequest, error) {
	query := fmt.Sprintf(`%s WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`, r.selectClause())
	return r.queryOne(ctx, query, sessionID)
}

// PendingBySession returns the session's PENDING request, nil when none.
func (r *ApprovalRepository) PendingBySession(ctx context.Context, sessionID string) (*approval.DiscountRequest, error) {
	query := fmt.Sprintf(`%s WHERE session_id = $1 AND state = 'PENDING' LIMIT 1`, r.selectClause())
	return r.queryOne(ctx, query, sessionID)
}

// ListPending returns all PENDING requests ordered by creation time.
func (r *ApprovalRepository) ListPending(ctx context.Context) ([]*approval.DiscountRequest, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("approval repo: nil db")
	}
	query := fmt.Sprintf(`%s WHERE state = 'PENDING' ORDER BY created_at ASC`, r.selectClause())
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []*approval.DiscountRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pending, nil
}

// Resolve applies a terminal transition conditional on the stored state
// still being PENDING. The losing side of a resolution race sees zero rows
// affected and gets ErrNotPending.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, resolution approval.Resolution) (*approval.DiscountRequest, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("approval repo: nil db")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET state = $1,
	approved_by = $2,
	rejection_reason = $3,
	resolved_at = $4
WHERE id = $5 AND state = 'PENDING'`, r.table)

	result, err := r.db.ExecContext(ctx, query,
		resolution.State,
		nullable(resolution.ApprovedBy),
		nullable(resolution.RejectionReason),
		resolution.ResolvedAt.UTC(),
		id,
	)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, approval.ErrRequestNotFound
		}
		return nil, approval.ErrNotPending
	}
	return r.Get(ctx, id)
}

func (r *ApprovalRepository) selectClause() string {
	return fmt.Sprintf(`
SELECT id, session_id, store_id, requested_by, sale_snapshot, discount_type,
	percentage, amount_reference, reason, state, approved_by, rejection_reason,
	created_at, resolved_at
FROM %s`, r.table)
}

func (r *ApprovalRepository) queryOne(ctx context.Context, query string, args ...any) (*approval.DiscountRequest, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("approval repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRequest(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*approval.DiscountRequest, error) {
	var request approval.DiscountRequest
	var snapshot []byte
	var approvedBy sql.NullString
	var rejectionReason sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&request.ID,
		&request.SessionID,
		&request.StoreID,
		&request.RequestedBy,
		&snapshot,
		&request.DiscountType,
		&request.Percentage,
		&request.AmountReference,
		&request.Reason,
		&request.State,
		&approvedBy,
		&rejectionReason,
		&request.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &request.Sale); err != nil {
			return nil, err
		}
	}
	request.ApprovedBy = approvedBy.String
	request.RejectionReason = rejectionReason.String
	if resolvedAt.Valid {
		at := resolvedAt.Time.UTC()
		request.ResolvedAt = &at
	}
	request.CreatedAt = request.CreatedAt.UTC()
	return &request, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC()
}
