package memory

import (
	"context"
	"sort"
	"sync"

	approval "tienda-cloud/internal/approval/domain"
)

// ApprovalRepository is an in-memory discount request store. The duplicate
// and conditional-resolve guards run under one lock, matching what the
// Postgres store enforces with its partial unique index and conditional
// update.
type ApprovalRepository struct {
	mu       sync.RWMutex
	requests map[string]*approval.DiscountRequest
}

// NewApprovalRepository constructs an empty store.
func NewApprovalRepository() *ApprovalRepository {
	return &ApprovalRepository{requests: make(map[string]*approval.DiscountRequest)}
}

// Create stores a new request, rejecting a second PENDING one per session.
func (r *ApprovalRepository) Create(ctx context.Context, request *approval.DiscountRequest) error {
	if request == nil {
		return approval.ErrNilRequest
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if request.State == approval.StatePending {
		for _, existing := range r.requests {
			if existing.SessionID == request.SessionID && existing.State == approval.StatePending {
				return approval.ErrDuplicatePendingRequest
			}
		}
	}
	r.requests[request.ID] = request.Clone()
	return nil
}

// Get returns the request by id, nil when absent.
func (r *ApprovalRepository) Get(ctx context.Context, id string) (*approval.DiscountRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.requests[id].Clone(), nil
}

// LatestBySession returns the most recently created request for the session.
func (r *ApprovalRepository) LatestBySession(ctx context.Context, sessionID string) (*approval.DiscountRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *approval.DiscountRequest
	for _, request := range r.requests {
		if request.SessionID != sessionID {
			continue
		}
		if latest == nil || request.CreatedAt.After(latest.CreatedAt) {
			latest = request
		}
	}
	return latest.Clone(), nil
}

// PendingBySession returns the session's PENDING request, nil when none.
func (r *ApprovalRepository) PendingBySession(ctx context.Context, sessionID string) (*approval.DiscountRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, request := range r.requests {
		if request.SessionID == sessionID && request.State == approval.StatePending {
			return request.Clone(), nil
		}
	}
	return nil, nil
}

// ListPending returns all PENDING requests ordered by creation time.
func (r *ApprovalRepository) ListPending(ctx context.Context) ([]*approval.DiscountRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*approval.DiscountRequest
	for _, request := range r.requests {
		if request.State == approval.StatePending {
			pending = append(pending, request.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// Resolve applies a terminal transition while the request is still PENDING.
func (r *ApprovalRepository) Resolve(ctx context.Context, id string, resolution approval.Resolution) (*approval.DiscountRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.requests[id]
	if !ok {
		return nil, approval.ErrRequestNotFound
	}
	if request.State != approval.StatePending {
		return nil, approval.ErrNotPending
	}

	at := resolution.ResolvedAt
	request.State = resolution.State
	request.ApprovedBy = resolution.ApprovedBy
	request.RejectionReason = resolution.RejectionReason
	request.ResolvedAt = &at
	return request.Clone(), nil
}
