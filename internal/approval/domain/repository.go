package approval

import (
	"context"
	"time"
)

// Resolution is a terminal transition applied conditionally by a store.
type Resolution struct {
	State           string
	ApprovedBy      string
	RejectionReason string
	ResolvedAt      time.Time
}

// Repository stores discount requests.
//
// Create fails with ErrDuplicatePendingRequest when the session already has
// a PENDING request. Resolve applies a terminal transition only while the
// stored state is still PENDING; a concurrent loser gets ErrNotPending. The
// store's own conditional write provides that guarantee, not the caller.
type Repository interface {
	Create(ctx context.Context, request *DiscountRequest) error
	Get(ctx context.Context, id string) (*DiscountRequest, error)
	// LatestBySession returns the most recently created request for the
	// session, nil when the session never requested a discount.
	LatestBySession(ctx context.Context, sessionID string) (*DiscountRequest, error)
	// PendingBySession returns the PENDING request for the session, nil
	// when there is none.
	PendingBySession(ctx context.Context, sessionID string) (*DiscountRequest, error)
	ListPending(ctx context.Context) ([]*DiscountRequest, error)
	Resolve(ctx context.Context, id string, resolution Resolution) (*DiscountRequest, error)
}
