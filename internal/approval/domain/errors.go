package approval

import "errors"

var (
	// ErrDuplicatePendingRequest indicates the session already has an
	// unresolved request.
	ErrDuplicatePendingRequest = errors.New("approval: duplicate pending request")
	// ErrNotPending indicates the request already reached a terminal state.
	ErrNotPending = errors.New("approval: request not pending")
	// ErrRequestNotFound indicates no request exists for the id or session.
	ErrRequestNotFound = errors.New("approval: request not found")
	// ErrNotRequestOwner indicates the actor does not own the request.
	ErrNotRequestOwner = errors.New("approval: not request owner")
	// ErrInvalidDecision indicates an unknown resolution decision.
	ErrInvalidDecision = errors.New("approval: invalid decision")
	// ErrInvalidDiscount indicates the draft violates discount policy.
	ErrInvalidDiscount = errors.New("approval: invalid discount")
	// ErrNilRequest indicates a nil request was passed to a store.
	ErrNilRequest = errors.New("approval: nil request")
)
