package approval

import (
	"strings"
	"time"

	"tienda-cloud/internal/money"
)

// Request lifecycle states. Terminal states are immutable.
const (
	StatePending   = "PENDING"
	StateApproved  = "APPROVED"
	StateRejected  = "REJECTED"
	StateCancelled = "CANCELLED"
)

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed_amount"
)

// maxPercentage bounds percentage discounts. The presenting UI enforces the
// same bound as a convenience; this check is the one that matters.
const maxPercentage = 70

// SaleItem is one line of the sale being discounted.
type SaleItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
	LineTotal   float64 `json:"lineTotal"`
}

// SaleSnapshot freezes the sale as it looked when the discount was
// requested so the approver sees exactly what the cashier saw.
type SaleSnapshot struct {
	Items      []SaleItem `json:"items"`
	Total      float64    `json:"total"` // reference currency
	ClientName string     `json:"clientName,omitempty"`
}

// Draft is a discount request as submitted, before persistence.
type Draft struct {
	SessionID    string       `json:"sessionId"`
	Sale         SaleSnapshot `json:"sale"`
	DiscountType string       `json:"discountType"`
	Percentage   float64      `json:"percentage,omitempty"`
	Amount       float64      `json:"amount,omitempty"` // reference currency
	Reason       string       `json:"reason,omitempty"`
}

// AmountReference resolves the discount to a reference-currency amount.
func (d Draft) AmountReference() float64 {
	if d.DiscountType == DiscountPercentage {
		return money.Round2(d.Sale.Total * d.Percentage / 100)
	}
	return money.Round2(d.Amount)
}

// Validate enforces discount policy bounds.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.SessionID) == "" {
		return ErrInvalidDiscount
	}
	if d.Sale.Total <= 0 {
		return ErrInvalidDiscount
	}
	switch d.DiscountType {
	case DiscountPercentage:
		if d.Percentage <= 0 || d.Percentage > maxPercentage {
			return ErrInvalidDiscount
		}
	case DiscountFixed:
		if d.Amount <= 0 {
			return money.ErrInvalidAmount
		}
	default:
		return ErrInvalidDiscount
	}
	// A discount may never equal or exceed the total being discounted.
	if d.AmountReference() >= money.Round2(d.Sale.Total) {
		return money.ErrInvalidAmount
	}
	return nil
}

// DiscountRequest is a persisted discount awaiting or past resolution.
type DiscountRequest struct {
	ID              string       `json:"id"`
	SessionID       string       `json:"sessionId"`
	StoreID         string       `json:"storeId,omitempty"`
	RequestedBy     string       `json:"requestedBy"`
	Sale            SaleSnapshot `json:"sale"`
	DiscountType    string       `json:"discountType"`
	Percentage      float64      `json:"percentage,omitempty"`
	AmountReference float64      `json:"amountReference"`
	Reason          string       `json:"reason,omitempty"`
	State           string       `json:"state"`
	ApprovedBy      string       `json:"approvedBy,omitempty"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
}

// NewRequest builds a PENDING request from a validated draft.
func NewRequest(id string, draft Draft, storeID, requestedBy string, now time.Time) (*DiscountRequest, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	return &DiscountRequest{
		ID:              id,
		SessionID:       draft.SessionID,
		StoreID:         storeID,
		RequestedBy:     requestedBy,
		Sale:            draft.Sale,
		DiscountType:    draft.DiscountType,
		Percentage:      draft.Percentage,
		AmountReference: draft.AmountReference(),
		Reason:          draft.Reason,
		State:           StatePending,
		CreatedAt:       now,
	}, nil
}

// IsTerminal reports whether the request reached a final state.
func (r *DiscountRequest) IsTerminal() bool {
	return r.State != StatePending
}

// Approve moves a PENDING request to APPROVED.
func (r *DiscountRequest) Approve(approverID string, now time.Time) error {
	if r.State != StatePending {
		return ErrNotPending
	}
	r.State = StateApproved
	r.ApprovedBy = approverID
	r.ResolvedAt = &now
	return nil
}

// Reject moves a PENDING request to REJECTED with an operator-facing note.
func (r *DiscountRequest) Reject(approverID, reason string, now time.Time) error {
	if r.State != StatePending {
		return ErrNotPending
	}
	r.State = StateRejected
	r.ApprovedBy = approverID
	r.RejectionReason = reason
	r.ResolvedAt = &now
	return nil
}

// Cancel moves a PENDING request to CANCELLED.
func (r *DiscountRequest) Cancel(now time.Time) error {
	if r.State != StatePending {
		return ErrNotPending
	}
	r.State = StateCancelled
	r.ResolvedAt = &now
	return nil
}

// Clone returns a detached copy.
func (r *DiscountRequest) Clone() *DiscountRequest {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Sale.Items = append([]SaleItem(nil), r.Sale.Items...)
	if r.ResolvedAt != nil {
		at := *r.ResolvedAt
		copied.ResolvedAt = &at
	}
	return &copied
}
