package application

import (
	approval "tienda-cloud/internal/approval/domain"
)

// RequestCreated is published on the pending-requests topic when a new
// PENDING request appears.
type RequestCreated struct {
	Request *approval.DiscountRequest `json:"request"`
}

// RequestResolved is published on the request's session topic, and on the
// pending-requests topic so approver views drop the entry.
type RequestResolved struct {
	Request *approval.DiscountRequest `json:"request"`
}
