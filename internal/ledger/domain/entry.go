package ledger

import (
	"time"

	"tienda-cloud/internal/money"
	settlement "tienda-cloud/internal/settlement/domain"
)

// Entity payment status. Transitions only move forward; an administrative
// reversal is an external operation.
const (
	StatusUnpaid        = "UNPAID"
	StatusPartiallyPaid = "PARTIALLY_PAID"
	StatusSettled       = "SETTLED"
)

// overshootTolerance absorbs rounding on the last abono; it never marks an
// entry settled, it only bounds how far an abono may overshoot.
const overshootTolerance = 0.01

// SettlementEvent is one recorded payment against an entry.
type SettlementEvent struct {
	At      time.Time                `json:"at"`
	Amount  float64                  `json:"amount"` // reference equivalent
	Lines   []settlement.PaymentLine `json:"lines,omitempty"`
	IsFinal bool                     `json:"isFinal"`
}

// Entry tracks what an entity (sale, order, service ticket) owes and has
// paid over a sequence of settlement events.
type Entry struct {
	EntityID    string            `json:"entityId"`
	TotalDue    float64           `json:"totalDue"` // reference currency
	TotalPaid   float64           `json:"totalPaid"`
	Outstanding float64           `json:"outstanding"`
	Status      string            `json:"status"`
	Events      []SettlementEvent `json:"events,omitempty"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewEntry opens a ledger entry for an entity owing totalDue.
func NewEntry(entityID string, totalDue float64, now time.Time) (*Entry, error) {
	if entityID == "" {
		return nil, ErrEmptyEntityID
	}
	if totalDue <= 0 {
		return nil, money.ErrInvalidAmount
	}
	due := money.Round2(totalDue)
	return &Entry{
		EntityID:    entityID,
		TotalDue:    due,
		Outstanding: due,
		Status:      StatusUnpaid,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RecordSettlement appends a settlement event and recomputes the totals.
//
// An abono (isFinal false) must never overshoot: it fails with
// ErrOverpaymentRejected when the resulting balance would go negative
// beyond the rounding tolerance. A final payment may overshoot because the
// settlement engine already turned the surplus into change, not credit.
func (e *Entry) RecordSettlement(amountReference float64, lines []settlement.PaymentLine, isFinal bool, now time.Time) error {
	if e.Status == StatusSettled {
		return ErrAlreadySettled
	}
	amount := money.Round2(amountReference)
	if amount <= 0 {
		return money.ErrInvalidAmount
	}

	newPaid := money.Add(e.TotalPaid, amount)
	balance := money.Subtract(e.TotalDue, newPaid)
	if !isFinal && balance < -overshootTolerance {
		return ErrOverpaymentRejected
	}

	e.Events = append(e.Events, SettlementEvent{
		At:      now,
		Amount:  amount,
		Lines:   append([]settlement.PaymentLine(nil), lines...),
		IsFinal: isFinal,
	})
	e.TotalPaid = newPaid
	if balance < 0 {
		balance = 0
	}
	e.Outstanding = balance
	e.UpdatedAt = now

	switch {
	case e.Outstanding == 0:
		e.Status = StatusSettled
	default:
		e.Status = StatusPartiallyPaid
	}
	return nil
}

// IsFullySettled reports completion. The comparison is exact on rounded
// values; the display tolerance never gates this predicate.
func (e *Entry) IsFullySettled() bool {
	return e.Outstanding == 0
}

// Clone returns a detached copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	copied := *e
	copied.Events = append([]SettlementEvent(nil), e.Events...)
	return &copied
}
