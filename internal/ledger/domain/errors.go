package ledger

import "errors"

var (
	ErrOverpaymentRejected = errors.New("ledger: partial settlement exceeds outstanding balance")
	ErrEmptyEntityID       = errors.New("ledger: empty entity id")
	ErrAlreadySettled      = errors.New("ledger: entry already settled")
	ErrNotFound            = errors.New("ledger: entry not found")
	ErrDuplicateEntry      = errors.New("ledger: entry already exists")
	ErrVersionConflict     = errors.New("ledger: concurrent update conflict")
	ErrNilEntry            = errors.New("ledger: nil entry")
)
