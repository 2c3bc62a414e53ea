package application

import (
	"context"
	"log"
	"sync"
	"time"

	ledger "tienda-cloud/internal/ledger/domain"
	"tienda-cloud/internal/observability/metrics"
	settlement "tienda-cloud/internal/settlement/domain"
)

// LedgerService orchestrates ledger reads and writes. Settlement recording
// is serialized per owning entity so a concurrent retry can never credit
// the same payment twice.
type LedgerService struct {
	repo   ledger.Repository
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerService constructs a service.
func NewLedgerService(repo ledger.Repository, logger *log.Logger) (*LedgerService, error) {
	if repo == nil {
		return nil, ledger.ErrNilEntry
	}
	return &LedgerService{
		repo:   repo,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Open creates a ledger entry for an entity owing totalDue.
func (s *LedgerService) Open(ctx context.Context, entityID string, totalDue float64) (*ledger.Entry, error) {
	entry, err := ledger.NewEntry(entityID, totalDue, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Get loads an entry.
func (s *LedgerService) Get(ctx context.Context, entityID string) (*ledger.Entry, error) {
	entry, err := s.repo.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ledger.ErrNotFound
	}
	return entry, nil
}

// Record appends a settlement event for the entity and persists the
// updated totals under the per-entity lock.
func (s *LedgerService) Record(ctx context.Context, entityID string, amountReference float64, lines []settlement.PaymentLine, isFinal bool) (*ledger.Entry, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLedgerRecord(result, isFinal, time.Since(start))
	}()

	lock := s.entityLock(entityID)
	lock.Lock()
	defer lock.Unlock()

	entry, err := s.repo.Get(ctx, entityID)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if entry == nil {
		result = metrics.ResultError
		return nil, ledger.ErrNotFound
	}

	if err := entry.RecordSettlement(amountReference, lines, isFinal, time.Now().UTC()); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if entry.IsFullySettled() && s.logger != nil {
		s.logger.Printf("ledger_settled entity_id=%s total_paid=%.2f events=%d",
			entityID, entry.TotalPaid, len(entry.Events))
	}
	return entry, nil
}

func (s *LedgerService) entityLock(entityID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[entityID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[entityID] = lock
	}
	return lock
}
