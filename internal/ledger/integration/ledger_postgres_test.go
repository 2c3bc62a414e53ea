package integration_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"testing"
	"time"

	"tienda-cloud/internal/ledger/application"
	ledger "tienda-cloud/internal/ledger/domain"
	ledgerpostgres "tienda-cloud/internal/ledger/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestLedger_AbonoLifecycle_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "balance_ledger") || !tableExists(db, "ledger_events") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	entityID := fmt.Sprintf("sale-it-%d", time.Now().UnixNano())

	repo := ledgerpostgres.NewLedgerRepository(db)
	svc, err := application.NewLedgerService(repo, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM ledger_events WHERE entity_id = $1", entityID)
		_, _ = db.ExecContext(ctx, "DELETE FROM balance_ledger WHERE entity_id = $1", entityID)
	})

	if _, err := svc.Open(ctx, entityID, 100); err != nil {
		t.Fatalf("open entry: %v", err)
	}

	if _, err := svc.Record(ctx, entityID, 40, nil, false); err != nil {
		t.Fatalf("first abono: %v", err)
	}
	if _, err := svc.Record(ctx, entityID, 35.5, nil, false); err != nil {
		t.Fatalf("second abono: %v", err)
	}

	_, err = svc.Record(ctx, entityID, 30, nil, false)
	if !errors.Is(err, ledger.ErrOverpaymentRejected) {
		t.Fatalf("expected ErrOverpaymentRejected, got %v", err)
	}

	entry, err := svc.Record(ctx, entityID, 24.5, nil, true)
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if entry.Status != ledger.StatusSettled {
		t.Fatalf("expected SETTLED, got %s", entry.Status)
	}

	reloaded, err := svc.Get(ctx, entityID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	assertFloat(t, reloaded.TotalPaid, 100, "total paid")
	assertFloat(t, reloaded.Outstanding, 0, "outstanding")
	if len(reloaded.Events) != 3 {
		t.Fatalf("expected 3 persisted events, got %d", len(reloaded.Events))
	}
	if reloaded.Version < 3 {
		t.Fatalf("expected version bumped per save, got %d", reloaded.Version)
	}
}

func TestLedger_StaleVersionRejected_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "balance_ledger") || !tableExists(db, "ledger_events") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	entityID := fmt.Sprintf("sale-stale-%d", time.Now().UnixNano())
	repo := ledgerpostgres.NewLedgerRepository(db)

	t.Cleanup(func() {
		_, _ = db.ExecContext(ctx, "DELETE FROM ledger_events WHERE entity_id = $1", entityID)
		_, _ = db.ExecContext(ctx, "DELETE FROM balance_ledger WHERE entity_id = $1", entityID)
	})

	entry, err := ledger.NewEntry(entityID, 50, time.Now().UTC())
	if err != nil {
		t.Fatalf("new entry: %v", err)
	}
	if err := repo.Create(ctx, entry); err != nil {
		t.Fatalf("create: %v", err)
	}

	first, err := repo.Get(ctx, entityID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	second := first.Clone()

	if err := first.RecordSettlement(20, nil, false, time.Now().UTC()); err != nil {
		t.Fatalf("record first: %v", err)
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	if err := second.RecordSettlement(10, nil, false, time.Now().UTC()); err != nil {
		t.Fatalf("record second: %v", err)
	}
	err = repo.Save(ctx, second)
	if !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}

func assertFloat(t *testing.T, got, want float64, label string) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("%s mismatch: got=%v want=%v", label, got, want)
	}
}
