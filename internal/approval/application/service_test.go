package application_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"tienda-cloud/internal/approval/application"
	approval "tienda-cloud/internal/approval/domain"
	approvalmemory "tienda-cloud/internal/approval/infrastructure/memory"
	"tienda-cloud/internal/money"
	"tienda-cloud/internal/notify"
)

func newService(t *testing.T) (*application.ApprovalService, *notify.Bus) {
	t.Helper()
	bus := notify.NewBus()
	svc, err := application.NewApprovalService(
		approvalmemory.NewApprovalRepository(),
		bus,
		log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, bus
}

func draftFor(sessionID string) approval.Draft {
	return approval.Draft{
		SessionID: sessionID,
		Sale: approval.SaleSnapshot{
			Items: []approval.SaleItem{{Description: "reparacion", Quantity: 1, UnitPrice: 200, LineTotal: 200}},
			Total: 200,
		},
		DiscountType: approval.DiscountFixed,
		Amount:       30,
		Reason:       "garantia",
	}
}

func TestSubmit_PublishesToPendingTopic(t *testing.T) {
	svc, bus := newService(t)
	ctx := context.Background()

	var created []application.RequestCreated
	unsubscribe := bus.Subscribe(notify.TopicPendingRequests, func(event any) {
		if e, ok := event.(application.RequestCreated); ok {
			created = append(created, e)
		}
	})
	defer unsubscribe()

	request, err := svc.Submit(ctx, draftFor("session-a"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if request.State != approval.StatePending {
		t.Fatalf("expected PENDING, got %s", request.State)
	}
	if len(created) != 1 || created[0].Request.ID != request.ID {
		t.Fatalf("expected one creation event for %s, got %+v", request.ID, created)
	}
}

func TestSubmit_DiscountEqualToTotalFails(t *testing.T) {
	svc, _ := newService(t)
	draft := draftFor("session-c")
	draft.Amount = draft.Sale.Total

	_, err := svc.Submit(context.Background(), draft, "store-1", "cashier-1", false)
	if !errors.Is(err, money.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSubmit_DuplicatePendingRejected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, draftFor("session-e"), "store-1", "cashier-1", false); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	_, err := svc.Submit(ctx, draftFor("session-e"), "store-1", "cashier-1", false)
	if !errors.Is(err, approval.ErrDuplicatePendingRequest) {
		t.Fatalf("expected ErrDuplicatePendingRequest, got %v", err)
	}
}

func TestSubmit_PrivilegedSelfApproves(t *testing.T) {
	svc, bus := newService(t)
	ctx := context.Background()

	events := 0
	unsubscribe := bus.Subscribe(notify.TopicPendingRequests, func(any) { events++ })
	defer unsubscribe()

	request, err := svc.Submit(ctx, draftFor("session-priv"), "store-1", "supervisor-1", true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if request.State != approval.StateApproved {
		t.Fatalf("expected APPROVED, got %s", request.State)
	}
	if request.ApprovedBy != "supervisor-1" || request.ResolvedAt == nil {
		t.Fatal("self-approval metadata missing")
	}
	if events != 0 {
		t.Fatalf("self-approval must not notify approvers, got %d events", events)
	}

	// The record still lands in the store for audit.
	stored, err := svc.GetBySession(ctx, "session-priv")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if stored == nil || stored.ID != request.ID {
		t.Fatal("self-approved request not persisted")
	}
}

func TestResolve_DeliversToSessionTopic(t *testing.T) {
	svc, bus := newService(t)
	ctx := context.Background()

	request, err := svc.Submit(ctx, draftFor("session-r"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var resolved []application.RequestResolved
	unsubscribe := bus.Subscribe(notify.SessionTopic("session-r"), func(event any) {
		if e, ok := event.(application.RequestResolved); ok {
			resolved = append(resolved, e)
		}
	})
	defer unsubscribe()

	out, err := svc.Resolve(ctx, request.ID, "supervisor-1", application.DecisionApproved, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out.State != approval.StateApproved {
		t.Fatalf("expected APPROVED, got %s", out.State)
	}
	if len(resolved) != 1 || resolved[0].Request.State != approval.StateApproved {
		t.Fatalf("expected one resolution event, got %+v", resolved)
	}
}

func TestResolve_ConcurrentFirstWriterWins(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	request, err := svc.Submit(ctx, draftFor("session-d"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	decisions := []string{application.DecisionApproved, application.DecisionRejected}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = svc.Resolve(ctx, request.ID, "supervisor-"+decisions[idx], decisions[idx], "race")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, approval.ErrNotPending):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestResolve_UnknownDecision(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Resolve(context.Background(), "dr-x", "supervisor-1", "MAYBE", "")
	if !errors.Is(err, approval.ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestCancel_UnblocksResubmission(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, draftFor("session-x"), "store-1", "cashier-1", false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Cancel(ctx, "session-x", "cashier-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// Cancelling again reports no pending work.
	if err := svc.Cancel(ctx, "session-x", "cashier-1"); !errors.Is(err, approval.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}

	// The session can request again after cancellation.
	request, err := svc.Submit(ctx, draftFor("session-x"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("resubmit after cancel: %v", err)
	}
	if request.State != approval.StatePending {
		t.Fatalf("expected PENDING, got %s", request.State)
	}
}

func TestCancel_OnlyOwnerMayCancel(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, draftFor("session-own"), "store-1", "cashier-1", false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	err := svc.Cancel(ctx, "session-own", "cashier-2")
	if !errors.Is(err, approval.ErrNotRequestOwner) {
		t.Fatalf("expected ErrNotRequestOwner, got %v", err)
	}
}

func TestSubmit_SupersedesApprovedWithoutMutatingIt(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, draftFor("session-r"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Resolve(ctx, first.ID, "supervisor-1", application.DecisionApproved, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	second, err := svc.Submit(ctx, draftFor("session-r"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("submit over approved: %v", err)
	}
	if second.State != approval.StatePending {
		t.Fatalf("fresh request state = %s, want %s", second.State, approval.StatePending)
	}

	latest, err := svc.GetBySession(ctx, "session-r")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected the fresh request to win the session, got %+v", latest)
	}

	stale, err := svc.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get superseded: %v", err)
	}
	if stale.State != approval.StateApproved {
		t.Fatalf("superseded request state = %s, want it to stay %s", stale.State, approval.StateApproved)
	}
}

func TestGetBySession_ReturnsLatest(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Submit(ctx, draftFor("session-l"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Resolve(ctx, first.ID, "supervisor-1", application.DecisionRejected, "too much"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := svc.Submit(ctx, draftFor("session-l"), "store-1", "cashier-1", false)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	latest, err := svc.GetBySession(ctx, "session-l")
	if err != nil {
		t.Fatalf("get by session: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("expected latest request %s, got %+v", second.ID, latest)
	}

	none, err := svc.GetBySession(ctx, "session-never")
	if err != nil {
		t.Fatalf("get by unknown session: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for unknown session, got %+v", none)
	}
}

func TestListPending_OrderedByCreation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	for _, session := range []string{"s1", "s2", "s3"} {
		if _, err := svc.Submit(ctx, draftFor(session), "store-1", "cashier-1", false); err != nil {
			t.Fatalf("submit %s: %v", session, err)
		}
	}
	pending, err := svc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending, got %d", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].CreatedAt.Before(pending[i-1].CreatedAt) {
			t.Fatal("pending list out of order")
		}
	}
}
