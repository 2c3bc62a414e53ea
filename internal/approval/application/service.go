package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"strings"
	"time"

	approval "tienda-cloud/internal/approval/domain"
	"tienda-cloud/internal/notify"
	"tienda-cloud/internal/observability/metrics"
)

// Decision values accepted by Resolve.
const (
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// ApprovalService drives the discount request lifecycle. Persistence is the
// source of truth; channel delivery is best-effort and reconciled by
// GetBySession polling on reconnect.
type ApprovalService struct {
	repo    approval.Repository
	channel notify.Channel
	logger  *log.Logger
}

// NewApprovalService constructs a service.
func NewApprovalService(repo approval.Repository, channel notify.Channel, logger *log.Logger) (*ApprovalService, error) {
	if repo == nil {
		return nil, approval.ErrNilRequest
	}
	return &ApprovalService{repo: repo, channel: channel, logger: logger}, nil
}

// Submit validates the draft and creates a request for the session.
//
// A privileged requester self-approves synchronously: the request is
// persisted already APPROVED and no notification round-trip occurs. The
// record still lands in the store so the audit trail covers both paths.
func (s *ApprovalService) Submit(ctx context.Context, draft approval.Draft, storeID, requesterID string, privileged bool) (*approval.DiscountRequest, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveApprovalSubmit(result, time.Since(start))
	}()

	now := time.Now().UTC()
	request, err := approval.NewRequest(newRequestID(), draft, storeID, requesterID, now)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	if privileged {
		request.State = approval.StateApproved
		request.ApprovedBy = requesterID
		request.ResolvedAt = &now
		if err := s.repo.Create(ctx, request); err != nil {
			result = metrics.ResultError
			return nil, err
		}
		if s.logger != nil {
			s.logger.Printf("discount_self_approved request_id=%s session_id=%s amount=%.2f",
				request.ID, request.SessionID, request.AmountReference)
		}
		return request, nil
	}

	if err := s.repo.Create(ctx, request); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("discount_submitted request_id=%s session_id=%s requested_by=%s amount=%.2f",
			request.ID, request.SessionID, requesterID, request.AmountReference)
	}
	s.publish(notify.TopicPendingRequests, RequestCreated{Request: request.Clone()})
	return request, nil
}

// Resolve applies an approver decision. The conditional write in the store
// guarantees first writer wins; the loser gets ErrNotPending.
func (s *ApprovalService) Resolve(ctx context.Context, requestID, approverID, decision, note string) (*approval.DiscountRequest, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveApprovalResolve(result, strings.ToLower(decision), time.Since(start))
	}()

	resolution := approval.Resolution{
		ApprovedBy: approverID,
		ResolvedAt: time.Now().UTC(),
	}
	switch decision {
	case DecisionApproved:
		resolution.State = approval.StateApproved
	case DecisionRejected:
		resolution.State = approval.StateRejected
		resolution.RejectionReason = note
	default:
		result = metrics.ResultError
		return nil, approval.ErrInvalidDecision
	}

	request, err := s.repo.Resolve(ctx, requestID, resolution)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("discount_resolved request_id=%s session_id=%s decision=%s by=%s",
			request.ID, request.SessionID, request.State, approverID)
	}
	s.publishResolved(request)
	return request, nil
}

// Cancel withdraws the session's PENDING request. Only the requester may
// cancel; the call is safe to repeat and safe to omit on disconnect.
func (s *ApprovalService) Cancel(ctx context.Context, sessionID, actorID string) error {
	pending, err := s.repo.PendingBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if pending == nil {
		return approval.ErrNotPending
	}
	if pending.RequestedBy != actorID {
		return approval.ErrNotRequestOwner
	}

	request, err := s.repo.Resolve(ctx, pending.ID, approval.Resolution{
		State:      approval.StateCancelled,
		ResolvedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Printf("discount_cancelled request_id=%s session_id=%s by=%s",
			request.ID, sessionID, actorID)
	}
	s.publishResolved(request)
	return nil
}

// Get returns the request by id.
func (s *ApprovalService) Get(ctx context.Context, requestID string) (*approval.DiscountRequest, error) {
	request, err := s.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, approval.ErrRequestNotFound
	}
	return request, nil
}

// GetBySession returns the latest request for the session, nil when none
// exists. Reconnecting clients poll this instead of trusting push delivery.
func (s *ApprovalService) GetBySession(ctx context.Context, sessionID string) (*approval.DiscountRequest, error) {
	return s.repo.LatestBySession(ctx, sessionID)
}

// ListPending returns all unresolved requests for approver views.
func (s *ApprovalService) ListPending(ctx context.Context) ([]*approval.DiscountRequest, error) {
	return s.repo.ListPending(ctx)
}

func (s *ApprovalService) publishResolved(request *approval.DiscountRequest) {
	event := RequestResolved{Request: request.Clone()}
	s.publish(notify.SessionTopic(request.SessionID), event)
	s.publish(notify.TopicPendingRequests, event)
}

func (s *ApprovalService) publish(topic string, event any) {
	if s.channel == nil {
		return
	}
	s.channel.Publish(topic, event)
}

func newRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return "dr-" + hex.EncodeToString(buf)
}
