package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	approvalapp "tienda-cloud/internal/approval/application"
	approval "tienda-cloud/internal/approval/domain"
	"tienda-cloud/internal/audit"
	"tienda-cloud/internal/auth"
	"tienda-cloud/internal/money"
	"tienda-cloud/internal/notify"
)

// DiscountHandler handles discount request APIs.
type DiscountHandler struct {
	service     *approvalapp.ApprovalService
	channel     notify.Channel
	auditLogger audit.Logger
}

// NewDiscountHandler constructs a handler.
func NewDiscountHandler(service *approvalapp.ApprovalService, channel notify.Channel, auditLogger audit.Logger) (*DiscountHandler, error) {
	if service == nil {
		return nil, errors.New("discount handler: nil service")
	}
	return &DiscountHandler{service: service, channel: channel, auditLogger: auditLogger}, nil
}

// ServeHTTP handles discount routes under /api/v1/discounts.
func (h *DiscountHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/discounts" && r.Method == http.MethodPost {
		h.handleSubmit(w, r)
		return
	}
	if path == "/api/v1/discounts/pending" && r.Method == http.MethodGet {
		h.handleListPending(w, r)
		return
	}
	if path == "/api/v1/discounts/stream" && r.Method == http.MethodGet {
		h.handleStream(w, r, notify.TopicPendingRequests)
		return
	}
	if strings.HasPrefix(path, "/api/v1/discounts/session/") {
		rest := strings.TrimPrefix(path, "/api/v1/discounts/session/")
		h.handleSession(w, r, rest)
		return
	}
	if strings.HasPrefix(path, "/api/v1/discounts/") {
		rest := strings.TrimPrefix(path, "/api/v1/discounts/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *DiscountHandler) handleSession(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	sessionID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGetBySession(w, r, sessionID)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "cancel":
			if r.Method == http.MethodPost {
				h.handleCancel(w, r, sessionID)
				return
			}
		case "stream":
			if r.Method == http.MethodGet {
				h.handleStream(w, r, notify.SessionTopic(sessionID))
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *DiscountHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	switch parts[1] {
	case "approve":
		h.handleResolve(w, r, id, approvalapp.DecisionApproved)
	case "reject":
		h.handleResolve(w, r, id, approvalapp.DecisionRejected)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *DiscountHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var draft approval.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	role := auth.RoleFromContext(r.Context())
	requesterID := auth.SubjectFromContext(r.Context())
	storeID := auth.StoreIDFromContext(r.Context())
	privileged := auth.CanApproveDiscounts(role)

	request, err := h.service.Submit(r.Context(), draft, storeID, requesterID, privileged)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(request)
	h.logAudit(r, request, "discount.submit", map[string]any{
		"amount":     request.AmountReference,
		"state":      request.State,
		"privileged": privileged,
	})
}

func (h *DiscountHandler) handleResolve(w http.ResponseWriter, r *http.Request, id, decision string) {
	var req struct {
		Note string `json:"note"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	approverID := auth.SubjectFromContext(r.Context())
	request, err := h.service.Resolve(r.Context(), id, approverID, decision, req.Note)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(request)
	h.logAudit(r, request, "discount.resolve", map[string]any{
		"decision": decision,
		"note":     req.Note,
	})
}

func (h *DiscountHandler) handleCancel(w http.ResponseWriter, r *http.Request, sessionID string) {
	actorID := auth.SubjectFromContext(r.Context())
	if err := h.service.Cancel(r.Context(), sessionID, actorID); err != nil {
		respondApprovalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
	h.logAudit(r, &approval.DiscountRequest{SessionID: sessionID}, "discount.cancel", nil)
}

func (h *DiscountHandler) handleGetBySession(w http.ResponseWriter, r *http.Request, sessionID string) {
	request, err := h.service.GetBySession(r.Context(), sessionID)
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if request == nil {
		_, _ = w.Write([]byte("null"))
		return
	}
	_ = json.NewEncoder(w).Encode(request)
}

func (h *DiscountHandler) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		respondApprovalError(w, err)
		return
	}
	if pending == nil {
		pending = []*approval.DiscountRequest{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pending)
}

func (h *DiscountHandler) logAudit(r *http.Request, request *approval.DiscountRequest, action string, meta map[string]any) {
	if h.auditLogger == nil {
		return
	}
	storeID := auth.StoreIDFromContext(r.Context())
	if storeID == "" {
		return
	}
	payload, _ := json.Marshal(meta)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		StoreID:      storeID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: "discount_request",
		ResourceID:   request.ID,
		SessionID:    request.SessionID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondApprovalError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, approval.ErrRequestNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, approval.ErrDuplicatePendingRequest),
		errors.Is(err, approval.ErrNotPending):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, approval.ErrNotRequestOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, approval.ErrInvalidDiscount),
		errors.Is(err, approval.ErrInvalidDecision),
		errors.Is(err, money.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
