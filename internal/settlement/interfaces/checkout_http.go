package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tienda-cloud/internal/audit"
	"tienda-cloud/internal/auth"
	"tienda-cloud/internal/money"
	checkoutapp "tienda-cloud/internal/settlement/application"
	settlement "tienda-cloud/internal/settlement/domain"
)

// RateProvider supplies the exchange rate in effect at a point in time.
type RateProvider interface {
	RateAt(ctx context.Context, at time.Time) (float64, error)
}

// CheckoutHandler handles settlement evaluation APIs.
type CheckoutHandler struct {
	service     *checkoutapp.CheckoutService
	table       settlement.MethodTable
	rates       RateProvider
	auditLogger audit.Logger
}

// NewCheckoutHandler constructs a handler.
func NewCheckoutHandler(service *checkoutapp.CheckoutService, table settlement.MethodTable, rates RateProvider, auditLogger audit.Logger) (*CheckoutHandler, error) {
	if service == nil {
		return nil, errors.New("checkout handler: nil service")
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &CheckoutHandler{service: service, table: table, rates: rates, auditLogger: auditLogger}, nil
}

// ServeHTTP handles POST /api/v1/checkout/settle.
func (h *CheckoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/checkout/settle" || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req struct {
		TargetReference float64                  `json:"target_reference"`
		ExchangeRate    float64                  `json:"exchange_rate,omitempty"`
		AllowPartial    bool                     `json:"allow_partial"`
		Lines           []settlement.PaymentLine `json:"lines"`
		DeclaredChange  []settlement.PaymentLine `json:"declared_change,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	rate := req.ExchangeRate
	if rate == 0 && h.rates != nil {
		published, err := h.rates.RateAt(r.Context(), time.Now().UTC())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rate = published
	}

	attempt := settlement.NewAttempt()
	for _, line := range req.Lines {
		next, err := attempt.AddLine(h.table, line)
		if err != nil {
			respondCheckoutError(w, err)
			return
		}
		attempt = next
	}

	result, err := h.service.Settle(attempt, req.TargetReference, rate, req.AllowPartial, req.DeclaredChange)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
	h.logAudit(r, map[string]any{
		"target":        req.TargetReference,
		"rate":          rate,
		"allow_partial": req.AllowPartial,
		"lines":         len(req.Lines),
		"complete":      result.IsComplete,
		"surplus":       result.Surplus.Value,
	})
}

func (h *CheckoutHandler) logAudit(r *http.Request, meta map[string]any) {
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
		Action:       "checkout.settle",
		ResourceType: "settlement",
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidExchangeRate),
		errors.Is(err, settlement.ErrUnresolvedCurrency),
		errors.Is(err, settlement.ErrUnknownMethod),
		errors.Is(err, settlement.ErrLineIndex):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, checkoutapp.ErrGiftLimitExceeded):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
