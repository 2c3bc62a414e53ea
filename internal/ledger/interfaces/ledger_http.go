package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"tienda-cloud/internal/audit"
	"tienda-cloud/internal/auth"
	ledgerapp "tienda-cloud/internal/ledger/application"
	ledger "tienda-cloud/internal/ledger/domain"
	"tienda-cloud/internal/money"
	"tienda-cloud/internal/observability/metrics"
	settlement "tienda-cloud/internal/settlement/domain"
)

// LedgerHandler handles ledger APIs.
type LedgerHandler struct {
	service     *ledgerapp.LedgerService
	auditLogger audit.Logger
}

// NewLedgerHandler constructs a handler.
func NewLedgerHandler(service *ledgerapp.LedgerService, auditLogger audit.Logger) (*LedgerHandler, error) {
	if service == nil {
		return nil, errors.New("ledger handler: nil service")
	}
	return &LedgerHandler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles ledger routes under /api/v1/ledger.
func (h *LedgerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/ledger" && r.Method == http.MethodPost {
		h.handleOpen(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/ledger/") {
		rest := strings.TrimPrefix(path, "/api/v1/ledger/")
		h.handleByEntity(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *LedgerHandler) handleByEntity(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	entityID := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, entityID)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "settlements":
			if r.Method == http.MethodPost {
				h.handleRecord(w, r, entityID)
				return
			}
		case "export.pdf":
			if r.Method == http.MethodGet {
				h.handleExportPDF(w, r, entityID)
				return
			}
		case "export.xlsx":
			if r.Method == http.MethodGet {
				h.handleExportXLSX(w, r, entityID)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *LedgerHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EntityID string  `json:"entity_id"`
		TotalDue float64 `json:"total_due"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	entry, err := h.service.Open(r.Context(), req.EntityID, req.TotalDue)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(entry)
	h.logAudit(r, entry.EntityID, "ledger.open", map[string]any{
		"total_due": entry.TotalDue,
	})
}

func (h *LedgerHandler) handleGet(w http.ResponseWriter, r *http.Request, entityID string) {
	entry, err := h.service.Get(r.Context(), entityID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entry)
}

func (h *LedgerHandler) handleRecord(w http.ResponseWriter, r *http.Request, entityID string) {
	var req struct {
		AmountReference float64                  `json:"amount_reference"`
		Lines           []settlement.PaymentLine `json:"lines"`
		IsFinal         bool                     `json:"is_final"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	entry, err := h.service.Record(r.Context(), entityID, req.AmountReference, req.Lines, req.IsFinal)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entry)
	h.logAudit(r, entityID, "ledger.record", map[string]any{
		"amount":      req.AmountReference,
		"is_final":    req.IsFinal,
		"status":      entry.Status,
		"outstanding": entry.Outstanding,
	})
}

func (h *LedgerHandler) handleExportPDF(w http.ResponseWriter, r *http.Request, entityID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLedgerExport("pdf", result, time.Since(start))
	}()

	entry, err := h.service.Get(r.Context(), entityID)
	if err != nil {
		result = metrics.ResultError
		respondLedgerError(w, err)
		return
	}
	data, err := BuildLedgerPDF(entry)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, entityID, "ledger.export", map[string]any{"format": "pdf"})
}

func (h *LedgerHandler) handleExportXLSX(w http.ResponseWriter, r *http.Request, entityID string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLedgerExport("xlsx", result, time.Since(start))
	}()

	entry, err := h.service.Get(r.Context(), entityID)
	if err != nil {
		result = metrics.ResultError
		respondLedgerError(w, err)
		return
	}
	data, err := BuildLedgerXLSX(entry)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	h.logAudit(r, entityID, "ledger.export", map[string]any{"format": "xlsx"})
}

func (h *LedgerHandler) logAudit(r *http.Request, entityID, action string, meta map[string]any) {
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
		ResourceType: "ledger_entry",
		ResourceID:   entityID,
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func respondLedgerError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrDuplicateEntry),
		errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, ledger.ErrVersionConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrOverpaymentRejected):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ledger.ErrEmptyEntityID), errors.Is(err, money.ErrInvalidAmount):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
