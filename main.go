package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	approvalapp "tienda-cloud/internal/approval/application"
	approval "tienda-cloud/internal/approval/domain"
	approvalmemory "tienda-cloud/internal/approval/infrastructure/memory"
	approvalpostgres "tienda-cloud/internal/approval/infrastructure/postgres"
	approvalinterfaces "tienda-cloud/internal/approval/interfaces"
	"tienda-cloud/internal/audit"
	"tienda-cloud/internal/auth"
	"tienda-cloud/internal/config"
	ledgerapp "tienda-cloud/internal/ledger/application"
	ledger "tienda-cloud/internal/ledger/domain"
	ledgermemory "tienda-cloud/internal/ledger/infrastructure/memory"
	ledgerpostgres "tienda-cloud/internal/ledger/infrastructure/postgres"
	ledgerinterfaces "tienda-cloud/internal/ledger/interfaces"
	"tienda-cloud/internal/notify"
	"tienda-cloud/internal/observability/metrics"
	checkoutapp "tienda-cloud/internal/settlement/application"
	"tienda-cloud/internal/settlement/infrastructure/rates"
	checkoutinterfaces "tienda-cloud/internal/settlement/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Register()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		metrics.RegisterDBMetrics(db, logger)
	} else {
		logger.Printf("no database configured, using in-memory stores")
	}

	var auditLogger audit.Logger = audit.NopLogger{}
	var ledgerRepo ledger.Repository = ledgermemory.NewLedgerRepository()
	var approvalRepo approval.Repository = approvalmemory.NewApprovalRepository()
	if db != nil {
		auditLogger = audit.NewRepository(db)
		ledgerRepo = ledgerpostgres.NewLedgerRepository(db)
		approvalRepo = approvalpostgres.NewApprovalRepository(db)
	}

	table, err := cfg.MethodTable()
	if err != nil {
		logger.Fatalf("method table error: %v", err)
	}

	var rateProvider checkoutinterfaces.RateProvider
	switch {
	case cfg.FixedRate > 0:
		rateProvider, err = rates.NewFixedRateProvider(cfg.FixedRate)
		if err != nil {
			logger.Fatalf("rate provider error: %v", err)
		}
	case db != nil:
		rateProvider = rates.NewPostgresRateProvider(db)
	}

	allowance := checkoutapp.GiftAllowance{
		LimitBs:  cfg.GiftLimits.MaxBs,
		LimitUSD: cfg.GiftLimits.MaxUSD,
	}
	checkoutService, err := checkoutapp.NewCheckoutService(table, allowance, logger)
	if err != nil {
		logger.Fatalf("checkout service error: %v", err)
	}
	checkoutHandler, err := checkoutinterfaces.NewCheckoutHandler(checkoutService, table, rateProvider, auditLogger)
	if err != nil {
		logger.Fatalf("checkout handler error: %v", err)
	}

	ledgerService, err := ledgerapp.NewLedgerService(ledgerRepo, logger)
	if err != nil {
		logger.Fatalf("ledger service error: %v", err)
	}
	ledgerHandler, err := ledgerinterfaces.NewLedgerHandler(ledgerService, auditLogger)
	if err != nil {
		logger.Fatalf("ledger handler error: %v", err)
	}

	bus := notify.NewBus()
	approvalService, err := approvalapp.NewApprovalService(approvalRepo, bus, logger)
	if err != nil {
		logger.Fatalf("approval service error: %v", err)
	}
	discountHandler, err := approvalinterfaces.NewDiscountHandler(approvalService, bus, auditLogger)
	if err != nil {
		logger.Fatalf("discount handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/checkout/settle", checkoutHandler)
	mux.Handle("/api/v1/ledger", ledgerHandler)
	mux.Handle("/api/v1/ledger/", ledgerHandler)
	mux.Handle("/api/v1/discounts", discountHandler)
	mux.Handle("/api/v1/discounts/", discountHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE streaming working through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
