// Command reconcile exports a month of ledger activity to CSV and, when a
// legacy point-of-sale export is supplied, diffs the daily collected totals
// against it. It is meant for end-of-month closing, where the accountant
// needs the ledger figures next to whatever the old register produced.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type options struct {
	dsn       string
	storeID   string
	month     string
	outDir    string
	legacyCSV string
	tolerance float64
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.dsn, "db", getenvDefault("DATABASE_URL", ""), "postgres connection string")
	flag.StringVar(&opts.storeID, "store", "", "store identifier for the report header")
	flag.StringVar(&opts.month, "month", "", "month to export, YYYY-MM")
	flag.StringVar(&opts.outDir, "out", "reconcile-out", "output directory for CSV files")
	flag.StringVar(&opts.legacyCSV, "legacy-payments", "", "optional legacy register export to diff against")
	flag.Float64Var(&opts.tolerance, "tolerance", 0.01, "accepted per-day delta before a mismatch is flagged")
	flag.Parse()
	return opts
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	opts := parseFlags()
	if opts.dsn == "" {
		log.Fatal("reconcile: -db or DATABASE_URL is required")
	}
	if opts.month == "" {
		log.Fatal("reconcile: -month is required, format YYYY-MM")
	}
	from, err := time.Parse("2006-01", opts.month)
	if err != nil {
		log.Fatalf("reconcile: bad -month %q: %v", opts.month, err)
	}
	to := from.AddDate(0, 1, 0)

	ctx := context.Background()
	db, err := sql.Open("pgx", opts.dsn)
	if err != nil {
		log.Fatalf("reconcile: open database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("reconcile: ping database: %v", err)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		log.Fatalf("reconcile: create output dir: %v", err)
	}

	entries, err := loadEntries(ctx, db, from, to)
	if err != nil {
		log.Fatalf("reconcile: load ledger entries: %v", err)
	}
	events, err := loadEvents(ctx, db, from, to)
	if err != nil {
		log.Fatalf("reconcile: load ledger events: %v", err)
	}
	requests, err := loadDiscountRequests(ctx, db, from, to)
	if err != nil {
		log.Fatalf("reconcile: load discount requests: %v", err)
	}

	if err := writeEntries(filepath.Join(opts.outDir, "ledger_entries.csv"), entries); err != nil {
		log.Fatalf("reconcile: write ledger_entries.csv: %v", err)
	}
	if err := writeEvents(filepath.Join(opts.outDir, "ledger_events.csv"), events); err != nil {
		log.Fatalf("reconcile: write ledger_events.csv: %v", err)
	}
	if err := writeRequests(filepath.Join(opts.outDir, "discount_requests.csv"), requests); err != nil {
		log.Fatalf("reconcile: write discount_requests.csv: %v", err)
	}
	log.Printf("reconcile: exported entries=%d events=%d discount_requests=%d month=%s store=%s",
		len(entries), len(events), len(requests), opts.month, opts.storeID)

	if opts.legacyCSV == "" {
		return
	}
	legacy, err := loadLegacyPayments(opts.legacyCSV)
	if err != nil {
		log.Fatalf("reconcile: load legacy payments: %v", err)
	}
	report := diffDaily(events, legacy, opts.tolerance)
	reportPath := filepath.Join(opts.outDir, "reconcile_report.csv")
	if err := writeReport(reportPath, report); err != nil {
		log.Fatalf("reconcile: write report: %v", err)
	}
	mismatches := 0
	for _, row := range report {
		if row.status != "OK" {
			mismatches++
		}
	}
	log.Printf("reconcile: report written path=%s days=%d mismatches=%d", reportPath, len(report), mismatches)
	if mismatches > 0 {
		os.Exit(2)
	}
}

type entryRow struct {
	entityID    string
	totalDue    float64
	totalPaid   float64
	outstanding float64
	status      string
	version     int
	createdAt   time.Time
	updatedAt   time.Time
}

func loadEntries(ctx context.Context, db *sql.DB, from, to time.Time) ([]entryRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT entity_id, total_due, total_paid, outstanding, status, version, created_at, updated_at
FROM balance_ledger
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entryRow
	for rows.Next() {
		var e entryRow
		if err := rows.Scan(&e.entityID, &e.totalDue, &e.totalPaid, &e.outstanding,
			&e.status, &e.version, &e.createdAt, &e.updatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type eventRow struct {
	entityID   string
	seq        int
	occurredAt time.Time
	amount     float64
	methods    string
	isFinal    bool
}

func loadEvents(ctx context.Context, db *sql.DB, from, to time.Time) ([]eventRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT entity_id, seq, occurred_at, amount, lines, is_final
FROM ledger_events
WHERE occurred_at >= $1 AND occurred_at < $2
ORDER BY occurred_at ASC, entity_id ASC, seq ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []eventRow
	for rows.Next() {
		var e eventRow
		var lines []byte
		if err := rows.Scan(&e.entityID, &e.seq, &e.occurredAt, &e.amount, &lines, &e.isFinal); err != nil {
			return nil, err
		}
		e.methods = summarizeLines(lines)
		out = append(out, e)
	}
	return out, rows.Err()
}

// summarizeLines flattens the stored payment lines into "method value currency"
// pairs so the CSV stays readable without a JSON column.
func summarizeLines(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var lines []struct {
		Method string `json:"method"`
		Amount struct {
			Value    float64 `json:"value"`
			Currency string  `json:"currency"`
		} `json:"amount"`
	}
	if err := json.Unmarshal(raw, &lines); err != nil {
		return string(raw)
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s %s %s", l.Method, formatFloat(l.Amount.Value), l.Amount.Currency))
	}
	return strings.Join(parts, "; ")
}

type requestRow struct {
	id         string
	sessionID  string
	requested  string
	discount   string
	amountRef  float64
	state      string
	resolvedBy string
	createdAt  time.Time
	resolvedAt sql.NullTime
}

func loadDiscountRequests(ctx context.Context, db *sql.DB, from, to time.Time) ([]requestRow, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, session_id, requested_by, discount_type, amount_reference, state, approved_by, created_at, resolved_at
FROM discount_requests
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []requestRow
	for rows.Next() {
		var r requestRow
		var approvedBy sql.NullString
		if err := rows.Scan(&r.id, &r.sessionID, &r.requested, &r.discount, &r.amountRef,
			&r.state, &approvedBy, &r.createdAt, &r.resolvedAt); err != nil {
			return nil, err
		}
		r.resolvedBy = approvedBy.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func writeEntries(path string, entries []entryRow) error {
	return writeCSV(path, [][]string{{
		"entity_id", "total_due", "total_paid", "outstanding", "status", "version", "created_at", "updated_at",
	}}, func(w *csv.Writer) error {
		for _, e := range entries {
			if err := w.Write([]string{
				e.entityID,
				formatFloat(e.totalDue),
				formatFloat(e.totalPaid),
				formatFloat(e.outstanding),
				e.status,
				strconv.Itoa(e.version),
				formatTime(e.createdAt),
				formatTime(e.updatedAt),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeEvents(path string, events []eventRow) error {
	return writeCSV(path, [][]string{{
		"entity_id", "seq", "occurred_at", "amount", "methods", "is_final",
	}}, func(w *csv.Writer) error {
		for _, e := range events {
			if err := w.Write([]string{
				e.entityID,
				strconv.Itoa(e.seq),
				formatTime(e.occurredAt),
				formatFloat(e.amount),
				e.methods,
				strconv.FormatBool(e.isFinal),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeRequests(path string, requests []requestRow) error {
	return writeCSV(path, [][]string{{
		"id", "session_id", "requested_by", "discount_type", "amount_reference", "state", "resolved_by", "created_at", "resolved_at",
	}}, func(w *csv.Writer) error {
		for _, r := range requests {
			resolvedAt := ""
			if r.resolvedAt.Valid {
				resolvedAt = formatTime(r.resolvedAt.Time)
			}
			if err := w.Write([]string{
				r.id,
				r.sessionID,
				r.requested,
				r.discount,
				formatFloat(r.amountRef),
				r.state,
				r.resolvedBy,
				formatTime(r.createdAt),
				resolvedAt,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeCSV(path string, header [][]string, body func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range header {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	if err := body(w); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// loadLegacyPayments reads the old register export. Expected columns are
// "date,amount"; the date may be either 2006-01-02 or 02/01/2006, with or
// without a trailing time of day.
func loadLegacyPayments(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	totals := make(map[string]float64)
	for i, rec := range records {
		if len(rec) < 2 {
			continue
		}
		if i == 0 && !isNumeric(rec[1]) {
			continue // header
		}
		day, err := parseLegacyDate(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad amount %q", i+1, rec[1])
		}
		totals[day] += amount
	}
	return totals, nil
}

func parseLegacyDate(raw string) (string, error) {
	if idx := strings.IndexByte(raw, ' '); idx > 0 {
		raw = raw[:idx]
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

type reportRow struct {
	day         string
	ledgerTotal float64
	legacyTotal float64
	delta       float64
	status      string
}

func diffDaily(events []eventRow, legacy map[string]float64, tolerance float64) []reportRow {
	ledger := make(map[string]float64)
	for _, e := range events {
		ledger[e.occurredAt.UTC().Format("2006-01-02")] += e.amount
	}

	days := make(map[string]struct{})
	for day := range ledger {
		days[day] = struct{}{}
	}
	for day := range legacy {
		days[day] = struct{}{}
	}
	ordered := make([]string, 0, len(days))
	for day := range days {
		ordered = append(ordered, day)
	}
	sort.Strings(ordered)

	out := make([]reportRow, 0, len(ordered))
	for _, day := range ordered {
		row := reportRow{
			day:         day,
			ledgerTotal: ledger[day],
			legacyTotal: legacy[day],
		}
		row.delta = row.ledgerTotal - row.legacyTotal
		row.status = "OK"
		if math.Abs(row.delta) > tolerance {
			row.status = "MISMATCH"
		}
		out = append(out, row)
	}
	return out
}

func writeReport(path string, report []reportRow) error {
	return writeCSV(path, [][]string{{
		"day", "ledger_total", "legacy_total", "delta", "status",
	}}, func(w *csv.Writer) error {
		for _, row := range report {
			if err := w.Write([]string{
				row.day,
				formatFloat(row.ledgerTotal),
				formatFloat(row.legacyTotal),
				formatFloat(row.delta),
				row.status,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
