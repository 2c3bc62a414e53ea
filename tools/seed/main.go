// Command seed prepares a development database: it publishes a run of
// exchange rates and prints signed tokens for each role so the HTTP API can
// be exercised from curl or a browser without a separate auth service.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tienda-cloud/internal/auth"
)

func main() {
	var (
		dsn     = flag.String("db", getenvDefault("DATABASE_URL", ""), "postgres connection string")
		rate    = flag.Float64("rate", 36.5, "bolivar rate for the most recent day")
		days    = flag.Int("days", 7, "number of daily rates to publish, ending today")
		secret  = flag.String("jwt-secret", getenvDefault("AUTH_JWT_SECRET", ""), "secret for the printed tokens")
		storeID = flag.String("store", "store-dev", "store claim for the printed tokens")
		ttl     = flag.Duration("ttl", 12*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *dsn != "" {
		if err := seedRates(context.Background(), *dsn, *rate, *days); err != nil {
			log.Fatalf("seed: %v", err)
		}
	} else {
		log.Print("seed: no database configured, skipping exchange rates")
	}

	if *secret == "" {
		log.Print("seed: no jwt secret configured, skipping tokens")
		return
	}
	for _, role := range []auth.Role{auth.RoleCashier, auth.RoleSupervisor, auth.RoleAdmin} {
		token, err := auth.SignJWT(*storeID, role, "dev-"+string(role), []byte(*secret), *ttl)
		if err != nil {
			log.Fatalf("seed: sign token role=%s: %v", role, err)
		}
		log.Printf("seed: token role=%s store=%s\n%s", role, *storeID, token)
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// seedRates publishes one rate per day ending today, drifting slightly so
// historical lookups return distinct values.
func seedRates(ctx context.Context, dsn string, latest float64, days int) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	for i := days - 1; i >= 0; i-- {
		effective := now.AddDate(0, 0, -i)
		value := latest - float64(i)*0.05
		if _, err := db.ExecContext(ctx, `
INSERT INTO exchange_rates (effective_at, rate)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`, effective, value); err != nil {
			return err
		}
	}
	log.Printf("seed: published rates days=%d latest=%.2f", days, latest)
	return nil
}
