package config

import (
	"errors"
	"testing"

	"tienda-cloud/internal/money"
	settlement "tienda-cloud/internal/settlement/domain"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TIENDA_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without jwt secret")
	}

	t.Setenv("AUTH_JWT_SECRET", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %s", cfg.HTTPAddr)
	}
	if cfg.GiftLimits.MaxBs != 50 || cfg.GiftLimits.MaxUSD != 2 {
		t.Fatalf("unexpected gift limits: %+v", cfg.GiftLimits)
	}
}

func TestLoad_RejectsBadRate(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("EXCHANGE_RATE", "-3")
	if _, err := Load(); !errors.Is(err, money.ErrInvalidExchangeRate) {
		t.Fatalf("expected ErrInvalidExchangeRate, got %v", err)
	}
}

func TestMethodTable_Overrides(t *testing.T) {
	cfg := Config{Methods: map[string]string{"cripto": "usd"}}
	table, err := cfg.MethodTable()
	if err != nil {
		t.Fatalf("method table: %v", err)
	}
	currency, ok := table.CurrencyFor(settlement.Method("cripto"))
	if !ok || currency != money.CurrencyUSD {
		t.Fatalf("override not applied: %v %v", currency, ok)
	}
	if _, ok := table.CurrencyFor(settlement.MethodPagoMovil); !ok {
		t.Fatal("defaults lost after override")
	}
}

func TestMethodTable_RejectsUnknownCurrency(t *testing.T) {
	cfg := Config{Methods: map[string]string{"cripto": "eur"}}
	if _, err := cfg.MethodTable(); !errors.Is(err, settlement.ErrUnresolvedCurrency) {
		t.Fatalf("expected ErrUnresolvedCurrency, got %v", err)
	}
}
