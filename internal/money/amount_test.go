package money

import (
	"errors"
	"math"
	"testing"
)

func TestRound2_HalfAwayFromZero(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1.01},
		{1.004, 1.0},
		{-1.005, -1.01},
		{2.675, 2.68},
		{50.0, 50.0},
		{0.125, 0.13},
	}
	for _, c := range cases {
		got := Round2(c.in)
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("Round2(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestArithmeticRoundsEachStep(t *testing.T) {
	// A sum of already-rounded line items never shows a fraction of a cent.
	total := 0.0
	for i := 0; i < 100; i++ {
		total = Add(total, 0.1)
	}
	if total != 10.0 {
		t.Fatalf("expected 10.00 after 100 additions of 0.10, got %v", total)
	}

	if got := Multiply(1.25, 40); got != 50.0 {
		t.Fatalf("Multiply(1.25, 40) = %v, want 50", got)
	}
	if got := Subtract(100.00, 99.995); got != 0.01 {
		t.Fatalf("Subtract(100, 99.995) = %v, want 0.01", got)
	}
	got, err := Divide(10, 3)
	if err != nil {
		t.Fatalf("divide: %v", err)
	}
	if got != 3.33 {
		t.Fatalf("Divide(10, 3) = %v, want 3.33", got)
	}
	if _, err := Divide(1, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount on divide by zero, got %v", err)
	}
}

func TestParse_Separators(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{"100", 100},
		{"100.50", 100.50},
		{"100,50", 100.50},
		{" 0.01 ", 0.01},
		{"1250,5", 1250.50},
	}
	for _, c := range cases {
		got, err := Parse(c.raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.raw, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	rejects := []string{"", "abc", "-1", "-0.01", "1e13", "1000000000000", "NaN", "Inf", "1,2,3"}
	for _, raw := range rejects {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Parse(%q): expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestConvert_RoundTripWithinCent(t *testing.T) {
	rates := []float64{36.55, 40, 107.33, 1}
	amounts := []float64{0.01, 1.25, 50, 99.99, 1234.56}
	for _, rate := range rates {
		for _, amount := range amounts {
			there := Convert(amount, rate)
			back, err := Divide(there, rate)
			if err != nil {
				t.Fatalf("divide: %v", err)
			}
			if math.Abs(back-amount) >= 0.01 {
				t.Fatalf("round trip %v at rate %v drifted: got %v", amount, rate, back)
			}
			// Re-converting the stored value must not compound the error.
			again, err := Divide(Convert(back, rate), rate)
			if err != nil {
				t.Fatalf("divide: %v", err)
			}
			if math.Abs(again-back) >= 0.01 {
				t.Fatalf("repeated conversion of %v at rate %v compounded: got %v", back, rate, again)
			}
		}
	}
}

func TestIsPositiveRate(t *testing.T) {
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1), 1e12} {
		if IsPositiveRate(rate) {
			t.Fatalf("rate %v should be invalid", rate)
		}
	}
	for _, rate := range []float64{0.0001, 1, 40, 36.55} {
		if !IsPositiveRate(rate) {
			t.Fatalf("rate %v should be valid", rate)
		}
	}
}

func TestEqualWithinCent(t *testing.T) {
	if !EqualWithinCent(10.004, 10.01) {
		t.Fatalf("10.004 and 10.01 should be within a cent")
	}
	if EqualWithinCent(10.00, 10.02) {
		t.Fatalf("10.00 and 10.02 are not within a cent")
	}
}

func TestAmount(t *testing.T) {
	a, err := NewAmount(50.005, CurrencyBs)
	if err != nil {
		t.Fatalf("new amount: %v", err)
	}
	if a.Value != 50.01 {
		t.Fatalf("expected rounded 50.01, got %v", a.Value)
	}
	if _, err := NewAmount(-1, CurrencyBs); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := NewAmount(1, Currency("eur")); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}

	usd, _ := NewAmount(1.25, CurrencyUSD)
	if got := usd.InReference(40); got != 50.0 {
		t.Fatalf("1.25 usd at 40 = %v, want 50", got)
	}
	bs, _ := NewAmount(50, CurrencyBs)
	if got := bs.InReference(40); got != 50.0 {
		t.Fatalf("reference amount must not convert, got %v", got)
	}

	if _, err := bs.Plus(usd); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch on mixed add, got %v", err)
	}
	sum, err := bs.Plus(bs)
	if err != nil || sum.Value != 100.0 {
		t.Fatalf("plus: %v %v", sum, err)
	}
}
