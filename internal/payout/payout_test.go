package payout_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/payout"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCompute_ProportionalDistribution(t *testing.T) {
	tests := []struct {
		name     string
		stake    float64
		winning  float64
		combined float64
		want     string
	}{
		{"whole winning pool", 10, 10, 20, "20"},
		{"half the winning pool", 5, 10, 20, "10"},
		{"no losing pool", 10, 10, 10, "10"},
		{"uneven thirds round", 1, 3, 10, "3.33"},
		{"exact half rounds up", 3, 8, 9, "3.38"}, // 27/8 = 3.375
		{"small stake", 0.01, 100, 250, "0.03"},   // 0.025 rounds up
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := payout.Compute(d(tt.stake), d(tt.winning), d(tt.combined))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want, _ := decimal.NewFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("Compute(%v, %v, %v) = %s, want %s",
					tt.stake, tt.winning, tt.combined, got, tt.want)
			}
		})
	}
}

func TestCompute_ZeroWinningPool(t *testing.T) {
	_, err := payout.Compute(d(10), decimal.Zero, d(20))
	if !errors.Is(err, payout.ErrZeroWinningPool) {
		t.Errorf("expected ErrZeroWinningPool, got %v", err)
	}

	_, err = payout.Compute(d(10), d(-1), d(20))
	if !errors.Is(err, payout.ErrZeroWinningPool) {
		t.Errorf("expected ErrZeroWinningPool for negative pool, got %v", err)
	}
}

func TestCompute_Conservation(t *testing.T) {
	// Winners on one side of a market split the combined pool; the sum of
	// payouts must equal the combined pool within one cent per winner.
	stakes := []float64{10, 7.37, 0.01, 123.45, 55.55}
	winning := decimal.Zero
	for _, s := range stakes {
		winning = winning.Add(d(s))
	}
	combined := winning.Add(d(88.88)) // losing pool

	total := decimal.Zero
	for _, s := range stakes {
		p, err := payout.Compute(d(s), winning, combined)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		total = total.Add(p)
	}

	tolerance := decimal.NewFromFloat(0.01).Mul(decimal.NewFromInt(int64(len(stakes))))
	if total.Sub(combined).Abs().GreaterThan(tolerance) {
		t.Errorf("conservation violated: payouts sum to %s, pool is %s", total, combined)
	}
}

func TestNewEngine_InvalidFee(t *testing.T) {
	for _, bps := range []int64{-1, 10000, 20000} {
		if _, err := payout.NewEngine(bps); !errors.Is(err, payout.ErrInvalidFee) {
			t.Errorf("NewEngine(%d): expected ErrInvalidFee, got %v", bps, err)
		}
	}
	if _, err := payout.NewEngine(0); err != nil {
		t.Errorf("NewEngine(0): unexpected error %v", err)
	}
	if _, err := payout.NewEngine(9999); err != nil {
		t.Errorf("NewEngine(9999): unexpected error %v", err)
	}
}

func TestSettle_NoFee(t *testing.T) {
	engine, err := payout.NewEngine(0)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	net, fee, err := engine.Settle(d(10), d(10), d(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !net.Equal(d(20)) {
		t.Errorf("net = %s, want 20", net)
	}
	if !fee.IsZero() {
		t.Errorf("fee = %s, want 0", fee)
	}
}

func TestSettle_FeeWithheld(t *testing.T) {
	engine, err := payout.NewEngine(200) // 2%
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	net, fee, err := engine.Settle(d(10), d(10), d(20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !net.Equal(d(19.6)) {
		t.Errorf("net = %s, want 19.6", net)
	}
	if !fee.Equal(d(0.4)) {
		t.Errorf("fee = %s, want 0.4", fee)
	}
	// Net plus fee reassembles the rounded gross payout.
	if !net.Add(fee).Equal(d(20)) {
		t.Errorf("net + fee = %s, want 20", net.Add(fee))
	}
}

func TestSettle_ZeroWinningPool(t *testing.T) {
	engine, _ := payout.NewEngine(100)
	_, _, err := engine.Settle(d(10), decimal.Zero, d(20))
	if !errors.Is(err, payout.ErrZeroWinningPool) {
		t.Errorf("expected ErrZeroWinningPool, got %v", err)
	}
}
