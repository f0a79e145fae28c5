package policy_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/policy"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestCheckStake_Unrestricted(t *testing.T) {
	limiter := policy.NewStakeLimiter(decimal.Zero, decimal.Zero)

	open := map[int64]decimal.Decimal{1: d(1000), 2: d(5000)}
	if err := limiter.CheckStake(1, d(999999), open); err != nil {
		t.Errorf("zero limits should allow any stake, got %v", err)
	}
}

func TestCheckStake_PerMarketLimit(t *testing.T) {
	limiter := policy.NewStakeLimiter(d(100), decimal.Zero)

	tests := []struct {
		name    string
		market  int64
		stake   float64
		open    map[int64]decimal.Decimal
		wantErr error
	}{
		{"fresh market within cap", 1, 100, nil, nil},
		{"fresh market over cap", 1, 100.01, nil, policy.ErrPerMarketLimitExceeded},
		{"tops up to exactly cap", 1, 40, map[int64]decimal.Decimal{1: d(60)}, nil},
		{"tops up over cap", 1, 41, map[int64]decimal.Decimal{1: d(60)}, policy.ErrPerMarketLimitExceeded},
		{"other market stake ignored", 2, 100, map[int64]decimal.Decimal{1: d(100)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := limiter.CheckStake(tt.market, d(tt.stake), tt.open)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckStake = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckStake_TotalLimit(t *testing.T) {
	limiter := policy.NewStakeLimiter(decimal.Zero, d(200))

	open := map[int64]decimal.Decimal{1: d(80), 2: d(70)}
	if err := limiter.CheckStake(3, d(50), open); err != nil {
		t.Errorf("stake up to total cap should pass, got %v", err)
	}
	if err := limiter.CheckStake(3, d(50.01), open); !errors.Is(err, policy.ErrTotalLimitExceeded) {
		t.Errorf("expected ErrTotalLimitExceeded, got %v", err)
	}
}
