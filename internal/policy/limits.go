// Package policy implements optional per-user stake limits.
//
// The default policy is unrestricted: any identity may bet any size, any
// number of times, on either side of a market. Operators who want caps set
// MaxPerMarket and/or MaxTotalOpen; a zero limit disables that check.
package policy

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPerMarketLimitExceeded is returned when a bet would push a user's
	// total stake in a single market beyond the per-market maximum.
	ErrPerMarketLimitExceeded = errors.New("policy: per-market stake limit exceeded")

	// ErrTotalLimitExceeded is returned when a bet would push a user's
	// aggregate open stake across all markets beyond the total maximum.
	ErrTotalLimitExceeded = errors.New("policy: total open stake limit exceeded")
)

// StakeLimiter enforces per-user stake caps.
type StakeLimiter struct {
	// MaxPerMarket is the maximum total stake one user may hold in a single
	// market, across both sides. Zero disables the check.
	MaxPerMarket decimal.Decimal

	// MaxTotalOpen is the maximum aggregate open stake one user may hold
	// across all markets. Zero disables the check.
	MaxTotalOpen decimal.Decimal
}

// NewStakeLimiter creates a limiter with the given caps. Either cap may be
// zero to leave that dimension unrestricted.
func NewStakeLimiter(maxPerMarket, maxTotalOpen decimal.Decimal) *StakeLimiter {
	return &StakeLimiter{
		MaxPerMarket: maxPerMarket,
		MaxTotalOpen: maxTotalOpen,
	}
}

// CheckStake validates whether adding stake to targetMarket respects the
// configured caps, given the user's current open stake per market.
// Returns nil if the bet is within limits.
func (l *StakeLimiter) CheckStake(
	targetMarket int64,
	stake decimal.Decimal,
	openStakes map[int64]decimal.Decimal,
) error {
	if l.MaxPerMarket.IsPositive() {
		inMarket := openStakes[targetMarket].Add(stake)
		if inMarket.GreaterThan(l.MaxPerMarket) {
			return ErrPerMarketLimitExceeded
		}
	}

	if l.MaxTotalOpen.IsPositive() {
		total := stake
		for _, s := range openStakes {
			total = total.Add(s)
		}
		if total.GreaterThan(l.MaxTotalOpen) {
			return ErrTotalLimitExceeded
		}
	}

	return nil
}
