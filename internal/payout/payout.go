// Package payout implements proportional pari-mutuel settlement for binary
// YES/NO markets: each winner receives their share of the winning pool
// multiplied up by the total money in play, so the losing pool is fully
// redistributed to winners pro-rata by stake.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Results are rounded half-up to the smallest currency unit (cents).
package payout

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrZeroWinningPool is returned when the winning pool holds no stake.
	// Under normal operation this is unreachable (a settling position's own
	// stake is already in its pool), so callers should treat it as a defect
	// signal rather than a user error.
	ErrZeroWinningPool = errors.New("payout: winning pool is empty, cannot distribute")

	// ErrInvalidFee is returned when the fee is outside [0, 10000) bps.
	ErrInvalidFee = errors.New("payout: fee must be between 0 and 9999 basis points")
)

// Scale is the number of decimal places payouts are rounded to.
// Two places = integer cents; conservation holds within one cent per
// winning position.
const Scale int32 = 2

const bpsDenominator = 10000

// Engine computes settlement payouts with an optional platform fee.
// It is stateless — pool totals are passed as arguments, not stored.
type Engine struct {
	feeBps int64
}

// NewEngine creates a payout engine withholding feeBps basis points from
// every winning payout. Zero means no fee.
func NewEngine(feeBps int64) (*Engine, error) {
	if feeBps < 0 || feeBps >= bpsDenominator {
		return nil, ErrInvalidFee
	}
	return &Engine{feeBps: feeBps}, nil
}

// FeeBps returns the configured fee in basis points.
func (e *Engine) FeeBps() int64 {
	return e.feeBps
}

// Compute returns the fee-free pari-mutuel payout for one winning position:
//
//	payout = stake / winningPool * combinedPool
//
// rounded half-up to Scale decimal places. The multiplication happens
// before the division to avoid compounding division precision loss.
func Compute(stake, winningPool, combinedPool decimal.Decimal) (decimal.Decimal, error) {
	if winningPool.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrZeroWinningPool
	}
	gross := stake.Mul(combinedPool).Div(winningPool)
	return gross.Round(Scale), nil
}

// Settle returns the net payout for one winning position after withholding
// the engine's fee, together with the withheld amount. The fee multiplier
// (1 - feeBps/10000) is applied before rounding; the withheld amount is the
// rounded difference so that net + fee equals the rounded gross.
func (e *Engine) Settle(stake, winningPool, combinedPool decimal.Decimal) (net, fee decimal.Decimal, err error) {
	if winningPool.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, decimal.Zero, ErrZeroWinningPool
	}

	gross := stake.Mul(combinedPool).Div(winningPool)
	if e.feeBps == 0 {
		return gross.Round(Scale), decimal.Zero, nil
	}

	keep := decimal.NewFromInt(bpsDenominator - e.feeBps).
		Div(decimal.NewFromInt(bpsDenominator))
	net = gross.Mul(keep).Round(Scale)
	fee = gross.Round(Scale).Sub(net)
	return net, fee, nil
}
