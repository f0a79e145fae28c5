// Package portfolio derives read-only balance, P&L, and history views from
// the market and position ledgers. It owns no records of its own.
package portfolio

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
	"github.com/voucheo/market-ledger/internal/store"
)

// ErrInsufficientHistory is returned when P&L is requested with fewer than
// two history points. Callers should render "unavailable", not zero.
var ErrInsufficientHistory = errors.New("portfolio: not enough history to compute p&l")

// PnL is the profit-and-loss summary against the first recorded balance.
// Pct is nil when the baseline balance is zero (percentage undefined).
type PnL struct {
	Delta decimal.Decimal  `json:"delta"`
	Pct   *decimal.Decimal `json:"pct,omitempty"`
}

// Snapshot aggregates everything the profile view needs in one read.
type Snapshot struct {
	Owner         string               `json:"owner"`
	Balance       decimal.Decimal      `json:"balance"`
	TotalStaked   decimal.Decimal      `json:"total_staked"`
	TotalWinnings decimal.Decimal      `json:"total_winnings"`
	PnL           *PnL                 `json:"pnl,omitempty"` // omitted when unavailable
	Positions     []model.Position     `json:"positions"`
	History       []model.HistoryEntry `json:"history"`
}

// Aggregator computes portfolio views over the shared store.
type Aggregator struct {
	store store.Store
}

// NewAggregator creates a portfolio aggregator.
func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st}
}

// CurrentBalance returns the owner's running balance: debited by each
// bet's stake at placement, credited by each claim's payout.
func (a *Aggregator) CurrentBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	return a.store.Balance(ctx, owner)
}

// History returns the owner's append-only portfolio log.
func (a *Aggregator) History(ctx context.Context, owner string) ([]model.HistoryEntry, error) {
	return a.store.GetHistory(ctx, owner)
}

// PnL computes profit and loss against the earliest history entry.
// Fails with ErrInsufficientHistory below two points; reports a nil
// percentage when the baseline balance is zero.
func (a *Aggregator) PnL(ctx context.Context, owner string) (*PnL, error) {
	history, err := a.store.GetHistory(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, ErrInsufficientHistory
	}

	balance, err := a.store.Balance(ctx, owner)
	if err != nil {
		return nil, err
	}

	baseline := history[0].Balance
	delta := balance.Sub(baseline)

	result := &PnL{Delta: delta}
	if !baseline.IsZero() {
		pct := delta.Div(baseline).Mul(decimal.NewFromInt(100)).Round(2)
		result.Pct = &pct
	}
	return result, nil
}

// TotalStaked sums the stakes of the owner's open positions.
func (a *Aggregator) TotalStaked(ctx context.Context, owner string) (decimal.Decimal, error) {
	positions, err := a.store.GetPositionsByOwner(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range positions {
		if p.Status == model.PositionOpen {
			total = total.Add(p.Stake)
		}
	}
	return total, nil
}

// TotalWinnings sums the payouts of the owner's claimed winning positions.
func (a *Aggregator) TotalWinnings(ctx context.Context, owner string) (decimal.Decimal, error) {
	positions, err := a.store.GetPositionsByOwner(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, p := range positions {
		if p.Status == model.PositionWon && p.Claimed {
			total = total.Add(p.Payout)
		}
	}
	return total, nil
}

// Snapshot assembles the full portfolio view. P&L unavailability is not
// an error here — the field is simply omitted.
func (a *Aggregator) Snapshot(ctx context.Context, owner string) (*Snapshot, error) {
	balance, err := a.store.Balance(ctx, owner)
	if err != nil {
		return nil, err
	}
	positions, err := a.store.GetPositionsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	history, err := a.store.GetHistory(ctx, owner)
	if err != nil {
		return nil, err
	}

	totalStaked := decimal.Zero
	totalWinnings := decimal.Zero
	for _, p := range positions {
		switch {
		case p.Status == model.PositionOpen:
			totalStaked = totalStaked.Add(p.Stake)
		case p.Status == model.PositionWon && p.Claimed:
			totalWinnings = totalWinnings.Add(p.Payout)
		}
	}

	snapshot := &Snapshot{
		Owner:         owner,
		Balance:       balance,
		TotalStaked:   totalStaked,
		TotalWinnings: totalWinnings,
		Positions:     positions,
		History:       history,
	}
	if snapshot.Positions == nil {
		snapshot.Positions = []model.Position{}
	}
	if snapshot.History == nil {
		snapshot.History = []model.HistoryEntry{}
	}

	if len(history) >= 2 {
		baseline := history[0].Balance
		delta := balance.Sub(baseline)
		pnl := &PnL{Delta: delta}
		if !baseline.IsZero() {
			pct := delta.Div(baseline).Mul(decimal.NewFromInt(100)).Round(2)
			pnl.Pct = &pct
		}
		snapshot.PnL = pnl
	}

	return snapshot, nil
}
