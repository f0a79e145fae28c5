package portfolio_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
	"github.com/voucheo/market-ledger/internal/portfolio"
	"github.com/voucheo/market-ledger/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func seedHistory(t *testing.T, st *store.MemoryStore, owner string, balances ...float64) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	prev := decimal.Zero
	for i, b := range balances {
		balance := d(b)
		entry := &model.HistoryEntry{
			ID:        owner + "-" + string(rune('a'+i)),
			Owner:     owner,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Balance:   balance,
			Action:    model.ActionBet,
			Amount:    balance.Sub(prev),
		}
		if i == 0 {
			entry.Action = model.ActionInitial
		}
		if err := st.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
		if _, err := st.AdjustBalance(ctx, owner, balance.Sub(prev)); err != nil {
			t.Fatalf("AdjustBalance: %v", err)
		}
		prev = balance
	}
}

func TestPnL_InsufficientHistory(t *testing.T) {
	st := store.NewMemoryStore()
	agg := portfolio.NewAggregator(st)
	ctx := context.Background()

	// No history at all.
	if _, err := agg.PnL(ctx, "ghost"); !errors.Is(err, portfolio.ErrInsufficientHistory) {
		t.Errorf("no history: %v", err)
	}

	// A single entry is still not enough.
	seedHistory(t, st, "newbie", 100)
	if _, err := agg.PnL(ctx, "newbie"); !errors.Is(err, portfolio.ErrInsufficientHistory) {
		t.Errorf("one entry: %v", err)
	}
}

func TestPnL_AgainstFirstEntry(t *testing.T) {
	st := store.NewMemoryStore()
	agg := portfolio.NewAggregator(st)
	ctx := context.Background()

	// Started at 100, now at 125: +25, +25%.
	seedHistory(t, st, "alice", 100, 90, 125)

	pnl, err := agg.PnL(ctx, "alice")
	if err != nil {
		t.Fatalf("PnL: %v", err)
	}
	if !pnl.Delta.Equal(d(25)) {
		t.Errorf("delta = %s, want 25", pnl.Delta)
	}
	if pnl.Pct == nil || !pnl.Pct.Equal(d(25)) {
		t.Errorf("pct = %v, want 25", pnl.Pct)
	}

	// Losses read negative.
	seedHistory(t, st, "bob", 100, 60)
	pnl, err = agg.PnL(ctx, "bob")
	if err != nil {
		t.Fatalf("PnL: %v", err)
	}
	if !pnl.Delta.Equal(d(-40)) || pnl.Pct == nil || !pnl.Pct.Equal(d(-40)) {
		t.Errorf("bob pnl = %s / %v, want -40 / -40", pnl.Delta, pnl.Pct)
	}
}

func TestPnL_ZeroBaseline(t *testing.T) {
	st := store.NewMemoryStore()
	agg := portfolio.NewAggregator(st)
	ctx := context.Background()

	// First recorded balance is zero: the percentage is undefined.
	seedHistory(t, st, "carol", 0, 50)

	pnl, err := agg.PnL(ctx, "carol")
	if err != nil {
		t.Fatalf("PnL: %v", err)
	}
	if !pnl.Delta.Equal(d(50)) {
		t.Errorf("delta = %s, want 50", pnl.Delta)
	}
	if pnl.Pct != nil {
		t.Errorf("pct = %s, want nil for zero baseline", pnl.Pct)
	}
}

func TestTotals(t *testing.T) {
	st := store.NewMemoryStore()
	agg := portfolio.NewAggregator(st)
	ctx := context.Background()

	now := time.Now()
	positions := []model.Position{
		{ID: "p1", MarketID: 1, Owner: "alice", Side: model.SideYes, Stake: d(10), Status: model.PositionOpen, CreatedAt: now},
		{ID: "p2", MarketID: 2, Owner: "alice", Side: model.SideNo, Stake: d(5), Status: model.PositionOpen, CreatedAt: now},
		{ID: "p3", MarketID: 3, Owner: "alice", Side: model.SideYes, Stake: d(7), Status: model.PositionWon, Payout: d(14), Claimed: true, CreatedAt: now},
		// Won but unclaimed: not yet winnings.
		{ID: "p4", MarketID: 4, Owner: "alice", Side: model.SideYes, Stake: d(3), Status: model.PositionWon, Payout: d(6), CreatedAt: now},
		{ID: "p5", MarketID: 5, Owner: "alice", Side: model.SideNo, Stake: d(2), Status: model.PositionLost, CreatedAt: now},
		// Someone else's position.
		{ID: "p6", MarketID: 1, Owner: "bob", Side: model.SideNo, Stake: d(99), Status: model.PositionOpen, CreatedAt: now},
	}
	for i := range positions {
		if err := st.InsertPosition(ctx, &positions[i]); err != nil {
			t.Fatalf("InsertPosition: %v", err)
		}
	}

	staked, err := agg.TotalStaked(ctx, "alice")
	if err != nil {
		t.Fatalf("TotalStaked: %v", err)
	}
	if !staked.Equal(d(15)) {
		t.Errorf("total staked = %s, want 15", staked)
	}

	winnings, err := agg.TotalWinnings(ctx, "alice")
	if err != nil {
		t.Fatalf("TotalWinnings: %v", err)
	}
	if !winnings.Equal(d(14)) {
		t.Errorf("total winnings = %s, want 14", winnings)
	}
}

func TestSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	agg := portfolio.NewAggregator(st)
	ctx := context.Background()

	seedHistory(t, st, "alice", 100, 85)
	now := time.Now()
	positions := []model.Position{
		{ID: "p1", MarketID: 1, Owner: "alice", Side: model.SideYes, Stake: d(15), Status: model.PositionOpen, CreatedAt: now},
	}
	for i := range positions {
		if err := st.InsertPosition(ctx, &positions[i]); err != nil {
			t.Fatalf("InsertPosition: %v", err)
		}
	}

	snap, err := agg.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.Balance.Equal(d(85)) {
		t.Errorf("balance = %s, want 85", snap.Balance)
	}
	if !snap.TotalStaked.Equal(d(15)) {
		t.Errorf("total staked = %s, want 15", snap.TotalStaked)
	}
	if !snap.TotalWinnings.IsZero() {
		t.Errorf("total winnings = %s, want 0", snap.TotalWinnings)
	}
	if len(snap.Positions) != 1 || len(snap.History) != 2 {
		t.Errorf("positions/history = %d/%d, want 1/2", len(snap.Positions), len(snap.History))
	}
	if snap.PnL == nil || !snap.PnL.Delta.Equal(d(-15)) {
		t.Errorf("pnl = %+v, want delta -15", snap.PnL)
	}
}

func TestSnapshot_FreshOwner(t *testing.T) {
	st := store.NewMemoryStore()
	agg := portfolio.NewAggregator(st)

	snap, err := agg.Snapshot(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.Balance.IsZero() {
		t.Errorf("balance = %s, want 0", snap.Balance)
	}
	if snap.PnL != nil {
		t.Errorf("pnl = %+v, want omitted", snap.PnL)
	}
	// Empty collections serialize as [], not null.
	if snap.Positions == nil || snap.History == nil {
		t.Error("positions/history should be empty slices, not nil")
	}
}
