package model_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
)

func TestSide_Valid(t *testing.T) {
	if !model.SideYes.Valid() || !model.SideNo.Valid() {
		t.Error("yes/no must be valid sides")
	}
	for _, s := range []model.Side{"", "maybe", "YES"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestMarket_DisplayStatus(t *testing.T) {
	deadline := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	m := &model.Market{Status: model.MarketOpen, Deadline: deadline}

	if got := m.DisplayStatus(deadline.Add(-time.Minute)); got != model.MarketOpen {
		t.Errorf("before deadline = %q, want open", got)
	}
	if got := m.DisplayStatus(deadline); got != model.MarketLocked {
		t.Errorf("at deadline = %q, want locked", got)
	}
	if got := m.DisplayStatus(deadline.Add(time.Hour)); got != model.MarketLocked {
		t.Errorf("after deadline = %q, want locked", got)
	}

	// Resolved markets never read locked.
	m.Status = model.MarketResolved
	if got := m.DisplayStatus(deadline.Add(time.Hour)); got != model.MarketResolved {
		t.Errorf("resolved market = %q, want resolved", got)
	}
}

func TestMarket_Odds(t *testing.T) {
	d := decimal.NewFromFloat

	// Empty market reads 50/50.
	m := &model.Market{}
	yes, no := m.Odds()
	if !yes.Equal(d(50)) || !no.Equal(d(50)) {
		t.Errorf("empty market odds = %s/%s, want 50/50", yes, no)
	}

	m = &model.Market{YesPool: d(30), NoPool: d(10)}
	yes, no = m.Odds()
	if !yes.Equal(d(75)) || !no.Equal(d(25)) {
		t.Errorf("odds = %s/%s, want 75/25", yes, no)
	}

	// Uneven splits still sum to exactly 100.
	m = &model.Market{YesPool: d(1), NoPool: d(3)}
	yes, no = m.Odds()
	if !yes.Add(no).Equal(d(100)) {
		t.Errorf("odds sum = %s, want 100", yes.Add(no))
	}
}
