// Package model defines the core domain types shared across the market ledger.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies which pool of a binary market a stake belongs to.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two recognized sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Market lifecycle states as persisted. "locked" is never stored — it is a
// display-time classification of an open market whose deadline has passed.
const (
	MarketOpen     = "open"
	MarketLocked   = "locked"
	MarketResolved = "resolved"
)

// Position lifecycle states.
const (
	PositionOpen = "open"
	PositionWon  = "won"
	PositionLost = "lost"
)

// Portfolio history actions.
const (
	ActionInitial = "initial"
	ActionBet     = "bet"
	ActionClaim   = "claim"
)

// Market is a binary YES/NO pari-mutuel market derived from a social post.
// Pools only grow while the market is open; resolution freezes them.
type Market struct {
	ID             int64           `json:"id" db:"id"`
	Question       string          `json:"question" db:"question"`
	PostURL        string          `json:"post_url" db:"post_url"`
	Platform       string          `json:"platform" db:"platform"` // "base" or "twitter"
	AuthorHandle   string          `json:"author_handle" db:"author_handle"`
	Category       string          `json:"category,omitempty" db:"category"`
	Deadline       time.Time       `json:"deadline" db:"deadline"`
	Status         string          `json:"status" db:"status"`
	OutcomeYes     bool            `json:"outcome_yes" db:"outcome_yes"` // meaningful only once resolved
	YesPool        decimal.Decimal `json:"yes_pool" db:"yes_pool"`
	NoPool         decimal.Decimal `json:"no_pool" db:"no_pool"`
	CreatorAddress string          `json:"creator_address,omitempty" db:"creator_address"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// TotalPool returns yesPool + noPool.
func (m *Market) TotalPool() decimal.Decimal {
	return m.YesPool.Add(m.NoPool)
}

// Pool returns the pool for the given side.
func (m *Market) Pool(side Side) decimal.Decimal {
	if side == SideYes {
		return m.YesPool
	}
	return m.NoPool
}

// DisplayStatus classifies an open market past its deadline as "locked".
// The stored status never contains "locked"; resolution remains legal from
// either classification.
func (m *Market) DisplayStatus(now time.Time) string {
	if m.Status == MarketOpen && !now.Before(m.Deadline) {
		return MarketLocked
	}
	return m.Status
}

// Odds returns the percentage split of the two pools, rounded to two
// decimal places. An empty market reads 50/50.
func (m *Market) Odds() (yes, no decimal.Decimal) {
	total := m.TotalPool()
	if total.IsZero() {
		half := decimal.NewFromInt(50)
		return half, half
	}
	hundred := decimal.NewFromInt(100)
	yes = m.YesPool.Mul(hundred).Div(total).Round(2)
	no = hundred.Sub(yes)
	return yes, no
}

// Position is a single user's stake against one market and side.
// Settled exactly once at resolution; claimed at most once by its owner.
type Position struct {
	ID        string          `json:"id" db:"id"`
	MarketID  int64           `json:"market_id" db:"market_id"`
	Owner     string          `json:"owner" db:"owner"`
	Side      Side            `json:"side" db:"side"`
	Stake     decimal.Decimal `json:"stake" db:"stake"`
	Status    string          `json:"status" db:"status"`
	Payout    decimal.Decimal `json:"payout" db:"payout"` // set at resolution, zero when lost
	Claimed   bool            `json:"claimed" db:"claimed"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// HistoryEntry is an append-only portfolio log record. Balance after an
// entry equals balance before plus the signed Amount.
type HistoryEntry struct {
	ID        string          `json:"id" db:"id"`
	Owner     string          `json:"owner" db:"owner"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Action    string          `json:"action" db:"action"`
	Amount    decimal.Decimal `json:"amount" db:"amount"` // signed: -stake for bets, +payout for claims
	MarketID  int64           `json:"market_id,omitempty" db:"market_id"`
}
