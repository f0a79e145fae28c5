// Package store defines the persistence interface for the market ledger.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
)

var (
	// ErrMarketNotFound is returned when a market ID does not exist.
	ErrMarketNotFound = errors.New("store: market not found")

	// ErrPositionNotFound is returned when a position ID does not exist.
	ErrPositionNotFound = errors.New("store: position not found")

	// ErrAlreadyResolved is returned when resolving a market whose stored
	// status is already resolved. Guarded at the storage level so a second
	// process can never flip a recorded outcome.
	ErrAlreadyResolved = errors.New("store: market already resolved")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. All mutations to one market
// are serialized by the ledger service; OpenPosition, ResolveMarket, and
// ClaimPosition must additionally be atomic at the storage level
// (transaction or single lock) so a crash mid-operation can never leave
// a pool without its backing position, a market half-settled, or a
// payout claimed without its balance credit.
type Store interface {
	// --- Market operations ---

	// CreateMarket persists a new market and assigns its monotonic ID.
	CreateMarket(ctx context.Context, market *model.Market) error

	// GetMarket retrieves a market by its ID.
	GetMarket(ctx context.Context, id int64) (*model.Market, error)

	// ListMarkets returns all markets, newest first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// ResolveMarket transitions a market to resolved, freezes its outcome,
	// applies the settled positions, and accrues the withheld platform fee,
	// all as one atomic unit. Fails with ErrAlreadyResolved when the stored
	// status is already resolved, re-settling nothing.
	ResolveMarket(ctx context.Context, marketID int64, outcomeYes bool, settled []model.Position, feeAccrued decimal.Decimal) error

	// --- Position operations ---

	// OpenPosition atomically adds the position's stake to its side of the
	// market pool, inserts the position, debits the owner's balance by the
	// stake, and appends the bet history entry. The store fills
	// entry.Balance with the post-debit balance. On failure nothing is
	// applied: the pool never holds stake without its backing position.
	OpenPosition(ctx context.Context, p *model.Position, entry *model.HistoryEntry) error

	// GetPosition retrieves a position by its ID.
	GetPosition(ctx context.Context, id string) (*model.Position, error)

	// GetPositionsByMarket returns all positions on a market.
	GetPositionsByMarket(ctx context.Context, marketID int64) ([]model.Position, error)

	// GetPositionsByOwner returns all positions held by one owner.
	GetPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error)

	// ClaimPosition marks a won, unclaimed position as claimed via
	// compare-and-set and, in the same atomic unit, credits the owner's
	// balance by the payout and appends the claim history entry (the store
	// fills entry.Balance with the post-credit balance). Returns the
	// position and whether this call won the claim; a position that is not
	// claimable yields claimed=false with no mutation of any kind.
	ClaimPosition(ctx context.Context, id string, entry *model.HistoryEntry) (*model.Position, bool, error)

	// --- Balances and portfolio history ---

	// Balance returns an owner's current balance (zero if never seen).
	Balance(ctx context.Context, owner string) (decimal.Decimal, error)

	// AdjustBalance adds the signed delta to an owner's balance and
	// returns the new balance.
	AdjustBalance(ctx context.Context, owner string, delta decimal.Decimal) (decimal.Decimal, error)

	// AppendHistory appends an immutable portfolio history entry.
	AppendHistory(ctx context.Context, e *model.HistoryEntry) error

	// GetHistory returns an owner's history entries ordered by timestamp.
	GetHistory(ctx context.Context, owner string) ([]model.HistoryEntry, error)

	// --- Platform fees ---

	// AccruedFees returns the platform fee balance awaiting withdrawal.
	AccruedFees(ctx context.Context) (decimal.Decimal, error)

	// WithdrawFees drains the platform fee balance to zero and returns the
	// drained amount. Concurrent calls see the amount at most once.
	WithdrawFees(ctx context.Context) (decimal.Decimal, error)
}
