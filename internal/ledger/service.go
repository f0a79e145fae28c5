// Package ledger owns the market and position state machines: market
// creation, pari-mutuel bet placement, resolution with settlement, and
// at-most-once claims, plus the HTTP handlers in front of them.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/metrics"
	"github.com/voucheo/market-ledger/internal/model"
	"github.com/voucheo/market-ledger/internal/payout"
	"github.com/voucheo/market-ledger/internal/policy"
	"github.com/voucheo/market-ledger/internal/post"
	"github.com/voucheo/market-ledger/internal/store"
)

// Service is the single writer for all markets, positions, and balances.
// A mutex serializes mutations (single-instance); claims additionally go
// through the store's compare-and-set so double payouts are impossible
// even outside the lock. For horizontal scaling, replace the mutex with
// database-level locking.
type Service struct {
	store          store.Store
	engine         *payout.Engine
	limiter        *policy.StakeLimiter
	minStake       decimal.Decimal
	initialBalance decimal.Decimal
	now            func() time.Time
	mu             sync.Mutex
	hub            *WSHub // optional hub for real-time broadcasts
}

// Options tunes service policy. Zero values fall back to defaults:
// minimum stake 1 unit, zero starting balance, wall-clock time.
type Options struct {
	MinStake       decimal.Decimal
	InitialBalance decimal.Decimal
	Now            func() time.Time
}

// NewService creates a ledger service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, engine *payout.Engine, limiter *policy.StakeLimiter, hub *WSHub, opts Options) *Service {
	minStake := opts.MinStake
	if !minStake.IsPositive() {
		minStake = decimal.NewFromInt(1)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if limiter == nil {
		limiter = policy.NewStakeLimiter(decimal.Zero, decimal.Zero)
	}
	return &Service{
		store:          st,
		engine:         engine,
		limiter:        limiter,
		minStake:       minStake,
		initialBalance: opts.InitialBalance,
		now:            now,
		hub:            hub,
	}
}

// CreateMarketParams carries everything needed to open a market.
type CreateMarketParams struct {
	Question     string
	PostURL      string
	Category     string
	Deadline     time.Time
	InitialStake decimal.Decimal
	Side         model.Side // defaults to yes
	Creator      string
}

// CreateMarket validates the request, persists a new open market with the
// initial stake seeding the creator's side, and opens the creator's
// position. The creator's balance is debited and a bet entry appended to
// their portfolio history.
func (s *Service) CreateMarket(ctx context.Context, params CreateMarketParams) (*model.Market, *model.Position, error) {
	if params.Question == "" {
		return nil, nil, ErrInvalidQuestion
	}
	if params.Creator == "" {
		return nil, nil, ErrInvalidOwner
	}

	ref, err := post.ParseURL(params.PostURL)
	if err != nil {
		return nil, nil, err
	}
	category, err := post.ValidateCategory(params.Category)
	if err != nil {
		return nil, nil, err
	}

	side := params.Side
	if side == "" {
		side = model.SideYes
	}
	if !side.Valid() {
		return nil, nil, ErrInvalidSide
	}

	now := s.now().UTC()
	if !params.Deadline.After(now) {
		return nil, nil, ErrInvalidDeadline
	}
	if params.InitialStake.LessThan(s.minStake) {
		return nil, nil, fmt.Errorf("%w: minimum is %s", ErrStakeBelowMin, s.minStake)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The market starts with empty pools; the creator's stake enters
	// through openPosition so the pool increment and the backing position
	// are one atomic store operation.
	market := &model.Market{
		Question:       params.Question,
		PostURL:        ref.URL,
		Platform:       ref.Platform,
		AuthorHandle:   ref.AuthorHandle,
		Category:       category,
		Deadline:       params.Deadline.UTC(),
		Status:         model.MarketOpen,
		YesPool:        decimal.Zero,
		NoPool:         decimal.Zero,
		CreatorAddress: params.Creator,
		CreatedAt:      now,
	}
	if err := s.store.CreateMarket(ctx, market); err != nil {
		return nil, nil, err
	}

	position, err := s.openPosition(ctx, market, side, params.InitialStake, params.Creator, now)
	if err != nil {
		return nil, nil, err
	}
	if side == model.SideYes {
		market.YesPool = params.InitialStake
	} else {
		market.NoPool = params.InitialStake
	}

	metrics.MarketsCreated.Inc()
	metrics.ActiveMarkets.Inc()

	slog.Info("market created",
		"id", market.ID,
		"platform", market.Platform,
		"author", market.AuthorHandle,
		"deadline", market.Deadline,
		"initial_stake", params.InitialStake.String(),
		"creator", params.Creator,
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "market_created",
			MarketID: market.ID,
			Question: market.Question,
			YesPool:  market.YesPool.String(),
			NoPool:   market.NoPool.String(),
		})
	}

	return market, position, nil
}

// PlaceBet adds a stake to one side of an open market and opens a position
// for the bettor. Rejected without mutation when the market is unknown,
// not open, past its deadline, or the stake fails validation or policy.
func (s *Service) PlaceBet(ctx context.Context, marketID int64, owner string, side model.Side, amount decimal.Decimal) (*model.Position, error) {
	if owner == "" {
		return nil, ErrInvalidOwner
	}
	if !side.Valid() {
		return nil, ErrInvalidSide
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidStake
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if market.Status != model.MarketOpen {
		return nil, ErrMarketNotOpen
	}

	now := s.now().UTC()
	// Deadline check regardless of the stored status: a market past its
	// deadline still reads "open" until resolution.
	if !now.Before(market.Deadline) {
		return nil, ErrMarketExpired
	}

	openStakes, err := s.openStakesByMarket(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.CheckStake(marketID, amount, openStakes); err != nil {
		metrics.PolicyRejections.Inc()
		return nil, err
	}

	position, err := s.openPosition(ctx, market, side, amount, owner, now)
	if err != nil {
		return nil, err
	}

	metrics.BetsTotal.WithLabelValues(string(side)).Inc()
	metrics.StakeVolume.WithLabelValues(string(side)).Add(amount.InexactFloat64())

	slog.Info("bet placed",
		"market", marketID,
		"owner", owner,
		"side", side,
		"amount", amount.String(),
	)

	if s.hub != nil {
		yesPool, noPool := market.YesPool, market.NoPool
		if side == model.SideYes {
			yesPool = yesPool.Add(amount)
		} else {
			noPool = noPool.Add(amount)
		}
		s.hub.Broadcast(WSMessage{
			Type:     "bet_placed",
			MarketID: marketID,
			Side:     string(side),
			Amount:   amount.String(),
			YesPool:  yesPool.String(),
			NoPool:   noPool.String(),
		})
	}

	return position, nil
}

// ResolveMarket fixes the final outcome, settles every open position
// exactly once through the payout engine, and freezes the pools. The
// status transition and all settlements are one atomic store operation;
// resolving twice fails with ErrMarketResolved and re-settles nothing.
// Caller authorization is the HTTP layer's responsibility.
func (s *Service) ResolveMarket(ctx context.Context, marketID int64, outcomeYes bool) (*model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market.Status == model.MarketResolved {
		return nil, ErrMarketResolved
	}

	positions, err := s.store.GetPositionsByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	totalPool := market.TotalPool()
	winningSide := model.SideNo
	if outcomeYes {
		winningSide = model.SideYes
	}
	winningPool := market.Pool(winningSide)

	feeTotal := decimal.Zero
	var settled []model.Position

	for _, p := range positions {
		if p.Status != model.PositionOpen {
			continue // already settled, leave untouched
		}
		if p.Side == winningSide {
			net, fee, err := s.engine.Settle(p.Stake, winningPool, totalPool)
			if err != nil {
				// A winner with an empty winning pool violates a core
				// precondition; log loudly and surface the defect.
				slog.Error("settlement arithmetic failure",
					"market", marketID,
					"position", p.ID,
					"winning_pool", winningPool.String(),
					"err", err,
				)
				return nil, fmt.Errorf("settle position %s: %w", p.ID, err)
			}
			p.Status = model.PositionWon
			p.Payout = net
			feeTotal = feeTotal.Add(fee)
		} else {
			p.Status = model.PositionLost
			p.Payout = decimal.Zero
		}
		settled = append(settled, p)
	}

	if err := s.store.ResolveMarket(ctx, marketID, outcomeYes, settled, feeTotal); err != nil {
		// The store keeps its own already-resolved guard for resolvers
		// running outside this process's mutex.
		if errors.Is(err, store.ErrAlreadyResolved) {
			return nil, ErrMarketResolved
		}
		return nil, err
	}

	market.Status = model.MarketResolved
	market.OutcomeYes = outcomeYes

	metrics.MarketsResolved.Inc()
	metrics.ActiveMarkets.Dec()
	metrics.FeesAccrued.Add(feeTotal.InexactFloat64())

	slog.Info("market resolved",
		"market", marketID,
		"outcome_yes", outcomeYes,
		"positions_settled", len(settled),
		"fee_accrued", feeTotal.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:       "market_resolved",
			MarketID:   marketID,
			OutcomeYes: &outcomeYes,
			YesPool:    market.YesPool.String(),
			NoPool:     market.NoPool.String(),
		})
	}

	return market, nil
}

// ClaimResult reports the outcome of a claim attempt. A claim that cannot
// succeed (not won, no payout, already claimed, or not the owner) is a
// reported no-op, not an error.
type ClaimResult struct {
	Payout  decimal.Decimal `json:"payout"`
	Claimed bool            `json:"claimed"`
}

// Claim converts a settled winning position's payout into a balance credit
// exactly once. The claim flag, the balance credit, and the history entry
// are one atomic store operation behind the compare-and-set, so concurrent
// claims pay out at most once and a claimed position always carries its
// credit.
func (s *Service) Claim(ctx context.Context, positionID, owner string) (ClaimResult, error) {
	position, err := s.store.GetPosition(ctx, positionID)
	if err != nil {
		return ClaimResult{Payout: decimal.Zero}, err
	}
	if position.Owner != owner {
		return ClaimResult{Payout: decimal.Zero}, nil
	}

	entry := &model.HistoryEntry{
		ID:        uuid.New().String(),
		Owner:     owner,
		Timestamp: s.now().UTC(),
		Action:    model.ActionClaim,
		Amount:    position.Payout,
		MarketID:  position.MarketID,
	}
	position, won, err := s.store.ClaimPosition(ctx, positionID, entry)
	if err != nil {
		return ClaimResult{Payout: decimal.Zero}, err
	}
	if !won {
		return ClaimResult{Payout: decimal.Zero}, nil
	}

	metrics.ClaimsTotal.Inc()
	metrics.PayoutsTotal.Add(position.Payout.InexactFloat64())

	slog.Info("winnings claimed",
		"position", positionID,
		"market", position.MarketID,
		"owner", owner,
		"payout", position.Payout.String(),
	)

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "winnings_claimed",
			MarketID: position.MarketID,
			Amount:   position.Payout.String(),
		})
	}

	return ClaimResult{Payout: position.Payout, Claimed: true}, nil
}

// Markets returns all markets, newest first.
func (s *Service) Markets(ctx context.Context) ([]model.Market, error) {
	return s.store.ListMarkets(ctx)
}

// Market returns one market by ID.
func (s *Service) Market(ctx context.Context, id int64) (*model.Market, error) {
	return s.store.GetMarket(ctx, id)
}

// MarketPositions returns all positions on a market.
func (s *Service) MarketPositions(ctx context.Context, marketID int64) ([]model.Position, error) {
	if _, err := s.store.GetMarket(ctx, marketID); err != nil {
		return nil, err
	}
	return s.store.GetPositionsByMarket(ctx, marketID)
}

// AccruedFees returns the platform-fee balance awaiting withdrawal.
func (s *Service) AccruedFees(ctx context.Context) (decimal.Decimal, error) {
	return s.store.AccruedFees(ctx)
}

// WithdrawFees drains the platform-fee balance exactly once per accrual.
// Caller authorization is the HTTP layer's responsibility.
func (s *Service) WithdrawFees(ctx context.Context, to string) (decimal.Decimal, error) {
	amount, err := s.store.WithdrawFees(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.IsPositive() {
		slog.Info("platform fees withdrawn", "to", to, "amount", amount.String())
	}
	return amount, nil
}

// Now reports the service clock, used by handlers for display-time
// market classification.
func (s *Service) Now() time.Time {
	return s.now()
}

// --- internal helpers ---

// openPosition applies a bet through the store's atomic OpenPosition: the
// pool increment, position insert, balance debit, and history entry commit
// together or not at all. Callers hold s.mu.
func (s *Service) openPosition(ctx context.Context, market *model.Market, side model.Side, stake decimal.Decimal, owner string, now time.Time) (*model.Position, error) {
	if err := s.seedBalance(ctx, owner, now); err != nil {
		return nil, err
	}

	position := &model.Position{
		ID:        uuid.New().String(),
		MarketID:  market.ID,
		Owner:     owner,
		Side:      side,
		Stake:     stake,
		Status:    model.PositionOpen,
		Payout:    decimal.Zero,
		CreatedAt: now,
	}
	entry := &model.HistoryEntry{
		ID:        uuid.New().String(),
		Owner:     owner,
		Timestamp: now,
		Action:    model.ActionBet,
		Amount:    stake.Neg(),
		MarketID:  market.ID,
	}
	if err := s.store.OpenPosition(ctx, position, entry); err != nil {
		return nil, err
	}
	return position, nil
}

// seedBalance credits the configured starting balance the first time an
// owner appears, recording an "initial" history entry.
func (s *Service) seedBalance(ctx context.Context, owner string, now time.Time) error {
	if !s.initialBalance.IsPositive() {
		return nil
	}
	history, err := s.store.GetHistory(ctx, owner)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		return nil
	}
	balance, err := s.store.AdjustBalance(ctx, owner, s.initialBalance)
	if err != nil {
		return err
	}
	return s.store.AppendHistory(ctx, &model.HistoryEntry{
		ID:        uuid.New().String(),
		Owner:     owner,
		Timestamp: now,
		Balance:   balance,
		Action:    model.ActionInitial,
		Amount:    s.initialBalance,
	})
}

// openStakesByMarket aggregates an owner's open stake per market for the
// policy limiter.
func (s *Service) openStakesByMarket(ctx context.Context, owner string) (map[int64]decimal.Decimal, error) {
	positions, err := s.store.GetPositionsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	stakes := make(map[int64]decimal.Decimal)
	for _, p := range positions {
		if p.Status == model.PositionOpen {
			stakes[p.MarketID] = stakes[p.MarketID].Add(p.Stake)
		}
	}
	return stakes, nil
}
