package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	markets   map[int64]*model.Market
	positions map[string]*model.Position
	balances  map[string]decimal.Decimal
	history   map[string][]model.HistoryEntry
	fees      decimal.Decimal
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		markets:   make(map[int64]*model.Market),
		positions: make(map[string]*model.Position),
		balances:  make(map[string]decimal.Decimal),
		history:   make(map[string][]model.HistoryEntry),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	s.nextID++

	// Store a copy to avoid external mutation.
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id int64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	for _, m := range s.markets {
		markets = append(markets, *m)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].ID > markets[j].ID
	})
	return markets, nil
}

// OpenPosition applies the pool increment, position insert, balance debit,
// and history append under one lock, so no reader or crash can observe a
// pool holding stake without its backing position.
func (s *MemoryStore) OpenPosition(_ context.Context, p *model.Position, entry *model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[p.MarketID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, p.MarketID)
	}

	if p.Side == model.SideYes {
		m.YesPool = m.YesPool.Add(p.Stake)
	} else {
		m.NoPool = m.NoPool.Add(p.Stake)
	}

	cp := *p
	s.positions[p.ID] = &cp

	next := s.balances[p.Owner].Sub(p.Stake)
	s.balances[p.Owner] = next
	entry.Balance = next
	s.history[entry.Owner] = append(s.history[entry.Owner], *entry)
	return nil
}

// ResolveMarket applies the resolution and all settled positions under a
// single lock, so readers never observe a half-settled market.
func (s *MemoryStore) ResolveMarket(_ context.Context, marketID int64, outcomeYes bool, settled []model.Position, feeAccrued decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[marketID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, marketID)
	}
	if m.Status == model.MarketResolved {
		return fmt.Errorf("%w: %d", ErrAlreadyResolved, marketID)
	}

	m.Status = model.MarketResolved
	m.OutcomeYes = outcomeYes

	for i := range settled {
		p := settled[i]
		if existing, ok := s.positions[p.ID]; ok {
			existing.Status = p.Status
			existing.Payout = p.Payout
		}
	}

	s.fees = s.fees.Add(feeAccrued)
	return nil
}

// InsertPosition places a position record directly, bypassing pools and
// balances. Not part of the Store interface; test fixtures use it to seed
// settled states.
func (s *MemoryStore) InsertPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.positions[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) GetPositionsByMarket(_ context.Context, marketID int64) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.MarketID == marketID {
			result = append(result, *p)
		}
	}
	sortPositions(result)
	return result, nil
}

func (s *MemoryStore) GetPositionsByOwner(_ context.Context, owner string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Position
	for _, p := range s.positions {
		if p.Owner == owner {
			result = append(result, *p)
		}
	}
	sortPositions(result)
	return result, nil
}

// ClaimPosition performs the check-and-set, the balance credit, and the
// history append under one write lock: only a won, unclaimed position with
// a positive payout transitions, only one caller ever observes
// claimed=true, and a position is never claimed without its credit.
func (s *MemoryStore) ClaimPosition(_ context.Context, id string, entry *model.HistoryEntry) (*model.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
	}

	if p.Status != model.PositionWon || !p.Payout.IsPositive() || p.Claimed {
		cp := *p
		return &cp, false, nil
	}

	p.Claimed = true

	next := s.balances[p.Owner].Add(p.Payout)
	s.balances[p.Owner] = next
	entry.Balance = next
	s.history[entry.Owner] = append(s.history[entry.Owner], *entry)

	cp := *p
	return &cp, true, nil
}

func (s *MemoryStore) Balance(_ context.Context, owner string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[owner], nil
}

func (s *MemoryStore) AdjustBalance(_ context.Context, owner string, delta decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.balances[owner].Add(delta)
	s.balances[owner] = next
	return next, nil
}

func (s *MemoryStore) AppendHistory(_ context.Context, e *model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[e.Owner] = append(s.history[e.Owner], *e)
	return nil
}

func (s *MemoryStore) GetHistory(_ context.Context, owner string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.HistoryEntry, len(s.history[owner]))
	copy(entries, s.history[owner])
	return entries, nil
}

func (s *MemoryStore) AccruedFees(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.fees, nil
}

func (s *MemoryStore) WithdrawFees(_ context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	amount := s.fees
	s.fees = decimal.Zero
	return amount, nil
}

func sortPositions(ps []model.Position) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}
