package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Claim and resolve are
// never served from cache — the at-most-one-claim guarantee lives in the
// primary store's compare-and-set.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) OpenPosition(ctx context.Context, p *model.Position, entry *model.HistoryEntry) error {
	if err := s.primary.OpenPosition(ctx, p, entry); err != nil {
		return err
	}
	// Invalidate; next read re-populates with fresh pools and records.
	s.rdb.Del(ctx, marketKey(p.MarketID), positionsKey(p.Owner), historyKey(entry.Owner))
	return nil
}

func (s *CachedStore) ResolveMarket(ctx context.Context, marketID int64, outcomeYes bool, settled []model.Position, feeAccrued decimal.Decimal) error {
	if err := s.primary.ResolveMarket(ctx, marketID, outcomeYes, settled, feeAccrued); err != nil {
		return err
	}
	keys := []string{marketKey(marketID)}
	for i := range settled {
		keys = append(keys, positionsKey(settled[i].Owner))
	}
	s.rdb.Del(ctx, keys...)
	return nil
}

func (s *CachedStore) ClaimPosition(ctx context.Context, id string, entry *model.HistoryEntry) (*model.Position, bool, error) {
	p, claimed, err := s.primary.ClaimPosition(ctx, id, entry)
	if err != nil {
		return nil, false, err
	}
	if claimed {
		s.rdb.Del(ctx, positionsKey(p.Owner), historyKey(entry.Owner))
	}
	return p, claimed, nil
}

func (s *CachedStore) AdjustBalance(ctx context.Context, owner string, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.primary.AdjustBalance(ctx, owner, delta)
	if err != nil {
		return decimal.Zero, err
	}
	s.rdb.Del(ctx, historyKey(owner))
	return balance, nil
}

func (s *CachedStore) AppendHistory(ctx context.Context, e *model.HistoryEntry) error {
	if err := s.primary.AppendHistory(ctx, e); err != nil {
		return err
	}
	s.rdb.Del(ctx, historyKey(e.Owner))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	// Cache miss: read from primary.
	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	data, err := s.rdb.Get(ctx, positionsKey(owner)).Bytes()
	if err == nil {
		var positions []model.Position
		if json.Unmarshal(data, &positions) == nil {
			return positions, nil
		}
	}

	positions, err := s.primary.GetPositionsByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(positions); err == nil {
		s.rdb.Set(ctx, positionsKey(owner), data, s.ttl)
	}
	return positions, nil
}

func (s *CachedStore) GetHistory(ctx context.Context, owner string) ([]model.HistoryEntry, error) {
	data, err := s.rdb.Get(ctx, historyKey(owner)).Bytes()
	if err == nil {
		var entries []model.HistoryEntry
		if json.Unmarshal(data, &entries) == nil {
			return entries, nil
		}
	}

	entries, err := s.primary.GetHistory(ctx, owner)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		s.rdb.Set(ctx, historyKey(owner), data, s.ttl)
	}
	return entries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	return s.primary.GetPosition(ctx, id)
}

func (s *CachedStore) GetPositionsByMarket(ctx context.Context, marketID int64) ([]model.Position, error) {
	return s.primary.GetPositionsByMarket(ctx, marketID)
}

func (s *CachedStore) Balance(ctx context.Context, owner string) (decimal.Decimal, error) {
	return s.primary.Balance(ctx, owner)
}

func (s *CachedStore) AccruedFees(ctx context.Context) (decimal.Decimal, error) {
	return s.primary.AccruedFees(ctx)
}

func (s *CachedStore) WithdrawFees(ctx context.Context) (decimal.Decimal, error) {
	return s.primary.WithdrawFees(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func marketKey(id int64) string        { return fmt.Sprintf("market:%d", id) }
func positionsKey(owner string) string { return fmt.Sprintf("positions:%s", owner) }
func historyKey(owner string) string   { return fmt.Sprintf("history:%s", owner) }
