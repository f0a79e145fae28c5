package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/voucheo/market-ledger/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Market IDs come from a BIGSERIAL so they stay monotonic across restarts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const marketColumns = `id, question, post_url, platform, author_handle, category,
	deadline, status, outcome_yes,
	yes_pool::TEXT, no_pool::TEXT,
	creator_address, created_at`

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO markets (question, post_url, platform, author_handle, category,
		                      deadline, status, outcome_yes, yes_pool, no_pool,
		                      creator_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::NUMERIC, $10::NUMERIC, $11, $12)
		 RETURNING id`,
		m.Question, m.PostURL, m.Platform, m.AuthorHandle, m.Category,
		m.Deadline, m.Status, m.OutcomeYes,
		m.YesPool.String(), m.NoPool.String(),
		m.CreatorAddress, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("create market: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)

	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
		}
		return nil, fmt.Errorf("get market %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

// OpenPosition runs the pool increment, position insert, balance debit,
// and history append in one transaction. A failure at any step rolls the
// whole bet back, so the pool never holds stake without its position.
func (s *PostgresStore) OpenPosition(ctx context.Context, p *model.Position, entry *model.HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	column := "no_pool"
	if p.Side == model.SideYes {
		column = "yes_pool"
	}
	tag, err := tx.Exec(ctx,
		`UPDATE markets SET `+column+` = `+column+` + $2::NUMERIC WHERE id = $1`,
		p.MarketID, p.Stake.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, p.MarketID)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO positions (id, market_id, owner, side, stake, status, payout, claimed, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7::NUMERIC, $8, $9)`,
		p.ID, p.MarketID, p.Owner, string(p.Side),
		p.Stake.String(), p.Status, p.Payout.String(), p.Claimed, p.CreatedAt,
	); err != nil {
		return err
	}

	var balanceS string
	if err := tx.QueryRow(ctx,
		`INSERT INTO balances (owner, balance) VALUES ($1, -$2::NUMERIC)
		 ON CONFLICT (owner) DO UPDATE SET balance = balances.balance - $2::NUMERIC
		 RETURNING balance::TEXT`,
		p.Owner, p.Stake.String(),
	).Scan(&balanceS); err != nil {
		return err
	}
	entry.Balance, _ = decimal.NewFromString(balanceS)

	if _, err := tx.Exec(ctx,
		`INSERT INTO portfolio_history (id, owner, timestamp, balance, action, amount, market_id)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7)`,
		entry.ID, entry.Owner, entry.Timestamp, entry.Balance.String(),
		entry.Action, entry.Amount.String(), entry.MarketID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ResolveMarket runs the status transition, every position settlement, and
// the fee accrual in one transaction. A crash mid-way rolls back cleanly,
// leaving the market resolvable again.
func (s *PostgresStore) ResolveMarket(ctx context.Context, marketID int64, outcomeYes bool, settled []model.Position, feeAccrued decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The status predicate is the store-level idempotence guard: a second
	// resolver (even in another process) matches zero rows and can never
	// flip a recorded outcome.
	tag, err := tx.Exec(ctx,
		`UPDATE markets SET status = $2, outcome_yes = $3
		 WHERE id = $1 AND status <> $2`,
		marketID, model.MarketResolved, outcomeYes,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM markets WHERE id = $1`, marketID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrMarketNotFound, marketID)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %d", ErrAlreadyResolved, marketID)
	}

	for i := range settled {
		p := settled[i]
		if _, err := tx.Exec(ctx,
			`UPDATE positions SET status = $2, payout = $3::NUMERIC
			 WHERE id = $1 AND status = $4`,
			p.ID, p.Status, p.Payout.String(), model.PositionOpen,
		); err != nil {
			return err
		}
	}

	if feeAccrued.IsPositive() {
		// Upsert on the fixed singleton row; a fresh database with no seed
		// row must not swallow withheld fees.
		if _, err := tx.Exec(ctx,
			`INSERT INTO platform_fees (id, accrued) VALUES (1, $1::NUMERIC)
			 ON CONFLICT (id) DO UPDATE SET accrued = platform_fees.accrued + EXCLUDED.accrued`,
			feeAccrued.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

const positionColumns = `id, market_id, owner, side, stake::TEXT, status, payout::TEXT, claimed, created_at`

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPositionNotFound, id)
		}
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) GetPositionsByMarket(ctx context.Context, marketID int64) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions
		 WHERE market_id = $1 ORDER BY created_at, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

func (s *PostgresStore) GetPositionsByOwner(ctx context.Context, owner string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions
		 WHERE owner = $1 ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ClaimPosition relies on a conditional UPDATE as the compare-and-set:
// under concurrent claims, exactly one statement matches the
// claimed = FALSE predicate. The balance credit and the history entry
// ride in the same transaction, so a claimed position without its credit
// cannot be committed.
func (s *PostgresStore) ClaimPosition(ctx context.Context, id string, entry *model.HistoryEntry) (*model.Position, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`UPDATE positions SET claimed = TRUE
		 WHERE id = $1 AND status = $2 AND payout > 0 AND claimed = FALSE
		 RETURNING `+positionColumns,
		id, model.PositionWon,
	)

	p, err := scanPosition(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, false, fmt.Errorf("claim position %s: %w", id, err)
		}
		// CAS lost or position not claimable: report current state unchanged.
		p, err = s.GetPosition(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	}

	var balanceS string
	if err := tx.QueryRow(ctx,
		`INSERT INTO balances (owner, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (owner) DO UPDATE SET balance = balances.balance + $2::NUMERIC
		 RETURNING balance::TEXT`,
		p.Owner, p.Payout.String(),
	).Scan(&balanceS); err != nil {
		return nil, false, err
	}
	entry.Balance, _ = decimal.NewFromString(balanceS)

	if _, err := tx.Exec(ctx,
		`INSERT INTO portfolio_history (id, owner, timestamp, balance, action, amount, market_id)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7)`,
		entry.ID, entry.Owner, entry.Timestamp, entry.Balance.String(),
		entry.Action, entry.Amount.String(), entry.MarketID,
	); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) Balance(ctx context.Context, owner string) (decimal.Decimal, error) {
	var balanceS string
	err := s.pool.QueryRow(ctx,
		`SELECT balance::TEXT FROM balances WHERE owner = $1`, owner).
		Scan(&balanceS)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(balanceS)
	return balance, nil
}

func (s *PostgresStore) AdjustBalance(ctx context.Context, owner string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balanceS string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO balances (owner, balance) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (owner) DO UPDATE SET balance = balances.balance + $2::NUMERIC
		 RETURNING balance::TEXT`,
		owner, delta.String(),
	).Scan(&balanceS)
	if err != nil {
		return decimal.Zero, err
	}
	balance, _ := decimal.NewFromString(balanceS)
	return balance, nil
}

func (s *PostgresStore) AppendHistory(ctx context.Context, e *model.HistoryEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolio_history (id, owner, timestamp, balance, action, amount, market_id)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6::NUMERIC, $7)`,
		e.ID, e.Owner, e.Timestamp, e.Balance.String(), e.Action, e.Amount.String(), e.MarketID,
	)
	return err
}

func (s *PostgresStore) GetHistory(ctx context.Context, owner string) ([]model.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner, timestamp, balance::TEXT, action, amount::TEXT, market_id
		 FROM portfolio_history WHERE owner = $1 ORDER BY timestamp, id`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var balanceS, amountS string
		if err := rows.Scan(&e.ID, &e.Owner, &e.Timestamp, &balanceS, &e.Action, &amountS, &e.MarketID); err != nil {
			return nil, err
		}
		e.Balance, _ = decimal.NewFromString(balanceS)
		e.Amount, _ = decimal.NewFromString(amountS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) AccruedFees(ctx context.Context) (decimal.Decimal, error) {
	var accruedS string
	err := s.pool.QueryRow(ctx,
		`SELECT accrued::TEXT FROM platform_fees WHERE id = 1`).Scan(&accruedS)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	accrued, _ := decimal.NewFromString(accruedS)
	return accrued, nil
}

func (s *PostgresStore) WithdrawFees(ctx context.Context) (decimal.Decimal, error) {
	// RETURNING reflects the updated row, so capture the prior amount
	// under the same row lock.
	var drainedS string
	err := s.pool.QueryRow(ctx,
		`WITH prev AS (SELECT accrued FROM platform_fees WHERE id = 1 FOR UPDATE)
		 UPDATE platform_fees SET accrued = 0
		 WHERE id = 1 AND accrued > 0
		 RETURNING (SELECT accrued FROM prev)::TEXT`).Scan(&drainedS)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	drained, _ := decimal.NewFromString(drainedS)
	return drained, nil
}

// --- Row scanning helpers ---

type pgxRow interface {
	Scan(dest ...interface{}) error
}

type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var yesPool, noPool string

	if err := row.Scan(&m.ID, &m.Question, &m.PostURL, &m.Platform, &m.AuthorHandle, &m.Category,
		&m.Deadline, &m.Status, &m.OutcomeYes,
		&yesPool, &noPool,
		&m.CreatorAddress, &m.CreatedAt); err != nil {
		return nil, err
	}

	m.YesPool, _ = decimal.NewFromString(yesPool)
	m.NoPool, _ = decimal.NewFromString(noPool)
	return &m, nil
}

func scanPosition(row pgxRow) (*model.Position, error) {
	var p model.Position
	var side, stakeS, payoutS string

	if err := row.Scan(&p.ID, &p.MarketID, &p.Owner, &side,
		&stakeS, &p.Status, &payoutS, &p.Claimed, &p.CreatedAt); err != nil {
		return nil, err
	}

	p.Side = model.Side(side)
	p.Stake, _ = decimal.NewFromString(stakeS)
	p.Payout, _ = decimal.NewFromString(payoutS)
	return &p, nil
}

func scanPositions(rows pgxRows) ([]model.Position, error) {
	var positions []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}
