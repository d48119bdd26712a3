package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/marketscore/internal/domain"
)

var _ domain.MarketStore = (*MarketStore)(nil)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarket = `
	INSERT INTO markets (
		id, ticker, ticker_key, base_denom, quote_denom,
		maker_fee_rate, taker_fee_rate, min_price_tick_size, min_quantity_tick_size,
		status, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6::numeric, $7::numeric, $8::numeric, $9::numeric,
		$10, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		ticker                 = EXCLUDED.ticker,
		ticker_key             = EXCLUDED.ticker_key,
		base_denom             = EXCLUDED.base_denom,
		quote_denom            = EXCLUDED.quote_denom,
		maker_fee_rate         = EXCLUDED.maker_fee_rate,
		taker_fee_rate         = EXCLUDED.taker_fee_rate,
		min_price_tick_size    = EXCLUDED.min_price_tick_size,
		min_quantity_tick_size = EXCLUDED.min_quantity_tick_size,
		status                 = EXCLUDED.status,
		updated_at             = NOW()`

// UpsertBatch inserts or updates markets in a single batch.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarket,
			m.ID, m.Ticker, domain.NormalizeTicker(m.Ticker), m.BaseDenom, m.QuoteDenom,
			m.MakerFeeRate.String(), m.TakerFeeRate.String(),
			m.MinPriceTickSize.String(), m.MinQuantityTickSize.String(),
			m.Status,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `id, ticker, base_denom, quote_denom,
	maker_fee_rate::text, taker_fee_rate::text,
	min_price_tick_size::text, min_quantity_tick_size::text, status`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var maker, taker, priceTick, qtyTick string
	if err := row.Scan(
		&m.ID, &m.Ticker, &m.BaseDenom, &m.QuoteDenom,
		&maker, &taker, &priceTick, &qtyTick, &m.Status,
	); err != nil {
		return domain.Market{}, err
	}
	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		raw string
	}{
		{&m.MakerFeeRate, maker},
		{&m.TakerFeeRate, taker},
		{&m.MinPriceTickSize, priceTick},
		{&m.MinQuantityTickSize, qtyTick},
	} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return domain.Market{}, fmt.Errorf("parse numeric %q: %w", f.raw, err)
		}
	}
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByTicker retrieves a market by ticker, ignoring case and separator.
func (s *MarketStore) GetByTicker(ctx context.Context, ticker string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE ticker_key = $1 ORDER BY id LIMIT 1`,
		domain.NormalizeTicker(ticker))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by ticker %s: %w", ticker, err)
	}
	return m, nil
}

// List returns every stored market ordered by ticker.
func (s *MarketStore) List(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+marketCols+` FROM markets ORDER BY ticker, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the number of stored markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}
