package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/screener/internal/contracts"
)

// PGStore serves bars and the stock list from data.daily_prices / data.stocks
// ⭐ SSOT: 일봉 DB 저장소는 여기서만
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a new Postgres-backed store
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// GetBars retrieves bars for a code within [start, end]
func (s *PGStore) GetBars(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	query := `
		SELECT trade_date, open_price, close_price, high_price, low_price,
		       volume, amount, pct_change, turnover
		FROM data.daily_prices
		WHERE stock_code = $1 AND trade_date BETWEEN $2 AND $3
		ORDER BY trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, code, start.Time(), end.Time())
	if err != nil {
		return nil, fmt.Errorf("query bars %s: %w", code, err)
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var (
			b         contracts.Bar
			tradeDate time.Time
		)
		if err := rows.Scan(&tradeDate, &b.Open, &b.Close, &b.High, &b.Low,
			&b.Volume, &b.Amount, &b.PctChange, &b.Turnover); err != nil {
			return nil, fmt.Errorf("scan bar %s: %w", code, err)
		}
		b.TradeDate = contracts.DateOf(tradeDate)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// amplitude and price change are not stored
	return contracts.NewDerivedBarSeries(bars, contracts.DeriveAmplitude|contracts.DerivePriceChange), nil
}

// ListStocks returns every stored stock ordered by code
func (s *PGStore) ListStocks(ctx context.Context) ([]contracts.Stock, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name FROM data.stocks ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer rows.Close()

	var stocks []contracts.Stock
	for rows.Next() {
		var st contracts.Stock
		if err := rows.Scan(&st.Code, &st.Name); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// SaveStocks upserts the stock list
func (s *PGStore) SaveStocks(ctx context.Context, stocks []contracts.Stock) error {
	if len(stocks) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.stocks (code, name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, st := range stocks {
		batch.Queue(query, st.Code, st.Name)
	}
	return s.sendBatch(ctx, batch)
}

// SaveBars upserts one code's bars
func (s *PGStore) SaveBars(ctx context.Context, code string, series contracts.BarSeries) error {
	if series.Len() == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (
			stock_code, trade_date, open_price, high_price, low_price, close_price,
			volume, amount, pct_change, turnover
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount,
			pct_change = EXCLUDED.pct_change,
			turnover = EXCLUDED.turnover
	`

	batch := &pgx.Batch{}
	for _, b := range series {
		batch.Queue(query, code, b.TradeDate.Time(), b.Open, b.High, b.Low, b.Close,
			b.Volume, b.Amount, b.PctChange, b.Turnover)
	}
	return s.sendBatch(ctx, batch)
}

func (s *PGStore) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch item %d: %w", i, err)
		}
	}
	return nil
}

// Recorder writes every fetched series to the store as a side effect
type Recorder struct {
	upstream contracts.BarSource
	store    *PGStore
	onError  func(code string, err error)
}

// NewRecorder wraps upstream; onError may be nil
func NewRecorder(upstream contracts.BarSource, store *PGStore, onError func(code string, err error)) *Recorder {
	return &Recorder{upstream: upstream, store: store, onError: onError}
}

// GetBars fetches from upstream and saves the result; save failures do not fail the fetch
func (r *Recorder) GetBars(ctx context.Context, code string, start, end contracts.Date) (contracts.BarSeries, error) {
	series, err := r.upstream.GetBars(ctx, code, start, end)
	if err != nil || series.Len() == 0 {
		return series, err
	}
	if err := r.store.SaveBars(ctx, code, series); err != nil && r.onError != nil {
		r.onError(code, err)
	}
	return series, nil
}
