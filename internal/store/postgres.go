// Package store journals executed trades to Postgres. The journal is write
// only from the engine's point of view; books are never rebuilt from it.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id            UUID PRIMARY KEY,
	seq           BIGSERIAL NOT NULL,
	buy_order_id  BIGINT NOT NULL,
	sell_order_id BIGINT NOT NULL,
	contract      TEXT NOT NULL CHECK (contract IN ('YES', 'NO')),
	price         NUMERIC(6, 2) NOT NULL,
	quantity      BIGINT NOT NULL CHECK (quantity > 0),
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS trades_buy_order_idx ON trades (buy_order_id);
CREATE INDEX IF NOT EXISTS trades_sell_order_idx ON trades (sell_order_id);
`

const insertTrade = `
INSERT INTO trades (id, buy_order_id, sell_order_id, contract, price, quantity)
VALUES ($1, $2, $3, $4, $5, $6)`

const listTradesByOrder = `
SELECT id, seq, buy_order_id, sell_order_id, contract, price, quantity, created_at
FROM trades
WHERE buy_order_id = $1 OR sell_order_id = $1
ORDER BY seq`

var ErrNoDatabase = errors.New("store: no database configured")

func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, ErrNoDatabase
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return pool, nil
}

// TradeRow is one journaled trade.
type TradeRow struct {
	ID          uuid.UUID       `json:"id"`
	Seq         int64           `json:"seq"`
	BuyOrderID  uint64          `json:"buy_order_id"`
	SellOrderID uint64          `json:"sell_order_id"`
	Contract    engine.Contract `json:"contract"`
	Price       decimal.Decimal `json:"price"`
	Quantity    uint64          `json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TradeStore struct {
	pool *pgxpool.Pool
}

func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

func (s *TradeStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// RecordTrades inserts the trades of one placement in a single transaction.
func (s *TradeStore) RecordTrades(ctx context.Context, trades []engine.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := insertTrades(ctx, tx, trades); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func insertTrades(ctx context.Context, tx pgx.Tx, trades []engine.Trade) error {
	for _, tr := range trades {
		tradeID, err := newUUID()
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, insertTrade,
			tradeID,
			int64(tr.BuyOrderID),
			int64(tr.SellOrderID),
			string(tr.Contract),
			numericFromTick(tr.Tick),
			int64(tr.Quantity),
		)
		if err != nil {
			return fmt.Errorf("store: insert trade %d/%d: %w", tr.BuyOrderID, tr.SellOrderID, err)
		}
	}
	return nil
}

// ListTradesByOrder returns every journaled trade in which orderID took part, oldest first.
func (s *TradeStore) ListTradesByOrder(ctx context.Context, orderID uint64) ([]TradeRow, error) {
	rows, err := s.pool.Query(ctx, listTradesByOrder, int64(orderID))
	if err != nil {
		return nil, fmt.Errorf("store: list trades: %w", err)
	}
	defer rows.Close()

	out := make([]TradeRow, 0)
	for rows.Next() {
		var (
			id        pgtype.UUID
			row       TradeRow
			buy, sell int64
			contract  string
			price     pgtype.Numeric
			qty       int64
		)
		if err := rows.Scan(&id, &row.Seq, &buy, &sell, &contract, &price, &qty, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan trade: %w", err)
		}
		row.ID = uuid.UUID(id.Bytes)
		row.BuyOrderID = uint64(buy)
		row.SellOrderID = uint64(sell)
		row.Contract = engine.Contract(contract)
		row.Price = decimalFromNumeric(price)
		row.Quantity = uint64(qty)
		out = append(out, row)
	}
	return out, rows.Err()
}

func newUUID() (pgtype.UUID, error) {
	uid, err := uuid.NewRandom()
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: uid, Valid: true}, nil
}

// numericFromTick encodes a tick as an exact NUMERIC with two fractional digits.
func numericFromTick(t engine.Tick) pgtype.Numeric {
	return pgtype.Numeric{
		Int:   big.NewInt(int64(t)),
		Exp:   -2,
		Valid: true,
	}
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
