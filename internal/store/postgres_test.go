package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
)

func TestNumericFromTick(t *testing.T) {
	tests := []struct {
		tick engine.Tick
		want string
	}{
		{730, "7.3"},
		{50, "0.5"},
		{950, "9.5"},
		{1, "0.01"},
	}
	for _, tt := range tests {
		n := numericFromTick(tt.tick)
		if !n.Valid || n.Exp != -2 {
			t.Fatalf("numericFromTick(%d) = %+v", tt.tick, n)
		}
		if got := decimalFromNumeric(n); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("decimalFromNumeric(numericFromTick(%d)) = %s, want %s", tt.tick, got, tt.want)
		}
	}
	if got := decimalFromNumeric(pgtype.Numeric{}); !got.IsZero() {
		t.Fatalf("invalid numeric should decode to zero, got %s", got)
	}
}

func TestNewPoolRequiresURL(t *testing.T) {
	if _, err := NewPool(context.Background(), ""); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("err = %v, want ErrNoDatabase", err)
	}
}

// TestTradeStoreRoundTrip needs a scratch Postgres database.
func TestTradeStoreRoundTrip(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, url)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	s := NewTradeStore(pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// ids far from anything a real run produces
	buy := uint64(time.Now().UnixNano())
	sell := buy + 1
	trades := []engine.Trade{
		{BuyOrderID: buy, SellOrderID: sell, Contract: engine.ContractYes, Tick: 730, Price: engine.TickToPrice(730), Quantity: 80},
		{BuyOrderID: buy, SellOrderID: engine.MarketMakerID, Contract: engine.ContractYes, Tick: 740, Price: engine.TickToPrice(740), Quantity: 20},
	}
	if err := s.RecordTrades(ctx, trades); err != nil {
		t.Fatalf("RecordTrades: %v", err)
	}

	rows, err := s.ListTradesByOrder(ctx, buy)
	if err != nil {
		t.Fatalf("ListTradesByOrder: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].SellOrderID != sell || !rows[0].Price.Equal(decimal.RequireFromString("7.30")) || rows[0].Quantity != 80 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].SellOrderID != engine.MarketMakerID || rows[1].Seq <= rows[0].Seq {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
}
