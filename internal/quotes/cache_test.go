package quotes

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
)

func TestPriceCacheSetGet(t *testing.T) {
	c := NewPriceCache()
	if _, ok := c.Get(engine.ContractYes); ok {
		t.Fatalf("expected empty cache")
	}
	c.Set(engine.ContractYes, decimal.RequireFromString("6.10"))
	p, ok := c.Get(engine.ContractYes)
	if !ok || !p.Equal(decimal.RequireFromString("6.10")) {
		t.Fatalf("Get = %s, %v", p, ok)
	}
}

func TestPriceCacheOnTradesSetsComplement(t *testing.T) {
	c := NewPriceCache()
	c.OnTrades([]engine.Trade{
		{Contract: engine.ContractNo, Tick: 250, Price: engine.TickToPrice(250), Quantity: 1},
		{Contract: engine.ContractNo, Tick: 270, Price: engine.TickToPrice(270), Quantity: 1},
	})

	all := c.All()
	if !all[engine.ContractNo].Equal(decimal.RequireFromString("2.70")) {
		t.Fatalf("NO = %s, want 2.70", all[engine.ContractNo])
	}
	if !all[engine.ContractYes].Equal(decimal.RequireFromString("7.30")) {
		t.Fatalf("YES = %s, want 7.30", all[engine.ContractYes])
	}

	c.OnTrades(nil)
	if len(c.All()) != 2 {
		t.Fatalf("empty batch must not change the cache")
	}
}
