package quotes

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
)

// PriceCache stores the latest traded price of each contract in memory.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[engine.Contract]decimal.Decimal
}

func NewPriceCache() *PriceCache {
	return &PriceCache{prices: make(map[engine.Contract]decimal.Decimal)}
}

func (c *PriceCache) Set(contract engine.Contract, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[contract] = price
}

func (c *PriceCache) Get(contract engine.Contract) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[contract]
	return p, ok
}

// All returns a copy of the cached prices.
func (c *PriceCache) All() map[engine.Contract]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[engine.Contract]decimal.Decimal, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}

// OnTrades updates both contracts from the last trade of the batch: a trade
// at p on one contract implies P_MAX-p on the other.
func (c *PriceCache) OnTrades(trades []engine.Trade) {
	if len(trades) == 0 {
		return
	}
	last := trades[len(trades)-1]

	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[last.Contract] = last.Tick.Price()
	c.prices[last.Contract.Opposite()] = last.Tick.Complement().Price()
}
