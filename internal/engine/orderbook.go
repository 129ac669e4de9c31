package engine

import (
	"fmt"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

const levelsBTreeDegree = 32

// Level is an aggregated view of one price level.
type Level struct {
	Tick     Tick            `json:"tick"`
	Price    decimal.Decimal `json:"price"`
	Quantity uint64          `json:"quantity"`
	Orders   int             `json:"orders"`
}

// OrderBook holds the resting orders of one contract in two tick-ordered ladders.
type OrderBook struct {
	contract Contract
	bids     *btree.BTreeG[*priceLevel] // best = Max
	asks     *btree.BTreeG[*priceLevel] // best = Min
}

func levelLess(a, b *priceLevel) bool { return a.tick < b.tick }

func NewOrderBook(contract Contract) *OrderBook {
	return &OrderBook{
		contract: contract,
		bids:     btree.NewG[*priceLevel](levelsBTreeDegree, levelLess),
		asks:     btree.NewG[*priceLevel](levelsBTreeDegree, levelLess),
	}
}

func (ob *OrderBook) Contract() Contract { return ob.contract }

func (ob *OrderBook) ladder(side Side) *btree.BTreeG[*priceLevel] {
	switch side {
	case SideBuy:
		return ob.bids
	case SideSell:
		return ob.asks
	}
	return nil
}

// Add appends the order at the tail of its (side, tick) level.
func (ob *OrderBook) Add(o *Order) {
	if o.Contract != ob.contract {
		panic(fmt.Sprintf("engine: order %d for %s added to %s book", o.ID, o.Contract, ob.contract))
	}
	ladder := ob.ladder(o.Side)
	if ladder == nil {
		panic(fmt.Sprintf("engine: order %d has invalid side %q", o.ID, o.Side))
	}
	lvl, ok := ladder.Get(&priceLevel{tick: o.Tick})
	if !ok {
		lvl = newPriceLevel(o.Tick)
		ladder.ReplaceOrInsert(lvl)
	}
	lvl.enqueue(o)
}

// Cancel removes order id from the level at (side, tick(price)).
// Unknown targets are ignored; the return value reports whether anything was removed.
func (ob *OrderBook) Cancel(side Side, price decimal.Decimal, id uint64) bool {
	_, ok := ob.cancelTick(side, PriceToTick(price), id)
	return ok
}

func (ob *OrderBook) cancelTick(side Side, tick Tick, id uint64) (*Order, bool) {
	ladder := ob.ladder(side)
	if ladder == nil {
		return nil, false
	}
	lvl, ok := ladder.Get(&priceLevel{tick: tick})
	if !ok {
		return nil, false
	}
	o, ok := lvl.removeByID(id)
	if lvl.empty() {
		ladder.Delete(lvl)
	}
	return o, ok
}

func (ob *OrderBook) bestBid() *priceLevel {
	lvl, _ := ob.bids.Max()
	return lvl
}

func (ob *OrderBook) bestAsk() *priceLevel {
	lvl, _ := ob.asks.Min()
	return lvl
}

// bestAgainst returns the best level an aggressor on the given side trades with:
// the lowest ask for a buyer, the highest bid for a seller.
func (ob *OrderBook) bestAgainst(aggressor Side) *priceLevel {
	if aggressor == SideBuy {
		return ob.bestAsk()
	}
	return ob.bestBid()
}

func (ob *OrderBook) removeLevel(side Side, tick Tick) {
	ob.ladder(side).Delete(&priceLevel{tick: tick})
}

func (ob *OrderBook) BestBidTick() (Tick, bool) {
	if lvl := ob.bestBid(); lvl != nil {
		return lvl.tick, true
	}
	return 0, false
}

func (ob *OrderBook) BestAskTick() (Tick, bool) {
	if lvl := ob.bestAsk(); lvl != nil {
		return lvl.tick, true
	}
	return 0, false
}

// Snapshot returns tick -> aggregate resting quantity for one side.
func (ob *OrderBook) Snapshot(side Side) map[Tick]uint64 {
	out := make(map[Tick]uint64)
	ladder := ob.ladder(side)
	if ladder == nil {
		return out
	}
	ladder.Ascend(func(lvl *priceLevel) bool {
		out[lvl.tick] = lvl.aggregateQuantity()
		return true
	})
	return out
}

// Levels returns the aggregated levels of one side, best price first.
func (ob *OrderBook) Levels(side Side) []Level {
	levels := make([]Level, 0)
	collect := func(lvl *priceLevel) bool {
		levels = append(levels, Level{
			Tick:     lvl.tick,
			Price:    lvl.tick.Price(),
			Quantity: lvl.aggregateQuantity(),
			Orders:   lvl.len(),
		})
		return true
	}
	switch side {
	case SideBuy:
		ob.bids.Descend(collect)
	case SideSell:
		ob.asks.Ascend(collect)
	}
	return levels
}

// OrderCount is the number of resting orders on both sides.
func (ob *OrderBook) OrderCount() int {
	n := 0
	count := func(lvl *priceLevel) bool {
		n += lvl.len()
		return true
	}
	ob.bids.Ascend(count)
	ob.asks.Ascend(count)
	return n
}

// CheckInvariants reports the first violated book invariant, if any.
func (ob *OrderBook) CheckInvariants() error {
	var err error
	check := func(side Side) func(*priceLevel) bool {
		return func(lvl *priceLevel) bool {
			if lvl.empty() {
				err = fmt.Errorf("%s %s level %s is empty", ob.contract, side, lvl.tick)
				return false
			}
			for e := lvl.orders.Front(); e != nil; e = e.Next() {
				o := e.Value.(*Order)
				switch {
				case o.Side != side:
					err = fmt.Errorf("order %d with side %s on %s ladder", o.ID, o.Side, side)
				case o.Contract != ob.contract:
					err = fmt.Errorf("order %d for %s in %s book", o.ID, o.Contract, ob.contract)
				case o.Tick != lvl.tick:
					err = fmt.Errorf("order %d at tick %s in level %s", o.ID, o.Tick, lvl.tick)
				case o.Remaining == 0:
					err = fmt.Errorf("order %d rests with zero quantity", o.ID)
				}
				if err != nil {
					return false
				}
			}
			return true
		}
	}
	ob.bids.Ascend(check(SideBuy))
	if err != nil {
		return err
	}
	ob.asks.Ascend(check(SideSell))
	if err != nil {
		return err
	}
	bid, okBid := ob.BestBidTick()
	ask, okAsk := ob.BestAskTick()
	if okBid && okAsk && bid >= ask {
		return fmt.Errorf("%s book crossed: best bid %s >= best ask %s", ob.contract, bid, ask)
	}
	return nil
}
