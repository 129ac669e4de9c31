package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hakimelghazi/binary-exchange/internal/util"
)

// DefaultCommissionRate is stored on the engine but never charged by matching.
var DefaultCommissionRate = decimal.RequireFromString("0.0223")

// BookSnapshot is the aggregated resting quantity per tick of one contract.
type BookSnapshot struct {
	Bids map[Tick]uint64
	Asks map[Tick]uint64
}

type Option func(*MatchingEngine)

func WithClock(c util.Clock) Option {
	return func(m *MatchingEngine) { m.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *MatchingEngine) { m.log = util.OrNop(l) }
}

func WithCommissionRate(rate decimal.Decimal) Option {
	return func(m *MatchingEngine) { m.commissionRate = rate }
}

// WithMarketMaker makes the engine absorb any unfilled residual with a trade
// against MarketMakerID instead of resting it.
func WithMarketMaker(enabled bool) Option {
	return func(m *MatchingEngine) { m.marketMaker = enabled }
}

// WithInvariantChecks verifies both books after every placement and cancel
// and panics on the first violation.
func WithInvariantChecks(enabled bool) Option {
	return func(m *MatchingEngine) { m.checkInvariants = enabled }
}

// MatchingEngine owns the YES and NO books of one market. It is not safe for
// concurrent use; callers serialize access (see Engine).
type MatchingEngine struct {
	yes *OrderBook
	no  *OrderBook

	nextID          uint64
	commissionRate  decimal.Decimal
	marketMaker     bool
	checkInvariants bool

	clock util.Clock
	log   *zap.Logger
}

func NewMatchingEngine(opts ...Option) *MatchingEngine {
	m := &MatchingEngine{
		yes:            NewOrderBook(ContractYes),
		no:             NewOrderBook(ContractNo),
		nextID:         1,
		commissionRate: DefaultCommissionRate,
		clock:          util.RealClock{},
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Book returns the book of a contract, or nil for an unknown contract.
func (m *MatchingEngine) Book(c Contract) *OrderBook {
	switch c {
	case ContractYes:
		return m.yes
	case ContractNo:
		return m.no
	}
	return nil
}

func (m *MatchingEngine) CommissionRate() decimal.Decimal { return m.commissionRate }

func (m *MatchingEngine) MarketMaker() bool { return m.marketMaker }

// NextOrderID is the id the next submission will receive.
func (m *MatchingEngine) NextOrderID() uint64 { return m.nextID }

func (m *MatchingEngine) generateOrderID() uint64 {
	id := m.nextID
	m.nextID++
	return id
}

// PlaceOrder admits, matches and (if anything is left) rests a limit order.
// Rejected submissions come back with zero quantity and no trades; they still
// consume an order id.
func (m *MatchingEngine) PlaceOrder(userID uint32, contract Contract, side Side, price decimal.Decimal, quantity uint64) (Order, []Trade) {
	o := &Order{
		ID:        m.generateOrderID(),
		UserID:    userID,
		Contract:  contract,
		Side:      side,
		Price:     price,
		Tick:      PriceToTick(price),
		Quantity:  quantity,
		Remaining: quantity,
		Timestamp: m.clock.Now().Unix(),
	}

	if reason := admit(o); reason != "" {
		m.log.Debug("order_rejected",
			zap.Uint64("order_id", o.ID),
			zap.String("contract", string(contract)),
			zap.String("side", string(side)),
			zap.String("price", price.String()),
			zap.Uint64("qty", quantity),
			zap.String("reason", reason))
		o.Quantity, o.Remaining = 0, 0
		o.Status = StatusRejected
		return *o, []Trade{}
	}

	trades := m.match(o)

	switch {
	case o.Remaining == 0:
		o.Status = StatusFilled
	case o.Remaining == o.Quantity:
		o.Status = StatusResting
	default:
		o.Status = StatusPartiallyFilled
	}
	if o.Remaining > 0 {
		m.Book(o.Contract).Add(o)
	}

	m.log.Debug("order_placed",
		zap.Uint64("order_id", o.ID),
		zap.String("contract", string(o.Contract)),
		zap.String("side", string(o.Side)),
		zap.Stringer("tick", o.Tick),
		zap.Uint64("qty", o.Quantity),
		zap.Uint64("remaining", o.Remaining),
		zap.Int("trades", len(trades)))

	m.verify()
	return *o, trades
}

func admit(o *Order) string {
	switch {
	case !o.Contract.Valid():
		return "invalid contract"
	case !o.Side.Valid():
		return "invalid side"
	case o.Quantity == 0:
		return "zero quantity"
	case !Admissible(o.Price):
		return "price out of range"
	}
	return ""
}

// match runs the three phases against the aggressor and returns the trades.
// o.Remaining is left at the quantity that should rest.
func (m *MatchingEngine) match(o *Order) []Trade {
	trades := make([]Trade, 0)
	same := m.Book(o.Contract)
	opposite := m.Book(o.Contract.Opposite())

	// 1: same contract, resting price.
	trades = m.sweep(same, o, o.Tick, false, trades)

	// 2: linked contract through the complement, aggressor's price.
	if o.Remaining > 0 {
		trades = m.sweep(opposite, o, o.Tick.Complement(), true, trades)
	}

	// 3: residual rests, or is absorbed by the market maker.
	if o.Remaining > 0 && m.marketMaker {
		trades = append(trades, newTrade(o, MarketMakerID, o.Tick, o.Remaining))
		o.Remaining = 0
	}
	return trades
}

// sweep consumes the best opposing levels of book while they cross limit.
// A buyer takes asks priced <= limit; a seller takes bids priced >= limit.
func (m *MatchingEngine) sweep(book *OrderBook, o *Order, limit Tick, atAggressorPrice bool, trades []Trade) []Trade {
	restingSide := SideSell
	if o.Side == SideSell {
		restingSide = SideBuy
	}

	for o.Remaining > 0 {
		lvl := book.bestAgainst(o.Side)
		if lvl == nil || !crosses(o.Side, lvl.tick, limit) {
			break
		}

		maker := lvl.popHead()
		if maker == nil {
			panic(fmt.Sprintf("engine: empty %s %s level %s left in book", book.contract, restingSide, lvl.tick))
		}

		qty := min(o.Remaining, maker.Remaining)
		price := lvl.tick
		if atAggressorPrice {
			price = o.Tick
		}
		trades = append(trades, newTrade(o, maker.ID, price, qty))

		o.Remaining -= qty
		maker.Remaining -= qty

		if maker.Remaining > 0 {
			maker.Status = StatusPartiallyFilled
			lvl.pushHead(maker)
		} else {
			maker.Status = StatusFilled
		}
		if lvl.empty() {
			book.removeLevel(restingSide, lvl.tick)
		}
	}
	return trades
}

func crosses(aggressor Side, resting, limit Tick) bool {
	if aggressor == SideBuy {
		return resting <= limit
	}
	return resting >= limit
}

// newTrade labels the aggressor and the counterparty by the aggressor's side.
// The trade always carries the aggressor's contract.
func newTrade(o *Order, counterparty uint64, tick Tick, qty uint64) Trade {
	t := Trade{
		Contract: o.Contract,
		Price:    tick.Price(),
		Tick:     tick,
		Quantity: qty,
	}
	if o.Side == SideBuy {
		t.BuyOrderID, t.SellOrderID = o.ID, counterparty
	} else {
		t.BuyOrderID, t.SellOrderID = counterparty, o.ID
	}
	return t
}

// CancelOrder removes a resting order. Cancelling an order that was filled,
// already cancelled or never existed is a no-op and returns false.
func (m *MatchingEngine) CancelOrder(contract Contract, side Side, price decimal.Decimal, orderID uint64) bool {
	book := m.Book(contract)
	if book == nil {
		return false
	}
	o, ok := book.cancelTick(side, PriceToTick(price), orderID)
	if ok {
		o.Status = StatusCancelled
	}
	m.log.Debug("order_cancel",
		zap.Uint64("order_id", orderID),
		zap.String("contract", string(contract)),
		zap.String("side", string(side)),
		zap.Bool("removed", ok))
	m.verify()
	return ok
}

// BestPrices returns the best bid and best ask of a contract; either may be null.
func (m *MatchingEngine) BestPrices(contract Contract) (bid, ask decimal.NullDecimal) {
	book := m.Book(contract)
	if book == nil {
		return bid, ask
	}
	if t, ok := book.BestBidTick(); ok {
		bid = decimal.NewNullDecimal(t.Price())
	}
	if t, ok := book.BestAskTick(); ok {
		ask = decimal.NewNullDecimal(t.Price())
	}
	return bid, ask
}

func (m *MatchingEngine) Snapshot(contract Contract) BookSnapshot {
	book := m.Book(contract)
	if book == nil {
		return BookSnapshot{Bids: map[Tick]uint64{}, Asks: map[Tick]uint64{}}
	}
	return BookSnapshot{
		Bids: book.Snapshot(SideBuy),
		Asks: book.Snapshot(SideSell),
	}
}

func (m *MatchingEngine) verify() {
	if !m.checkInvariants {
		return
	}
	for _, book := range []*OrderBook{m.yes, m.no} {
		if err := book.CheckInvariants(); err != nil {
			panic("engine: invariant violated: " + err.Error())
		}
	}
}
