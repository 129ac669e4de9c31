package engine

import "github.com/shopspring/decimal"

// Tick is a price in hundredths. All book ordering and price comparison uses ticks.
type Tick int64

const (
	TicksPerUnit = 100

	// MaxTick is P_MAX (10.00): a YES price and its NO complement sum to it.
	MaxTick Tick = 1000
)

var (
	MinAdmissiblePrice = decimal.RequireFromString("0.50")
	MaxAdmissiblePrice = decimal.RequireFromString("9.50")
)

// PriceToTick converts a decimal price to ticks, rounding half away from zero.
func PriceToTick(price decimal.Decimal) Tick {
	return Tick(price.Shift(2).Round(0).IntPart())
}

func TickToPrice(t Tick) decimal.Decimal {
	return decimal.New(int64(t), -2)
}

// Complement is the tick of the same economic price on the linked contract.
func (t Tick) Complement() Tick { return MaxTick - t }

func (t Tick) Price() decimal.Decimal { return TickToPrice(t) }

func (t Tick) String() string { return TickToPrice(t).StringFixed(2) }

// Admissible reports whether a submitted price lies in [0.50, 9.50].
func Admissible(price decimal.Decimal) bool {
	return !price.LessThan(MinAdmissiblePrice) && !price.GreaterThan(MaxAdmissiblePrice)
}
