package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidContract = errors.New("invalid contract")
	ErrInvalidSide     = errors.New("invalid side")
)

// Contract is one of the two linked instruments of the market.
type Contract string

const (
	ContractYes Contract = "YES"
	ContractNo  Contract = "NO"
)

func (c Contract) Valid() bool { return c == ContractYes || c == ContractNo }

// Opposite returns the linked contract: a price p on one side is P_MAX-p on the other.
func (c Contract) Opposite() Contract {
	if c == ContractYes {
		return ContractNo
	}
	return ContractYes
}

func ParseContract(s string) (Contract, error) {
	switch Contract(strings.ToUpper(strings.TrimSpace(s))) {
	case ContractYes:
		return ContractYes, nil
	case ContractNo:
		return ContractNo, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidContract, s)
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

type OrderStatus string

const (
	StatusRejected        OrderStatus = "REJECTED"
	StatusResting         OrderStatus = "RESTING"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

type Order struct {
	ID        uint64          `json:"id"`
	UserID    uint32          `json:"user_id"`
	Contract  Contract        `json:"contract"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Tick      Tick            `json:"tick"`
	Quantity  uint64          `json:"quantity"`  // submitted quantity, 0 when rejected
	Remaining uint64          `json:"remaining"` // unfilled
	Timestamp int64           `json:"timestamp"` // seconds since epoch
	Status    OrderStatus     `json:"status"`
}

// Filled is the executed part of the order.
func (o *Order) Filled() uint64 { return o.Quantity - o.Remaining }

// Trade is one execution. A zero order id on either side is the
// synthetic market-maker counterparty.
type Trade struct {
	BuyOrderID  uint64          `json:"buy_order_id"`
	SellOrderID uint64          `json:"sell_order_id"`
	Contract    Contract        `json:"contract"`
	Price       decimal.Decimal `json:"price"`
	Tick        Tick            `json:"tick"`
	Quantity    uint64          `json:"quantity"`
}

// MarketMakerID is the counterparty id of trades that absorb an unfilled residual.
const MarketMakerID uint64 = 0
