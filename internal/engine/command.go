package engine

import "github.com/shopspring/decimal"

type CommandType int

const (
	CmdPlace CommandType = iota
	CmdCancel
	CmdBook
)

type PlaceRequest struct {
	UserID   uint32
	Contract Contract
	Side     Side
	Price    decimal.Decimal
	Quantity uint64
}

type CancelRequest struct {
	Contract Contract
	Side     Side
	Price    decimal.Decimal
	OrderID  uint64
}

type PlaceResult struct {
	Order  Order
	Trades []Trade
}

// BookView is a read-only picture of one contract's book.
type BookView struct {
	Contract Contract            `json:"contract"`
	BestBid  decimal.NullDecimal `json:"best_bid"`
	BestAsk  decimal.NullDecimal `json:"best_ask"`
	Bids     []Level             `json:"bids"` // best first
	Asks     []Level             `json:"asks"` // best first
}

type Command struct {
	Type     CommandType
	Place    PlaceRequest  // used when Type == CmdPlace
	Cancel   CancelRequest // used when Type == CmdCancel
	Contract Contract      // used when Type == CmdBook
	Resp     chan any      // engine sends the result back here; buffered
}
