package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
)

type placeOrderRequest struct {
	UserID   uint32          `json:"user_id"`
	Contract string          `json:"contract"` // "YES" | "NO"
	Side     string          `json:"side"`     // "BUY" | "SELL"
	Price    decimal.Decimal `json:"price"`
	Quantity uint64          `json:"quantity"`
}

type orderCreateResponse struct {
	Order      engine.Order   `json:"order"`
	Trades     []engine.Trade `json:"trades"`
	RequestID  string         `json:"request_id"`
	ReceivedAt time.Time      `json:"received_at"`
}

type quotesResponse struct {
	Prices map[engine.Contract]decimal.Decimal `json:"prices"`
}

// wsSubscribeRequest is sent by websocket clients to filter trades by contract.
type wsSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}

type wsTradeMessage struct {
	Channel   string       `json:"channel"`
	Trade     engine.Trade `json:"trade"`
	Timestamp int64        `json:"timestamp"` // unix milliseconds
}
