// Command engine replays a short order flow against an in-memory engine and
// logs every order and trade. Useful for eyeballing matching behaviour.
package main

import (
	"flag"
	"log"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
	"github.com/hakimelghazi/binary-exchange/internal/util"
)

type step struct {
	cancel   bool
	orderID  uint64
	userID   uint32
	contract engine.Contract
	side     engine.Side
	price    string
	qty      uint64
}

var flow = []step{
	{userID: 1, contract: engine.ContractYes, side: engine.SideBuy, price: "7.30", qty: 150},
	{userID: 2, contract: engine.ContractYes, side: engine.SideSell, price: "7.30", qty: 80},
	{userID: 3, contract: engine.ContractNo, side: engine.SideSell, price: "2.70", qty: 500},
	{userID: 3, contract: engine.ContractYes, side: engine.SideBuy, price: "0.40", qty: 10},
	{cancel: true, orderID: 3, contract: engine.ContractNo, side: engine.SideSell, price: "2.70"},
	{userID: 4, contract: engine.ContractNo, side: engine.SideSell, price: "7.30", qty: 80},
	{userID: 5, contract: engine.ContractYes, side: engine.SideSell, price: "6.00", qty: 100},
	{userID: 6, contract: engine.ContractYes, side: engine.SideBuy, price: "7.00", qty: 40},
}

func main() {
	marketMaker := flag.Bool("market-maker", false, "absorb unfilled residuals instead of resting them")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger, err := util.NewLogger(*level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	m := engine.NewMatchingEngine(
		engine.WithLogger(logger),
		engine.WithMarketMaker(*marketMaker),
		engine.WithInvariantChecks(true),
	)

	for _, s := range flow {
		price := decimal.RequireFromString(s.price)
		if s.cancel {
			removed := m.CancelOrder(s.contract, s.side, price, s.orderID)
			logger.Info("cancel", zap.Uint64("order_id", s.orderID), zap.Bool("removed", removed))
			continue
		}

		o, trades := m.PlaceOrder(s.userID, s.contract, s.side, price, s.qty)
		logger.Info("order",
			zap.Uint64("id", o.ID),
			zap.String("contract", string(o.Contract)),
			zap.String("side", string(o.Side)),
			zap.String("price", o.Price.StringFixed(2)),
			zap.Uint64("remaining", o.Remaining),
			zap.String("status", string(o.Status)))
		for _, tr := range trades {
			logger.Info("trade",
				zap.Uint64("buy_order_id", tr.BuyOrderID),
				zap.Uint64("sell_order_id", tr.SellOrderID),
				zap.String("contract", string(tr.Contract)),
				zap.String("price", tr.Price.StringFixed(2)),
				zap.Uint64("qty", tr.Quantity))
		}
	}

	for _, c := range []engine.Contract{engine.ContractYes, engine.ContractNo} {
		bid, ask := m.BestPrices(c)
		snap := m.Snapshot(c)
		logger.Info("book",
			zap.String("contract", string(c)),
			zap.String("best_bid", nullString(bid)),
			zap.String("best_ask", nullString(ask)),
			zap.Any("bids", snap.Bids),
			zap.Any("asks", snap.Asks))
	}
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.StringFixed(2)
}
