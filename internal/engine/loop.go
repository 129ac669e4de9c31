package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/hakimelghazi/binary-exchange/internal/util"
)

var ErrEngineStopped = errors.New("engine stopped")

// journalTimeout bounds one RecordTrades call. The write does not inherit
// Run's ctx.
const journalTimeout = 5 * time.Second

// TradeRecorder persists the trades of one placement. Failures are logged and
// never undo the match.
type TradeRecorder interface {
	RecordTrades(ctx context.Context, trades []Trade) error
}

// TradeListener is notified of every non-empty batch of trades from the
// engine goroutine. Implementations must not block.
type TradeListener interface {
	OnTrades(trades []Trade)
}

// Engine serializes all access to a MatchingEngine through one goroutine.
type Engine struct {
	matcher *MatchingEngine
	cmds    chan Command
	done    chan struct{}

	recorder  TradeRecorder
	listeners []TradeListener
	log       *zap.Logger
}

func NewEngine(buffer int, matcher *MatchingEngine, recorder TradeRecorder, logger *zap.Logger, listeners ...TradeListener) *Engine {
	if matcher == nil {
		matcher = NewMatchingEngine()
	}
	return &Engine{
		matcher:   matcher,
		cmds:      make(chan Command, buffer),
		done:      make(chan struct{}),
		recorder:  recorder,
		listeners: listeners,
		log:       util.OrNop(logger),
	}
}

// Run processes commands until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case cmd := <-e.cmds:
			switch cmd.Type {

			case CmdPlace:
				req := cmd.Place
				order, trades := e.matcher.PlaceOrder(req.UserID, req.Contract, req.Side, req.Price, req.Quantity)

				if len(trades) > 0 {
					e.recordTrades(order.ID, trades)
					for _, l := range e.listeners {
						l.OnTrades(trades)
					}
				}

				cmd.Resp <- &PlaceResult{Order: order, Trades: trades}

			case CmdCancel:
				req := cmd.Cancel
				cmd.Resp <- e.matcher.CancelOrder(req.Contract, req.Side, req.Price, req.OrderID)

			case CmdBook:
				cmd.Resp <- e.bookView(cmd.Contract)
			}

		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) recordTrades(orderID uint64, trades []Trade) {
	if e.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := e.recorder.RecordTrades(ctx, trades); err != nil {
		e.log.Error("persist_trades_failed",
			zap.Uint64("order_id", orderID),
			zap.Int("trades", len(trades)),
			zap.Error(err))
	}
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) bookView(c Contract) *BookView {
	view := &BookView{Contract: c, Bids: []Level{}, Asks: []Level{}}
	book := e.matcher.Book(c)
	if book == nil {
		return view
	}
	view.BestBid, view.BestAsk = e.matcher.BestPrices(c)
	view.Bids = book.Levels(SideBuy)
	view.Asks = book.Levels(SideSell)
	return view
}

func (e *Engine) Place(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	resp, err := e.submit(ctx, Command{Type: CmdPlace, Place: req})
	if err != nil {
		return nil, err
	}
	return resp.(*PlaceResult), nil
}

func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (bool, error) {
	resp, err := e.submit(ctx, Command{Type: CmdCancel, Cancel: req})
	if err != nil {
		return false, err
	}
	return resp.(bool), nil
}

func (e *Engine) Book(ctx context.Context, c Contract) (*BookView, error) {
	resp, err := e.submit(ctx, Command{Type: CmdBook, Contract: c})
	if err != nil {
		return nil, err
	}
	return resp.(*BookView), nil
}

// submit hands cmd to the engine goroutine and waits for the answer. A command
// that was accepted runs to completion even if ctx expires while waiting.
func (e *Engine) submit(ctx context.Context, cmd Command) (any, error) {
	cmd.Resp = make(chan any, 1)

	select {
	case e.cmds <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrEngineStopped
	}

	select {
	case resp := <-cmd.Resp:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		// Run may have answered just before returning
		select {
		case resp := <-cmd.Resp:
			return resp, nil
		default:
			return nil, ErrEngineStopped
		}
	}
}
