package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hakimelghazi/binary-exchange/internal/engine"
	"github.com/hakimelghazi/binary-exchange/internal/quotes"
	"github.com/hakimelghazi/binary-exchange/internal/store"
	"github.com/hakimelghazi/binary-exchange/internal/util"
)

// TradeLister reads journaled trades. store.TradeStore implements it.
type TradeLister interface {
	ListTradesByOrder(ctx context.Context, orderID uint64) ([]store.TradeRow, error)
}

type Options struct {
	Engine *engine.Engine
	Trades TradeLister // nil: GET /trades answers 503
	Quotes *quotes.PriceCache
	Hub    *Hub
	Logger *zap.Logger

	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server exposes the engine over HTTP and websocket.
type Server struct {
	eng     *engine.Engine
	trades  TradeLister
	quotes  *quotes.PriceCache
	hub     *Hub
	log     *zap.Logger
	handler http.Handler
}

func NewServer(opts Options) *Server {
	s := &Server{
		eng:    opts.Engine,
		trades: opts.Trades,
		quotes: opts.Quotes,
		hub:    opts.Hub,
		log:    util.OrNop(opts.Logger),
	}
	if s.quotes == nil {
		s.quotes = quotes.NewPriceCache()
	}
	if s.hub == nil {
		s.hub = NewHub(s.log)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		r.Post("/orders", s.handlePlaceOrder)
		r.Delete("/orders/{id}", s.handleCancelOrder)
		r.Get("/books/{contract}", s.handleGetBook)
		r.Get("/quotes", s.handleGetQuotes)
		r.Get("/trades", s.handleGetTrades)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	s.handler = c.Handler(r)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api_server_starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, title, detail string) {
	reqID := middleware.GetReqID(r.Context())
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":      title,
		"status":     code,
		"detail":     detail,
		"instance":   r.URL.Path,
		"request_id": reqID,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// engineProblem maps a failed engine call to a problem response.
func (s *Server) engineProblem(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrEngineStopped):
		writeProblem(w, r, http.StatusServiceUnavailable, "engine_stopped", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeProblem(w, r, http.StatusGatewayTimeout, "engine_timeout", err.Error())
	default:
		s.log.Error("engine_call_failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeProblem(w, r, http.StatusInternalServerError, "engine_error", err.Error())
	}
}

// POST /orders
func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	placeReq, err := toPlaceRequest(req)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	res, err := s.eng.Place(r.Context(), placeReq)
	if err != nil {
		s.engineProblem(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.Order.Status == engine.StatusRejected {
		code = http.StatusOK
	} else {
		w.Header().Set("Location", "/orders/"+strconv.FormatUint(res.Order.ID, 10))
	}
	writeJSON(w, r, code, orderCreateResponse{
		Order:      res.Order,
		Trades:     res.Trades,
		RequestID:  middleware.GetReqID(r.Context()),
		ReceivedAt: time.Now().UTC(),
	})
}

// toPlaceRequest checks the shape of the request. Price range and quantity
// are left to the engine, which rejects in-band.
func toPlaceRequest(req placeOrderRequest) (engine.PlaceRequest, error) {
	contract, err := engine.ParseContract(req.Contract)
	if err != nil {
		return engine.PlaceRequest{}, err
	}
	side, err := engine.ParseSide(req.Side)
	if err != nil {
		return engine.PlaceRequest{}, err
	}
	return engine.PlaceRequest{
		UserID:   req.UserID,
		Contract: contract,
		Side:     side,
		Price:    req.Price,
		Quantity: req.Quantity,
	}, nil
}

// DELETE /orders/{id}?contract=YES&side=BUY&price=7.30
func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "invalid order id")
		return
	}
	q := r.URL.Query()
	contract, err := engine.ParseContract(q.Get("contract"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	side, err := engine.ParseSide(q.Get("side"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	price, err := decimal.NewFromString(strings.TrimSpace(q.Get("price")))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "invalid price")
		return
	}

	if _, err := s.eng.Cancel(r.Context(), engine.CancelRequest{
		Contract: contract,
		Side:     side,
		Price:    price,
		OrderID:  id,
	}); err != nil {
		s.engineProblem(w, r, err)
		return
	}
	// idempotent: unknown or already filled orders answer the same way
	w.Header().Set("X-Request-ID", middleware.GetReqID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// GET /books/{contract}
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	contract, err := engine.ParseContract(chi.URLParam(r, "contract"))
	if err != nil {
		writeProblem(w, r, http.StatusNotFound, "not_found", err.Error())
		return
	}
	view, err := s.eng.Book(r.Context(), contract)
	if err != nil {
		s.engineProblem(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// GET /quotes
func (s *Server) handleGetQuotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, quotesResponse{Prices: s.quotes.All()})
}

// GET /trades?order_id=...
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	if s.trades == nil {
		writeProblem(w, r, http.StatusServiceUnavailable, "journal_disabled", "trade journal is not configured")
		return
	}
	raw := r.URL.Query().Get("order_id")
	if raw == "" {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "order_id required")
		return
	}
	orderID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "validation_error", "invalid order_id")
		return
	}

	rows, err := s.trades.ListTradesByOrder(r.Context(), orderID)
	if err != nil {
		s.log.Error("list_trades_failed", zap.Uint64("order_id", orderID), zap.Error(err))
		writeProblem(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, rows)
}
