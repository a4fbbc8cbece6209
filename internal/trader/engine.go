// Package trader evaluates one symbol per cycle: it pulls fresh market
// data, recovers the open position from the ledger, and turns the reversal
// signal plus support/resistance into a buy, sell, or hold.
package trader

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"meanrev-bot/internal/audit"
	"meanrev-bot/internal/events"
	"meanrev-bot/internal/notify"
	"meanrev-bot/internal/signal"
	"meanrev-bot/pkg/config"
	"meanrev-bot/pkg/db"
	"meanrev-bot/pkg/market/binance"
)

// MarketData is the exchange surface the engine consumes.
type MarketData interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]binance.Kline, error)
	FreeBalance(ctx context.Context, asset string) (float64, error)
	MarketOrder(ctx context.Context, symbol, side string, quantity float64) (binance.Fill, error)
}

// Ledger is the slice of the trade store the engine reads and writes. It is
// the only source of truth for open positions; the engine keeps no position
// state between cycles.
type Ledger interface {
	LatestOpenBuy(ctx context.Context, symbol string) (*db.Trade, error)
	RecordBuy(ctx context.Context, t db.Trade) (int64, error)
	RecordSell(ctx context.Context, sell db.Trade, closesID int64) error
}

// Engine runs the per-symbol trading decision.
type Engine struct {
	Market   MarketData
	Ledger   Ledger
	Log      *audit.Logger
	Notifier notify.Sink
	Bus      *events.Bus

	Mode            string // config.ModeSimulated or config.ModeLive
	QuoteAsset      string
	PrimaryInterval string
	SupportInterval string
	KlineLimit      int
	Params          config.Strategy
}

// evaluation is the per-symbol, per-cycle state, assembled fresh each call.
type evaluation struct {
	token  string
	symbol string

	klines    []binance.Kline
	lastPrice float64

	usableBalance float64 // quote balance after the safety margin
	buyQuantity   float64
	baseBalance   float64

	openTrade       *db.Trade
	targetSellPrice float64

	// inert marks a symbol whose balance or position lookup failed this
	// cycle; it may neither buy nor sell until the next pass.
	inert bool
}

// EvaluateSymbol runs one full decision cycle for a portfolio token.
// Returned errors cover market-data and signal failures; order and ledger
// problems are logged at this symbol's scope and never propagate.
func (e *Engine) EvaluateSymbol(ctx context.Context, token string) error {
	ev := &evaluation{
		token:           token,
		symbol:          token + e.QuoteAsset,
		targetSellPrice: math.Inf(1),
	}

	klines, err := e.Market.Klines(ctx, ev.symbol, e.PrimaryInterval, e.KlineLimit)
	if err != nil {
		return fmt.Errorf("fetch %s %s klines: %w", ev.symbol, e.PrimaryInterval, err)
	}
	if len(klines) == 0 {
		return fmt.Errorf("fetch %s %s klines: %w", ev.symbol, e.PrimaryInterval, signal.ErrInsufficientData)
	}
	ev.klines = klines
	ev.lastPrice = klines[len(klines)-1].Close

	e.setup(ctx, ev)

	entry, err := signal.Entry(ev.klines, e.Params.EMAWindow)
	if err != nil {
		return fmt.Errorf("%s entry signal: %w", ev.symbol, err)
	}
	if exit, err := signal.Exit(ev.klines, e.Params.EMAWindow); err == nil && exit && ev.openTrade != nil {
		// Advisory only; the sell is gated on the price target below.
		e.Log.Info("%s exit signal active at %v", ev.symbol, ev.lastPrice)
	}

	supportKlines, err := e.Market.Klines(ctx, ev.symbol, e.SupportInterval, e.KlineLimit)
	if err != nil {
		return fmt.Errorf("fetch %s %s klines: %w", ev.symbol, e.SupportInterval, err)
	}
	support, resistance, err := signal.SupportResistance(supportKlines)
	if err != nil {
		return fmt.Errorf("%s support/resistance: %w", ev.symbol, err)
	}

	switch {
	case !ev.inert && ev.openTrade == nil && entry && ev.lastPrice > support && ev.lastPrice < e.Params.ResistanceCap*resistance:
		e.placeBuyOrder(ctx, ev)
	case !ev.inert && ev.lastPrice > ev.targetSellPrice:
		e.placeSellOrder(ctx, ev)
	}

	// Heartbeat: written every cycle, order or not, as liveness evidence.
	e.Log.Info("Checked %s. Price: %v Target: %v", ev.token, ev.lastPrice, ev.targetSellPrice)
	return nil
}

// setup gathers balances and recovers the open position from the ledger.
// Any failure here makes the symbol inert for this cycle instead of
// aborting the pass: buys see zero usable balance, sells see an
// unreachable target.
func (e *Engine) setup(ctx context.Context, ev *evaluation) {
	free, err := e.Market.FreeBalance(ctx, e.QuoteAsset)
	if err != nil {
		e.Log.Error("%s init error: %v", ev.symbol, err)
		ev.inert = true
		return
	}

	margin := decimal.NewFromFloat(e.Params.BalanceMargin)
	usable := decimal.NewFromFloat(free).Mul(margin)
	ev.usableBalance, _ = usable.Float64()
	if ev.lastPrice > 0 {
		price := decimal.NewFromFloat(ev.lastPrice)
		ev.buyQuantity, _ = usable.Div(price).Floor().Float64()
	}

	base, err := e.Market.FreeBalance(ctx, ev.token)
	if err != nil {
		e.Log.Error("%s init error: %v", ev.symbol, err)
		ev.inert = true
		return
	}
	ev.baseBalance = base

	open, err := e.Ledger.LatestOpenBuy(ctx, ev.symbol)
	if err != nil {
		e.Log.Error("%s init error: %v", ev.symbol, err)
		ev.inert = true
		return
	}
	if open != nil {
		ev.openTrade = open
		ev.targetSellPrice = open.Price * e.Params.ProfitTarget
		if ev.baseBalance < open.Quantity {
			// Position is sized from the ledger, not the wallet; flag a
			// wallet that cannot cover it before a sell bounces.
			e.Log.Warning("%s wallet balance %v below open position %v", ev.symbol, ev.baseBalance, open.Quantity)
		}
	}
}

// placeBuyOrder executes a market buy and appends the OPEN trade. The
// ledger is written only after a confirmed fill.
func (e *Engine) placeBuyOrder(ctx context.Context, ev *evaluation) {
	if ev.usableBalance < e.Params.MinQuoteBalance {
		e.Log.Warning("%s Buy skipped. Low Balance", ev.symbol)
		return
	}
	if ev.buyQuantity <= 0 {
		e.Log.Warning("%s Buy skipped. Quantity rounds to zero at price %v", ev.symbol, ev.lastPrice)
		return
	}

	fill, err := e.execute(ctx, ev, db.SideBuy, ev.buyQuantity)
	if err != nil {
		e.Log.Error("%s Buy Error: %v", ev.symbol, err)
		return
	}

	trade := db.Trade{
		Symbol:   ev.symbol,
		Side:     db.SideBuy,
		Price:    fill.Price,
		Quantity: fill.Quantity,
		Status:   db.StatusOpen,
	}
	id, err := e.Ledger.RecordBuy(ctx, trade)
	if err != nil {
		// The order filled but the ledger write failed; keep the full
		// fill in the error log so it can be reconciled by hand.
		e.Log.Error("%s Buy filled but not recorded: price=%v qty=%v err=%v", ev.symbol, fill.Price, fill.Quantity, err)
		return
	}
	trade.ID = id

	e.Log.Success("%s Buy Executed at %v", ev.symbol, fill.Price)
	e.publish(trade)
	e.notify(fmt.Sprintf("BUY %s at %v", ev.symbol, fill.Price))
}

// placeSellOrder sells the quantity recorded on the open buy and closes it
// together with the SELL insert in one transaction.
func (e *Engine) placeSellOrder(ctx context.Context, ev *evaluation) {
	open := ev.openTrade
	if open == nil {
		return // target is +Inf when flat, so this should be unreachable
	}

	fill, err := e.execute(ctx, ev, db.SideSell, open.Quantity)
	if err != nil {
		e.Log.Error("%s Sell Error: %v", ev.symbol, err)
		return
	}

	sell := db.Trade{
		Symbol:   ev.symbol,
		Side:     db.SideSell,
		Price:    fill.Price,
		Quantity: fill.Quantity,
		Status:   db.StatusClosed,
	}
	if err := e.Ledger.RecordSell(ctx, sell, open.ID); err != nil {
		e.Log.Error("%s Sell filled but not recorded: closes=%d price=%v qty=%v err=%v",
			ev.symbol, open.ID, fill.Price, fill.Quantity, err)
		return
	}

	e.Log.Success("%s Sell Executed at %v", ev.symbol, fill.Price)
	e.publish(sell)
	e.notify(fmt.Sprintf("SELL %s at %v", ev.symbol, fill.Price))
}

// execute submits exactly one order. In SIMULATED mode the fill is
// synthesized at the last close; LIVE mode goes to the exchange.
func (e *Engine) execute(ctx context.Context, ev *evaluation, side string, quantity float64) (binance.Fill, error) {
	if e.Mode == config.ModeLive {
		return e.Market.MarketOrder(ctx, ev.symbol, side, quantity)
	}
	return binance.Fill{Price: ev.lastPrice, Quantity: quantity}, nil
}

func (e *Engine) publish(t db.Trade) {
	if e.Bus != nil {
		e.Bus.Publish(events.EventTradeExecuted, t)
	}
}

// notify is fire-and-forget: a failed delivery is logged and swallowed.
func (e *Engine) notify(text string) {
	if e.Notifier == nil {
		return
	}
	if err := e.Notifier.Send(text); err != nil {
		e.Log.Error("Telegram error: %v", err)
	}
}
