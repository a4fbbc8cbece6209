package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"meanrev-bot/internal/api"
	"meanrev-bot/internal/audit"
	"meanrev-bot/internal/bot"
	"meanrev-bot/internal/events"
	"meanrev-bot/internal/notify"
	"meanrev-bot/internal/trader"
	"meanrev-bot/pkg/config"
	"meanrev-bot/pkg/db"
	"meanrev-bot/pkg/market/binance"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	bus := events.NewBus()
	auditLog := audit.New(database, bus)

	// Optional YAML overrides for the portfolio and strategy tuning.
	params := config.DefaultStrategy()
	portfolio := cfg.Portfolio
	if p, err := config.LoadPortfolio(cfg.PortfolioPath); err != nil {
		log.Printf("portfolio file not loaded, using defaults: %v", err)
	} else {
		params = p.Strategy
		if len(p.Tokens) > 0 {
			portfolio = p.Tokens
		}
	}

	var notifier notify.Sink = notify.Noop{}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier = notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
		log.Println("telegram notifications enabled")
	}

	market := binance.NewClient(cfg.BinanceAPIKey, cfg.BinanceAPISecret, cfg.BinanceTestnet)

	engine := &trader.Engine{
		Market:          market,
		Ledger:          database,
		Log:             auditLog,
		Notifier:        notifier,
		Bus:             bus,
		Mode:            cfg.ExecutionMode,
		QuoteAsset:      cfg.QuoteAsset,
		PrimaryInterval: cfg.PrimaryInterval,
		SupportInterval: cfg.SupportInterval,
		KlineLimit:      cfg.KlineLimit,
		Params:          params,
	}

	loop := &bot.Loop{
		Eval:          engine,
		Log:           auditLog,
		Bus:           bus,
		Portfolio:     portfolio,
		SymbolDelay:   cfg.SymbolDelay,
		CycleDelay:    cfg.CycleDelay,
		IdlePoll:      cfg.IdlePoll,
		ErrorCooldown: cfg.ErrorCooldown,
	}
	if cfg.AutoStart {
		loop.Start()
	}
	go loop.Run(ctx)

	log.Printf("mode=%s portfolio=%v primary=%s support=%s",
		cfg.ExecutionMode, portfolio, cfg.PrimaryInterval, cfg.SupportInterval)

	server := api.NewServer(database, loop, bus, portfolio)
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			log.Fatalf("api server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
