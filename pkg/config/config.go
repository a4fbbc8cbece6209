package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the bot.
type Config struct {
	Port string

	// Binance
	BinanceTestnet   bool
	BinanceAPIKey    string
	BinanceAPISecret string

	// Portfolio / strategy cadence
	Portfolio       []string // base tokens, e.g. ADA,PHB,FET
	QuoteAsset      string   // quote currency the bot trades against
	PrimaryInterval string   // kline interval for the entry signal
	SupportInterval string   // kline interval for support/resistance
	KlineLimit      int      // candles fetched per request

	SymbolDelay   time.Duration // pause between symbols in a pass
	CycleDelay    time.Duration // pause after a full portfolio pass
	IdlePoll      time.Duration // poll interval while stopped
	ErrorCooldown time.Duration // backoff after a cycle-level failure

	AutoStart bool // start trading on boot instead of waiting for /start

	// Execution
	ExecutionMode string // SIMULATED or LIVE

	// Telegram notifications
	TelegramBotToken string
	TelegramChatID   string

	// Database
	DBPath string

	// Strategy parameter file
	PortfolioPath string
}

// Modes accepted for EXECUTION_MODE.
const (
	ModeSimulated = "SIMULATED"
	ModeLive      = "LIVE"
)

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	mode := strings.ToUpper(getEnv("EXECUTION_MODE", ModeSimulated))
	if mode != ModeLive {
		mode = ModeSimulated
	}

	return &Config{
		Port:             getEnv("PORT", "8080"),
		BinanceTestnet:   getEnv("BINANCE_TESTNET", "false") == "true",
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		Portfolio:        splitAndTrim(getEnv("PORTFOLIO", "ADA,PHB,FET")),
		QuoteAsset:       getEnv("QUOTE_ASSET", "USDT"),
		PrimaryInterval:  getEnv("PRIMARY_INTERVAL", "1m"),
		SupportInterval:  getEnv("SUPPORT_INTERVAL", "30m"),
		KlineLimit:       getEnvInt("KLINE_LIMIT", 500),
		SymbolDelay:      getEnvDuration("SYMBOL_DELAY", 5*time.Second),
		CycleDelay:       getEnvDuration("CYCLE_DELAY", 50*time.Second),
		IdlePoll:         getEnvDuration("IDLE_POLL", 2*time.Second),
		ErrorCooldown:    getEnvDuration("ERROR_COOLDOWN", 30*time.Second),
		AutoStart:        getEnv("AUTO_START", "false") == "true",
		ExecutionMode:    mode,
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
		DBPath:           getEnv("DB_PATH", "./data/bot.db"),
		PortfolioPath:    getEnv("PORTFOLIO_PATH", "portfolio.yaml"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
