package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Strategy holds the mean-reversion tuning knobs.
type Strategy struct {
	EMAWindow       int     `yaml:"ema_window"`        // short EMA window for the reversal signal
	BalanceMargin   float64 `yaml:"balance_margin"`    // fraction of quote balance considered usable
	MinQuoteBalance float64 `yaml:"min_quote_balance"` // below this, buys are skipped as dust
	ProfitTarget    float64 `yaml:"profit_target"`     // sell target multiple over entry price
	ResistanceCap   float64 `yaml:"resistance_cap"`    // entries blocked above this fraction of resistance
}

// Portfolio is the YAML strategy-parameter file.
type Portfolio struct {
	Tokens   []string `yaml:"tokens"`
	Strategy Strategy `yaml:"strategy"`
}

// DefaultStrategy returns the deployed production parameters.
func DefaultStrategy() Strategy {
	return Strategy{
		EMAWindow:       3,
		BalanceMargin:   0.97,
		MinQuoteBalance: 1.5,
		ProfitTarget:    1.02,
		ResistanceCap:   0.95,
	}
}

// LoadPortfolio reads tokens and strategy parameters from a YAML file.
// Missing fields fall back to DefaultStrategy.
func LoadPortfolio(path string) (*Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p := Portfolio{Strategy: DefaultStrategy()}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse portfolio file: %w", err)
	}
	if p.Strategy.EMAWindow <= 0 {
		p.Strategy.EMAWindow = DefaultStrategy().EMAWindow
	}
	return &p, nil
}
