// Package ledger implements the reconciliation core: transaction splits,
// refund match scoring, refund suggestions and the allocation ledger that
// keeps money conserved across all of them.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/config"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settings are the parsed reconcile tunables. Built once from config at
// startup; everything downstream treats it as read-only.
type Settings struct {
	Tolerance            decimal.Decimal
	SplitMinCount        int
	SplitMaxCount        int
	Lookback             time.Duration
	SameDayWindow        time.Duration
	MaxAmountRatio       float64
	DefaultMinConfidence int
	MaxSuggestions       int
	Weights              config.ScoreWeights
}

// SettingsFromConfig parses and sanity-checks the reconcile section.
func SettingsFromConfig(cfg config.ReconcileConfig) (Settings, error) {
	tol, err := decimal.NewFromString(cfg.Tolerance)
	if err != nil {
		return Settings{}, fmt.Errorf("parse tolerance %q: %w", cfg.Tolerance, err)
	}
	if tol.IsNegative() {
		return Settings{}, fmt.Errorf("tolerance must not be negative, got %s", tol)
	}
	if cfg.SplitMinCount < 2 || cfg.SplitMaxCount < cfg.SplitMinCount {
		return Settings{}, fmt.Errorf("invalid split count bounds [%d, %d]", cfg.SplitMinCount, cfg.SplitMaxCount)
	}
	if cfg.LookbackDays <= 0 {
		return Settings{}, fmt.Errorf("lookback_days must be positive, got %d", cfg.LookbackDays)
	}
	if cfg.MaxAmountRatio <= 0 {
		return Settings{}, fmt.Errorf("max_amount_ratio must be positive, got %f", cfg.MaxAmountRatio)
	}
	w := cfg.Weights
	sum := w.Merchant + w.Amount + w.Time + w.Reference
	if sum < 0.999 || sum > 1.001 {
		return Settings{}, fmt.Errorf("score weights must sum to 1, got %f", sum)
	}

	return Settings{
		Tolerance:            tol,
		SplitMinCount:        cfg.SplitMinCount,
		SplitMaxCount:        cfg.SplitMaxCount,
		Lookback:             time.Duration(cfg.LookbackDays) * 24 * time.Hour,
		SameDayWindow:        time.Duration(cfg.SameDayWindowHours) * time.Hour,
		MaxAmountRatio:       cfg.MaxAmountRatio,
		DefaultMinConfidence: cfg.DefaultMinConfidence,
		MaxSuggestions:       cfg.MaxSuggestions,
		Weights:              w,
	}, nil
}

// Engine ties the split, suggestion and allocation operations to the
// store. Link and CommitSplit serialize through mu so that no two
// writers can both pass a remaining-amount check on stale reads; every
// check still re-reads inside its own gorm transaction.
type Engine struct {
	DB     *gorm.DB
	Set    Settings
	Scorer Scorer

	mu sync.Mutex
}

// NewEngine builds the reconciliation engine from raw config.
func NewEngine(db *gorm.DB, cfg config.ReconcileConfig) (*Engine, error) {
	set, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("reconcile settings: %w", err)
	}
	return &Engine{
		DB:     db,
		Set:    set,
		Scorer: Scorer{Set: set},
	}, nil
}
