package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/config"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/database"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func testConfig() config.ReconcileConfig {
	return config.ReconcileConfig{
		Tolerance:            "0.01",
		SplitMinCount:        2,
		SplitMaxCount:        50,
		LookbackDays:         90,
		SameDayWindowHours:   24,
		MaxAmountRatio:       0.5,
		DefaultMinConfidence: 50,
		MaxSuggestions:       100,
		Weights: config.ScoreWeights{
			Merchant:  0.35,
			Amount:    0.35,
			Time:      0.20,
			Reference: 0.10,
		},
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()

	db, err := database.Init(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "ledger_test.db"),
	})
	if err != nil {
		t.Fatalf("init database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	engine, err := NewEngine(db, testConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	user := models.User{Username: "tester", DisplayName: "Tester"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func seedTxn(t *testing.T, db *gorm.DB, userID uint, direction, amount, merchant string, occurredAt time.Time) *models.Transaction {
	t.Helper()
	txn := models.Transaction{
		UserID:             userID,
		Amount:             dec(t, amount),
		Currency:           "INR",
		Direction:          direction,
		MerchantName:       merchant,
		MerchantNormalized: NormalizeMerchant(merchant),
		OccurredAt:         occurredAt,
	}
	if err := db.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return &txn
}
