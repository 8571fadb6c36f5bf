package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/config"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/database"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/ledger"
	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func testEngine(t *testing.T) *ledger.Engine {
	t.Helper()

	db, err := database.Init(config.DatabaseConfig{
		Path: filepath.Join(t.TempDir(), "handler_test.db"),
	})
	if err != nil {
		t.Fatalf("init database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	engine, err := ledger.NewEngine(db, config.ReconcileConfig{
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
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func seedDebit(t *testing.T, e *ledger.Engine, userID uint, amount string) *models.Transaction {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("parse amount %q: %v", amount, err)
	}
	txn := models.Transaction{
		UserID:       userID,
		Amount:       amt,
		Currency:     "INR",
		Direction:    models.DirectionDebit,
		MerchantName: "Croma",
		OccurredAt:   time.Now(),
	}
	if err := e.DB.Create(&txn).Error; err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	return &txn
}

// TestRefundStatus_SubMustBelongToPathTransaction: asking for a split
// item's status under a different transaction's path is a 404, never an
// answer for the unrelated item.
func TestRefundStatus_SubMustBelongToPathTransaction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	e := testEngine(t)

	user := models.User{Username: "tester"}
	if err := e.DB.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	parent := seedDebit(t, e, user.ID, "300.00")
	other := seedDebit(t, e, user.ID, "300.00")

	split, err := e.CommitSplit(parent.ID, user.ID, []ledger.SplitItem{
		{Amount: decimal.NewFromInt(100)},
		{Amount: decimal.NewFromInt(200)},
	})
	if err != nil {
		t.Fatalf("CommitSplit: %v", err)
	}
	sub := split.Subs[0]

	r := gin.New()
	h := NewRefundHandler(e)
	r.GET("/api/transactions/:id/refunds/status", func(c *gin.Context) {
		c.Set("currentUser", &user)
	}, h.Status)

	get := func(txnID uint, subID string) *httptest.ResponseRecorder {
		url := fmt.Sprintf("/api/transactions/%d/refunds/status?sub_transaction_id=%s", txnID, subID)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, url, nil)
		r.ServeHTTP(w, req)
		return w
	}

	if w := get(parent.ID, sub.ID); w.Code != http.StatusOK {
		t.Errorf("own item status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w := get(other.ID, sub.ID); w.Code != http.StatusNotFound {
		t.Errorf("unrelated path transaction status = %d, want 404: %s", w.Code, w.Body.String())
	}
}
