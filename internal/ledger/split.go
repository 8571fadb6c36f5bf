package ledger

import (
	"errors"
	"fmt"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Split outcome states.
const (
	SplitBalanced = "balanced"
	SplitUnder    = "under"
	SplitOver     = "over"
)

// SplitItem is one requested sub-transaction of a split.
type SplitItem struct {
	Amount       decimal.Decimal
	Category     string
	MerchantName string
	UserNotes    string
}

// SplitValidation is the arithmetic verdict on a proposed split.
// Difference = parent - sub_total; balanced when |difference| is within
// tolerance, under when positive, over when negative.
type SplitValidation struct {
	Status     string
	SubTotal   decimal.Decimal
	Difference decimal.Decimal
}

// IsValid reports whether the split fully accounts for the parent.
func (v SplitValidation) IsValid() bool { return v.Status == SplitBalanced }

// SplitResult is the outcome of a committed split.
type SplitResult struct {
	Subs            []models.SubTransaction
	Validation      SplitValidation
	Replaced        bool     // an earlier split was deleted
	OrphanedLinkIDs []string // refund links that pointed at replaced items
}

// ValidateSplit checks the arithmetic of a proposed split without
// touching the store.
func (e *Engine) ValidateSplit(parentAmount decimal.Decimal, items []SplitItem) SplitValidation {
	subTotal := decimal.Zero
	for _, it := range items {
		subTotal = subTotal.Add(it.Amount)
	}
	diff := parentAmount.Sub(subTotal)

	status := SplitUnder
	switch {
	case diff.Abs().Cmp(e.Set.Tolerance) <= 0:
		status = SplitBalanced
	case diff.IsNegative():
		status = SplitOver
	}
	return SplitValidation{Status: status, SubTotal: subTotal, Difference: diff}
}

// CommitSplit replaces the parent's entire sub-transaction set in one
// store transaction. Over-allocation is always rejected and leaves the
// prior split untouched; under-allocation commits as an incomplete
// split. Refund links pointing at replaced items are reported, never
// deleted.
func (e *Engine) CommitSplit(parentID, userID uint, items []SplitItem) (*SplitResult, error) {
	if n := len(items); n < e.Set.SplitMinCount || n > e.Set.SplitMaxCount {
		return nil, validationf("split needs between %d and %d items, got %d",
			e.Set.SplitMinCount, e.Set.SplitMaxCount, n)
	}
	for i, it := range items {
		if !it.Amount.IsPositive() {
			return nil, validationf("split item %d amount must be positive, got %s", i+1, it.Amount)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var result SplitResult
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		var parent models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", parentID, userID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "transaction", ID: fmt.Sprint(parentID)}
			}
			return fmt.Errorf("load parent: %w", err)
		}

		v := e.ValidateSplit(parent.Amount, items)
		if v.Status == SplitOver {
			return overAllocatedSplit(parent.Amount, v.SubTotal)
		}
		result.Validation = v

		// collect the current set so links to it can be reported
		var old []models.SubTransaction
		if err := tx.Where("transaction_id = ?", parent.ID).Find(&old).Error; err != nil {
			return fmt.Errorf("load existing split: %w", err)
		}
		if len(old) > 0 {
			result.Replaced = true
			oldIDs := make([]string, 0, len(old))
			for _, s := range old {
				oldIDs = append(oldIDs, s.ID)
			}
			var links []models.RefundLink
			if err := tx.Where("original_sub_transaction_id IN ?", oldIDs).Find(&links).Error; err != nil {
				return fmt.Errorf("load links of replaced items: %w", err)
			}
			for _, l := range links {
				result.OrphanedLinkIDs = append(result.OrphanedLinkIDs, l.ID)
			}
			if err := tx.Where("transaction_id = ?", parent.ID).Delete(&models.SubTransaction{}).Error; err != nil {
				return fmt.Errorf("delete existing split: %w", err)
			}
		}

		subs := make([]models.SubTransaction, 0, len(items))
		for i, it := range items {
			subs = append(subs, models.SubTransaction{
				ID:            uuid.NewString(),
				TransactionID: parent.ID,
				Amount:        it.Amount,
				Category:      it.Category,
				MerchantName:  it.MerchantName,
				UserNotes:     it.UserNotes,
				Order:         i,
			})
		}
		if err := tx.Create(&subs).Error; err != nil {
			return fmt.Errorf("insert split: %w", err)
		}
		result.Subs = subs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// VerifySplitItem ensures subID is a current split item of parentID.
func (e *Engine) VerifySplitItem(parentID uint, subID string) error {
	var sub models.SubTransaction
	if err := e.DB.Where("id = ? AND transaction_id = ?", subID, parentID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Resource: "sub-transaction", ID: subID}
		}
		return fmt.Errorf("load split item: %w", err)
	}
	return nil
}

// ClearSplit removes the parent's sub-transaction set entirely.
func (e *Engine) ClearSplit(parentID, userID uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.DB.Transaction(func(tx *gorm.DB) error {
		var parent models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", parentID, userID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "transaction", ID: fmt.Sprint(parentID)}
			}
			return fmt.Errorf("load parent: %w", err)
		}
		if err := tx.Where("transaction_id = ?", parent.ID).Delete(&models.SubTransaction{}).Error; err != nil {
			return fmt.Errorf("clear split: %w", err)
		}
		return nil
	})
}
