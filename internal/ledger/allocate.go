package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LinkRequest describes one allocation of a refund to an original.
// RefundSubTransactionID is set when one item of a split refund is the
// allocation source; its own amount then bounds the allocation as well.
type LinkRequest struct {
	RefundTransactionID    uint
	RefundSubTransactionID *string
	Original               OriginalRef
	Amount                 decimal.Decimal
	MatchMethod            string
	ConfidenceScore        *int
	MatchReasons           []MatchReason
}

// RefundStatus is the live aggregate over an original's refund links.
// Never persisted; recomputed from the link rows on every read.
type RefundStatus struct {
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	TotalRefunded   decimal.Decimal `json:"total_refunded"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	IsFullyRefunded bool            `json:"is_fully_refunded"`
	RefundCount     int             `json:"refund_count"`
}

// Link creates one refund allocation. All remaining-amount checks
// re-read the current link rows inside the transaction, under the
// engine mutex, so two concurrent calls cannot both pass on a stale
// total and over-allocate the original.
func (e *Engine) Link(userID uint, req LinkRequest) (*models.RefundLink, error) {
	if !req.Amount.IsPositive() {
		return nil, validationf("allocated amount must be positive, got %s", req.Amount)
	}
	if req.MatchMethod != models.MatchMethodManual && req.MatchMethod != models.MatchMethodAISuggestion {
		return nil, validationf("unknown match method %q", req.MatchMethod)
	}
	if req.MatchMethod == models.MatchMethodAISuggestion {
		if req.ConfidenceScore == nil || *req.ConfidenceScore < 0 || *req.ConfidenceScore > 100 {
			return nil, validationf("ai_suggestion links need a confidence score between 0 and 100")
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var created models.RefundLink
	err := e.DB.Transaction(func(tx *gorm.DB) error {
		var refund models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", req.RefundTransactionID, userID).First(&refund).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "transaction", ID: fmt.Sprint(req.RefundTransactionID)}
			}
			return fmt.Errorf("load refund: %w", err)
		}
		if refund.Direction != models.DirectionCredit {
			return &MismatchError{Field: "direction", Want: models.DirectionCredit, Got: refund.Direction}
		}

		var refundSub *models.SubTransaction
		if req.RefundSubTransactionID != nil {
			var sub models.SubTransaction
			if err := tx.Where("id = ? AND transaction_id = ?", *req.RefundSubTransactionID, refund.ID).First(&sub).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &NotFoundError{Resource: "sub-transaction", ID: *req.RefundSubTransactionID}
				}
				return fmt.Errorf("load refund sub-transaction: %w", err)
			}
			refundSub = &sub
		}

		orig, err := e.resolveOriginal(tx, userID, refund.ID, req.Original)
		if err != nil {
			return err
		}
		if orig.Currency != refund.Currency {
			return &MismatchError{Field: "currency", Want: refund.Currency, Got: orig.Currency}
		}

		// refund side: the refund (and, for split refunds, each of its
		// items) can never give away more than its own value
		refundSpent, err := sumLinkAmounts(tx, "refund_transaction_id = ?", refund.ID)
		if err != nil {
			return err
		}
		refundRemaining := refund.Amount.Sub(refundSpent)
		if req.Amount.Sub(refundRemaining).Cmp(e.Set.Tolerance) > 0 {
			return allocationExceeds(refundRemaining, req.Amount)
		}
		if refundSub != nil {
			subSpent, err := sumLinkAmounts(tx, "refund_sub_transaction_id = ?", refundSub.ID)
			if err != nil {
				return err
			}
			subRemaining := refundSub.Amount.Sub(subSpent)
			if req.Amount.Sub(subRemaining).Cmp(e.Set.Tolerance) > 0 {
				return allocationExceeds(subRemaining, req.Amount)
			}
		}

		// original side: the conservation check proper. The same money
		// is addressable at the transaction level and at the split-item
		// level, so remaining is bounded by the referenced level AND by
		// the parent's total across the whole family of links.
		allocated, count, err := sumOriginalAllocations(tx, req.Original)
		if err != nil {
			return err
		}
		family, _, err := sumFamilyAllocations(tx, orig.ParentID)
		if err != nil {
			return err
		}
		remaining := orig.Capacity.Sub(allocated)
		if fr := orig.ParentAmount.Sub(family); fr.Cmp(remaining) < 0 {
			remaining = fr
		}
		if remaining.Cmp(e.Set.Tolerance) <= 0 {
			return alreadyFullyRefunded(remaining)
		}
		if req.Amount.Sub(remaining).Cmp(e.Set.Tolerance) > 0 {
			return allocationExceeds(remaining, req.Amount)
		}

		refundType := models.RefundTypePartial
		if count == 0 && req.Amount.Sub(orig.Capacity).Abs().Cmp(e.Set.Tolerance) <= 0 {
			refundType = models.RefundTypeFull
		}

		created = models.RefundLink{
			ID:                     uuid.NewString(),
			UserID:                 userID,
			RefundTransactionID:    refund.ID,
			RefundSubTransactionID: req.RefundSubTransactionID,
			AllocatedAmount:        req.Amount,
			RefundType:             refundType,
			MatchMethod:            req.MatchMethod,
		}
		switch req.Original.Kind {
		case RefTransaction:
			id := req.Original.TransactionID
			created.OriginalType = models.OriginalTypeTransaction
			created.OriginalTransactionID = &id
		case RefSubTransaction:
			id := req.Original.SubTransactionID
			created.OriginalType = models.OriginalTypeSubTransaction
			created.OriginalSubTransactionID = &id
		}
		if req.MatchMethod == models.MatchMethodAISuggestion {
			created.MatchConfidenceScore = req.ConfidenceScore
			if len(req.MatchReasons) > 0 {
				raw, err := json.Marshal(req.MatchReasons)
				if err != nil {
					return fmt.Errorf("marshal match reasons: %w", err)
				}
				created.MatchReasons = string(raw)
			}
		}

		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("insert refund link: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Unlink deletes a refund link. The derived status simply changes on
// the next read; nothing else cascades.
func (e *Engine) Unlink(linkID string, userID uint) error {
	res := e.DB.Where("id = ? AND user_id = ?", linkID, userID).Delete(&models.RefundLink{})
	if res.Error != nil {
		return fmt.Errorf("delete refund link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Resource: "refund link", ID: linkID}
	}
	return nil
}

// Status recomputes the refund aggregate for an original from the
// current link rows. A transaction's aggregate covers links against its
// split items too; a split item reports its own links, with remaining
// clamped by what the family as a whole still has left.
func (e *Engine) Status(userID uint, ref OriginalRef) (*RefundStatus, error) {
	orig, err := e.resolveOriginal(e.DB, userID, 0, ref)
	if err != nil {
		return nil, err
	}
	allocated, count, err := sumOriginalAllocations(e.DB, ref)
	if err != nil {
		return nil, err
	}
	family, familyCount, err := sumFamilyAllocations(e.DB, orig.ParentID)
	if err != nil {
		return nil, err
	}
	if ref.Kind == RefTransaction {
		allocated, count = family, familyCount
	}
	remaining := orig.Capacity.Sub(allocated)
	if fr := orig.ParentAmount.Sub(family); fr.Cmp(remaining) < 0 {
		remaining = fr
	}
	return &RefundStatus{
		OriginalAmount:  orig.Capacity,
		TotalRefunded:   allocated,
		RemainingAmount: remaining,
		IsFullyRefunded: remaining.Cmp(e.Set.Tolerance) <= 0,
		RefundCount:     count,
	}, nil
}

// originalInfo is a resolved original: its own capacity plus the parent
// transaction whose amount bounds the whole family of links.
type originalInfo struct {
	Capacity     decimal.Decimal
	Currency     string
	ParentID     uint
	ParentAmount decimal.Decimal
}

// resolveOriginal loads the referenced original. refundID guards
// against linking a refund to itself; pass 0 when that check does not
// apply.
func (e *Engine) resolveOriginal(tx *gorm.DB, userID, refundID uint, ref OriginalRef) (originalInfo, error) {
	switch ref.Kind {
	case RefTransaction:
		if refundID != 0 && ref.TransactionID == refundID {
			return originalInfo{}, validationf("a refund cannot be linked to itself")
		}
		var orig models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", ref.TransactionID, userID).First(&orig).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return originalInfo{}, &NotFoundError{Resource: "transaction", ID: fmt.Sprint(ref.TransactionID)}
			}
			return originalInfo{}, fmt.Errorf("load original: %w", err)
		}
		if orig.Direction != models.DirectionDebit {
			return originalInfo{}, &MismatchError{Field: "direction", Want: models.DirectionDebit, Got: orig.Direction}
		}
		return originalInfo{
			Capacity:     orig.Amount,
			Currency:     orig.Currency,
			ParentID:     orig.ID,
			ParentAmount: orig.Amount,
		}, nil

	case RefSubTransaction:
		var sub models.SubTransaction
		if err := tx.Where("id = ?", ref.SubTransactionID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// replaced split items land here: sub IDs are never reused
				return originalInfo{}, &NotFoundError{Resource: "sub-transaction", ID: ref.SubTransactionID}
			}
			return originalInfo{}, fmt.Errorf("load original sub-transaction: %w", err)
		}
		var parent models.Transaction
		if err := tx.Where("id = ? AND user_id = ?", sub.TransactionID, userID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return originalInfo{}, &NotFoundError{Resource: "transaction", ID: fmt.Sprint(sub.TransactionID)}
			}
			return originalInfo{}, fmt.Errorf("load original parent: %w", err)
		}
		if refundID != 0 && parent.ID == refundID {
			return originalInfo{}, validationf("a refund cannot be linked to itself")
		}
		if parent.Direction != models.DirectionDebit {
			return originalInfo{}, &MismatchError{Field: "direction", Want: models.DirectionDebit, Got: parent.Direction}
		}
		return originalInfo{
			Capacity:     sub.Amount,
			Currency:     parent.Currency,
			ParentID:     parent.ID,
			ParentAmount: parent.Amount,
		}, nil
	}
	return originalInfo{}, validationf("unknown original reference kind %d", ref.Kind)
}

// sumLinkAmounts loads the matching link rows and sums them in Go;
// the row set is the single source of truth, so no cached aggregate is
// ever trusted.
func sumLinkAmounts(tx *gorm.DB, query string, args ...any) (decimal.Decimal, error) {
	var links []models.RefundLink
	if err := tx.Where(query, args...).Find(&links).Error; err != nil {
		return decimal.Zero, fmt.Errorf("load refund links: %w", err)
	}
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.AllocatedAmount)
	}
	return total, nil
}

// sumFamilyAllocations totals every link against a parent transaction
// and its current split items. Links orphaned by a replaced split point
// at deleted items and no longer count against the family.
func sumFamilyAllocations(tx *gorm.DB, parentID uint) (decimal.Decimal, int, error) {
	var subIDs []string
	if err := tx.Model(&models.SubTransaction{}).
		Where("transaction_id = ?", parentID).
		Pluck("id", &subIDs).Error; err != nil {
		return decimal.Zero, 0, fmt.Errorf("load split items: %w", err)
	}

	var links []models.RefundLink
	q := tx.Where("original_transaction_id = ?", parentID)
	if len(subIDs) > 0 {
		q = tx.Where("original_transaction_id = ? OR original_sub_transaction_id IN ?", parentID, subIDs)
	}
	if err := q.Find(&links).Error; err != nil {
		return decimal.Zero, 0, fmt.Errorf("load refund links: %w", err)
	}
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.AllocatedAmount)
	}
	return total, len(links), nil
}

func sumOriginalAllocations(tx *gorm.DB, ref OriginalRef) (decimal.Decimal, int, error) {
	var links []models.RefundLink
	var err error
	switch ref.Kind {
	case RefTransaction:
		err = tx.Where("original_transaction_id = ?", ref.TransactionID).Find(&links).Error
	case RefSubTransaction:
		err = tx.Where("original_sub_transaction_id = ?", ref.SubTransactionID).Find(&links).Error
	default:
		return decimal.Zero, 0, validationf("unknown original reference kind %d", ref.Kind)
	}
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("load refund links: %w", err)
	}
	total := decimal.Zero
	for _, l := range links {
		total = total.Add(l.AllocatedAmount)
	}
	return total, len(links), nil
}
