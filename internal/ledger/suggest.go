package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RefundSuggestion is one ranked candidate original for a refund.
// Transient: recomputed on every call, never persisted.
type RefundSuggestion struct {
	CandidateID         string          `json:"candidate_id"`
	IsSubTransaction    bool            `json:"is_sub_transaction"`
	ParentTransactionID uint            `json:"parent_transaction_id,omitempty"`
	MerchantName        string          `json:"merchant_name"`
	Amount              decimal.Decimal `json:"amount"`
	Currency            string          `json:"currency"`
	OccurredAt          time.Time       `json:"occurred_at"`
	ConfidenceScore     int             `json:"confidence_score"`
	Band                string          `json:"band"`
	Scores              FactorScores    `json:"scores"`
	MatchReasons        []MatchReason   `json:"match_reasons"`

	ref OriginalRef
}

// Ref returns the original reference this suggestion points at, for
// feeding straight into Link.
func (s RefundSuggestion) Ref() OriginalRef { return s.ref }

type scoredCandidate struct {
	suggestion RefundSuggestion
	timeDiff   time.Duration
	amountDiff decimal.Decimal
}

// Suggest ranks candidate originals for a refund. Read-only: every call
// recomputes from the current ledger, so results shift as links and
// splits change. minConfidence < 0 falls back to the configured
// default; limit is capped by MaxSuggestions.
func (e *Engine) Suggest(refundID, userID uint, minConfidence, limit int) ([]RefundSuggestion, error) {
	if minConfidence < 0 {
		minConfidence = e.Set.DefaultMinConfidence
	}
	if limit <= 0 || limit > e.Set.MaxSuggestions {
		limit = e.Set.MaxSuggestions
	}

	var refund models.Transaction
	if err := e.DB.Where("id = ? AND user_id = ?", refundID, userID).First(&refund).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "transaction", ID: fmt.Sprint(refundID)}
		}
		return nil, fmt.Errorf("load refund: %w", err)
	}
	if refund.Direction != models.DirectionCredit {
		return nil, &MismatchError{Field: "direction", Want: models.DirectionCredit, Got: refund.Direction}
	}
	refundSubject := subjectOf(&refund)

	// bounded retrieval: same user and currency, debit only, inside the
	// lookback window, never the refund itself
	windowStart := refund.OccurredAt.Add(-e.Set.Lookback)
	var parents []models.Transaction
	if err := e.DB.
		Where("user_id = ? AND direction = ? AND currency = ? AND id <> ?",
			userID, models.DirectionDebit, refund.Currency, refund.ID).
		Where("occurred_at >= ? AND occurred_at <= ?", windowStart, refund.OccurredAt).
		Find(&parents).Error; err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(parents) == 0 {
		return []RefundSuggestion{}, nil
	}

	parentIDs := make([]uint, 0, len(parents))
	for _, p := range parents {
		parentIDs = append(parentIDs, p.ID)
	}

	var subs []models.SubTransaction
	if err := e.DB.Where("transaction_id IN ?", parentIDs).Order("transaction_id, sort_order").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("load candidate sub-transactions: %w", err)
	}
	subsByParent := make(map[uint][]models.SubTransaction)
	for _, s := range subs {
		subsByParent[s.TransactionID] = append(subsByParent[s.TransactionID], s)
	}

	var links []models.RefundLink
	if err := e.DB.Where("user_id = ?", userID).Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load refund links: %w", err)
	}
	allocatedByTxn := make(map[uint]decimal.Decimal)
	allocatedBySub := make(map[string]decimal.Decimal)
	linkedByThisRefund := make(map[string]bool) // keyed by OriginalRef.String()
	for _, l := range links {
		switch {
		case l.OriginalTransactionID != nil:
			id := *l.OriginalTransactionID
			allocatedByTxn[id] = allocatedByTxn[id].Add(l.AllocatedAmount)
			if l.RefundTransactionID == refund.ID {
				linkedByThisRefund[TransactionRef(id).String()] = true
			}
		case l.OriginalSubTransactionID != nil:
			id := *l.OriginalSubTransactionID
			allocatedBySub[id] = allocatedBySub[id].Add(l.AllocatedAmount)
			if l.RefundTransactionID == refund.ID {
				linkedByThisRefund[SubTransactionRef(id).String()] = true
			}
		}
	}

	var scored []scoredCandidate
	consider := func(ref OriginalRef, parentID uint, remaining decimal.Decimal, subject Subject) {
		if linkedByThisRefund[ref.String()] {
			return
		}
		// fully refunded originals drop out; partially refunded stay in
		// to support split refunds across multiple payments
		if remaining.Cmp(e.Set.Tolerance) <= 0 {
			return
		}
		bd := e.Scorer.Score(refundSubject, subject)
		if bd.Confidence < minConfidence {
			return
		}
		sg := RefundSuggestion{
			MerchantName:     subject.MerchantName,
			Amount:           subject.Amount,
			Currency:         subject.Currency,
			OccurredAt:       subject.OccurredAt,
			ConfidenceScore:  bd.Confidence,
			Band:             Band(bd.Confidence),
			Scores:           bd.Factors,
			MatchReasons:     bd.Reasons,
			IsSubTransaction: ref.Kind == RefSubTransaction,
			ref:              ref,
		}
		if ref.Kind == RefTransaction {
			sg.CandidateID = fmt.Sprint(ref.TransactionID)
		} else {
			sg.CandidateID = ref.SubTransactionID
			sg.ParentTransactionID = parentID
		}
		scored = append(scored, scoredCandidate{
			suggestion: sg,
			timeDiff:   refund.OccurredAt.Sub(subject.OccurredAt),
			amountDiff: refundSubject.Amount.Sub(subject.Amount).Abs(),
		})
	}

	// a parent and its split items address the same money, so every
	// candidate's remaining is bounded by the family total
	for i := range parents {
		p := &parents[i]
		family := allocatedByTxn[p.ID]
		for _, s := range subsByParent[p.ID] {
			family = family.Add(allocatedBySub[s.ID])
		}
		parentRemaining := p.Amount.Sub(family)
		consider(TransactionRef(p.ID), 0, parentRemaining, subjectOf(p))
		for _, s := range subsByParent[p.ID] {
			sub := s
			subRemaining := sub.Amount.Sub(allocatedBySub[sub.ID])
			if parentRemaining.Cmp(subRemaining) < 0 {
				subRemaining = parentRemaining
			}
			consider(SubTransactionRef(sub.ID), p.ID, subRemaining, subjectOfSub(&sub, p))
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.suggestion.ConfidenceScore != b.suggestion.ConfidenceScore {
			return a.suggestion.ConfidenceScore > b.suggestion.ConfidenceScore
		}
		if a.timeDiff != b.timeDiff {
			return a.timeDiff < b.timeDiff
		}
		if cmp := a.amountDiff.Cmp(b.amountDiff); cmp != 0 {
			return cmp < 0
		}
		return a.suggestion.CandidateID < b.suggestion.CandidateID
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]RefundSuggestion, 0, len(scored))
	for _, sc := range scored {
		out = append(out, sc.suggestion)
	}
	return out, nil
}

func subjectOf(t *models.Transaction) Subject {
	return Subject{
		Amount:             t.Amount,
		Currency:           t.Currency,
		MerchantName:       t.MerchantName,
		MerchantNormalized: t.MerchantNormalized,
		Category:           t.Category,
		ReferenceID:        t.ReferenceID,
		OccurredAt:         t.OccurredAt,
	}
}

// subjectOfSub falls back to the parent for fields a split item does
// not carry itself.
func subjectOfSub(s *models.SubTransaction, parent *models.Transaction) Subject {
	subject := subjectOf(parent)
	subject.Amount = s.Amount
	if s.MerchantName != "" {
		subject.MerchantName = s.MerchantName
		subject.MerchantNormalized = NormalizeMerchant(s.MerchantName)
	}
	if s.Category != "" {
		subject.Category = s.Category
	}
	return subject
}
