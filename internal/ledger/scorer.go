package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Match reason types, in the order they are emitted.
const (
	ReasonMerchantMatch   = "merchant_match"
	ReasonMerchantSimilar = "merchant_similar"
	ReasonExactAmount     = "exact_amount"
	ReasonCloseAmount     = "close_amount"
	ReasonTimeWindow      = "time_window"
	ReasonReferenceMatch  = "reference_match"
	ReasonCategoryMatch   = "category_match"
)

// Confidence bands, display/grouping only.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Subject is one side of a match: either the refund or a candidate
// original, flattened to the fields the scorer looks at.
type Subject struct {
	Amount             decimal.Decimal
	Currency           string
	MerchantName       string
	MerchantNormalized string
	Category           string
	ReferenceID        string
	OccurredAt         time.Time
}

// FactorScores is the per-factor breakdown, each 0-100.
type FactorScores struct {
	Merchant  int `json:"merchant_score"`
	Amount    int `json:"amount_score"`
	Time      int `json:"time_score"`
	Reference int `json:"reference_score"`
}

// MatchReason is one human-readable reason a candidate scored.
type MatchReason struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ScoreBreakdown is the scorer output for one candidate.
type ScoreBreakdown struct {
	Confidence int
	Factors    FactorScores
	Reasons    []MatchReason
}

// Scorer computes a weighted multi-factor match score between a refund
// and one candidate original. It is a pure function of its inputs and
// settings: no store access, no clock, no randomness.
type Scorer struct {
	Set Settings
}

// Score assumes the candidate already passed retrieval eligibility
// (debit direction, same currency, occurred before the refund).
func (s Scorer) Score(refund, cand Subject) ScoreBreakdown {
	f := FactorScores{
		Merchant:  s.merchantScore(refund, cand),
		Amount:    s.amountScore(refund, cand),
		Time:      s.timeScore(refund, cand),
		Reference: s.referenceScore(refund, cand),
	}

	w := s.Set.Weights
	weighted := w.Merchant*float64(f.Merchant) +
		w.Amount*float64(f.Amount) +
		w.Time*float64(f.Time) +
		w.Reference*float64(f.Reference)

	return ScoreBreakdown{
		Confidence: int(math.Round(weighted)),
		Factors:    f,
		Reasons:    s.reasons(refund, cand, f),
	}
}

// Band maps a confidence score to a display band.
func Band(confidence int) string {
	switch {
	case confidence >= 80:
		return BandHigh
	case confidence >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

func (s Scorer) merchantScore(refund, cand Subject) int {
	a := normalizedOf(refund)
	b := normalizedOf(cand)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 80
	}
	if firstToken(a) == firstToken(b) {
		return 60
	}
	return 0
}

func (s Scorer) amountScore(refund, cand Subject) int {
	diff := refund.Amount.Sub(cand.Amount).Abs()
	if diff.Cmp(s.Set.Tolerance) <= 0 {
		return 100
	}
	if !cand.Amount.IsPositive() {
		return 0
	}
	ratio, _ := diff.Div(cand.Amount).Float64()
	if ratio >= s.Set.MaxAmountRatio {
		return 0
	}
	return int(math.Round(100 * (1 - ratio/s.Set.MaxAmountRatio)))
}

func (s Scorer) timeScore(refund, cand Subject) int {
	elapsed := refund.OccurredAt.Sub(cand.OccurredAt)
	if elapsed < 0 {
		return 0
	}
	if elapsed <= s.Set.SameDayWindow {
		return 100
	}
	if elapsed >= s.Set.Lookback {
		return 0
	}
	span := float64(s.Set.Lookback - s.Set.SameDayWindow)
	return int(math.Round(100 * float64(s.Set.Lookback-elapsed) / span))
}

func (s Scorer) referenceScore(refund, cand Subject) int {
	if refund.ReferenceID != "" && refund.ReferenceID == cand.ReferenceID {
		return 100
	}
	return 0
}

// reasons emits one entry per contributing factor, always in the same
// order so identical inputs render identically.
func (s Scorer) reasons(refund, cand Subject, f FactorScores) []MatchReason {
	var out []MatchReason

	switch {
	case f.Merchant == 100:
		out = append(out, MatchReason{ReasonMerchantMatch, "Merchant matches exactly"})
	case f.Merchant > 0:
		out = append(out, MatchReason{ReasonMerchantSimilar, fmt.Sprintf("Merchant %q is similar to %q", cand.MerchantName, refund.MerchantName)})
	}

	switch {
	case f.Amount == 100:
		out = append(out, MatchReason{ReasonExactAmount, "Amount matches exactly"})
	case f.Amount > 0:
		diff := refund.Amount.Sub(cand.Amount).Abs()
		out = append(out, MatchReason{ReasonCloseAmount, fmt.Sprintf("Amount is close (difference %s)", diff.StringFixed(2))})
	}

	if f.Time > 0 {
		days := int(refund.OccurredAt.Sub(cand.OccurredAt).Hours() / 24)
		out = append(out, MatchReason{ReasonTimeWindow, fmt.Sprintf("Purchased %d day(s) before the refund", days)})
	}

	if f.Reference == 100 {
		out = append(out, MatchReason{ReasonReferenceMatch, fmt.Sprintf("Shared reference %s", refund.ReferenceID)})
	}

	// category carries no weight; surfaced for display only
	if refund.Category != "" && refund.Category == cand.Category {
		out = append(out, MatchReason{ReasonCategoryMatch, fmt.Sprintf("Same category %q", cand.Category)})
	}

	return out
}

func normalizedOf(sub Subject) string {
	if sub.MerchantNormalized != "" {
		return sub.MerchantNormalized
	}
	return NormalizeMerchant(sub.MerchantName)
}

func firstToken(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

// NormalizeMerchant lowercases a merchant name and strips everything
// but letters, digits and single spaces, so "AMAZON*Retail" and
// "Amazon Retail" compare equal.
func NormalizeMerchant(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
