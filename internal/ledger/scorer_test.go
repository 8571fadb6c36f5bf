package ledger

import (
	"reflect"
	"testing"
	"time"
)

func testScorer(t *testing.T) Scorer {
	t.Helper()
	set, err := SettingsFromConfig(testConfig())
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	return Scorer{Set: set}
}

func at(day int) time.Time {
	return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func subject(t *testing.T, amount, merchant, reference string, occurred time.Time) Subject {
	t.Helper()
	return Subject{
		Amount:       dec(t, amount),
		Currency:     "INR",
		MerchantName: merchant,
		ReferenceID:  reference,
		OccurredAt:   occurred,
	}
}

// TestScore_PerfectMatch checks that an identical purchase the same day
// with a shared reference scores 100 on every factor.
func TestScore_PerfectMatch(t *testing.T) {
	s := testScorer(t)
	refund := subject(t, "499.00", "Amazon Retail", "REF123", at(30))
	cand := subject(t, "499.00", "AMAZON*Retail", "REF123", at(30))

	bd := s.Score(refund, cand)

	want := FactorScores{Merchant: 100, Amount: 100, Time: 100, Reference: 100}
	if bd.Factors != want {
		t.Errorf("factors = %+v, want %+v", bd.Factors, want)
	}
	if bd.Confidence != 100 {
		t.Errorf("confidence = %d, want 100", bd.Confidence)
	}
}

// TestScore_Deterministic: identical inputs must produce identical
// confidence and identical reason ordering.
func TestScore_Deterministic(t *testing.T) {
	s := testScorer(t)
	refund := subject(t, "120.00", "Swiggy", "", at(10))
	cand := subject(t, "118.50", "Swiggy Instamart", "", at(7))

	first := s.Score(refund, cand)
	second := s.Score(refund, cand)

	if first.Confidence != second.Confidence {
		t.Errorf("confidence differs: %d vs %d", first.Confidence, second.Confidence)
	}
	if !reflect.DeepEqual(first.Reasons, second.Reasons) {
		t.Errorf("reasons differ:\n%v\n%v", first.Reasons, second.Reasons)
	}
}

// TestAmountScore_Monotonic: shrinking the amount difference never
// decreases the amount score.
func TestAmountScore_Monotonic(t *testing.T) {
	s := testScorer(t)
	cand := subject(t, "1000.00", "Store", "", at(0))

	refundAmounts := []string{"1499.00", "1300.00", "1100.00", "1050.00", "1000.50", "1000.00"}
	prev := -1
	for _, a := range refundAmounts {
		refund := subject(t, a, "Store", "", at(1))
		got := s.amountScore(refund, cand)
		if got < prev {
			t.Errorf("amountScore(%s) = %d, below previous %d", a, got, prev)
		}
		prev = got
	}
}

// TestAmountScore_BeyondRatio: candidates further than the max ratio
// score zero.
func TestAmountScore_BeyondRatio(t *testing.T) {
	s := testScorer(t)
	cand := subject(t, "100.00", "Store", "", at(0))
	refund := subject(t, "200.00", "Store", "", at(1))

	if got := s.amountScore(refund, cand); got != 0 {
		t.Errorf("amountScore = %d, want 0", got)
	}
}

// TestTimeScore_Monotonic: more elapsed time never increases the time
// score, and the window edges behave.
func TestTimeScore_Monotonic(t *testing.T) {
	s := testScorer(t)
	refund := subject(t, "100.00", "Store", "", at(90))

	prev := 101
	for _, day := range []int{90, 89, 80, 60, 30, 10, 1, 0} {
		cand := subject(t, "100.00", "Store", "", at(day))
		got := s.timeScore(refund, cand)
		elapsed := 90 - day
		if got > prev {
			t.Errorf("timeScore at %d days elapsed = %d, above previous %d", elapsed, got, prev)
		}
		prev = got
	}

	sameDay := s.timeScore(refund, subject(t, "100.00", "Store", "", at(90)))
	if sameDay != 100 {
		t.Errorf("same-day timeScore = %d, want 100", sameDay)
	}
	outside := s.timeScore(refund, subject(t, "100.00", "Store", "", at(-1)))
	if outside != 0 {
		t.Errorf("beyond-lookback timeScore = %d, want 0", outside)
	}
}

// TestMerchantScore_Grades covers the exact / contains / shared-token /
// unrelated ladder.
func TestMerchantScore_Grades(t *testing.T) {
	s := testScorer(t)
	cases := []struct {
		refund string
		cand   string
		want   int
	}{
		{"Amazon Retail", "AMAZON*Retail", 100},
		{"Amazon", "Amazon Retail", 80},
		{"Amazon Pay", "Amazon Fresh", 60},
		{"Amazon", "Flipkart", 0},
		{"", "Flipkart", 0},
	}
	for _, tc := range cases {
		refund := subject(t, "100.00", tc.refund, "", at(1))
		cand := subject(t, "100.00", tc.cand, "", at(0))
		if got := s.merchantScore(refund, cand); got != tc.want {
			t.Errorf("merchantScore(%q, %q) = %d, want %d", tc.refund, tc.cand, got, tc.want)
		}
	}
}

// TestScore_ReasonsOrder: reasons come out factor by factor in a fixed
// order with the right types.
func TestScore_ReasonsOrder(t *testing.T) {
	s := testScorer(t)
	refund := subject(t, "499.00", "Amazon Retail", "REF123", at(5))
	refund.Category = "shopping"
	cand := subject(t, "499.00", "Amazon Retail", "REF123", at(2))
	cand.Category = "shopping"

	bd := s.Score(refund, cand)

	wantTypes := []string{
		ReasonMerchantMatch,
		ReasonExactAmount,
		ReasonTimeWindow,
		ReasonReferenceMatch,
		ReasonCategoryMatch,
	}
	if len(bd.Reasons) != len(wantTypes) {
		t.Fatalf("got %d reasons, want %d: %v", len(bd.Reasons), len(wantTypes), bd.Reasons)
	}
	for i, want := range wantTypes {
		if bd.Reasons[i].Type != want {
			t.Errorf("reason[%d].Type = %s, want %s", i, bd.Reasons[i].Type, want)
		}
		if bd.Reasons[i].Description == "" {
			t.Errorf("reason[%d] has empty description", i)
		}
	}
}

// TestScore_WeightedCombination verifies the weighted sum with the
// default weights on a hand-computed case.
func TestScore_WeightedCombination(t *testing.T) {
	s := testScorer(t)
	// merchant 100, amount 100, time 100, reference 0
	refund := subject(t, "250.00", "Zomato", "", at(3))
	cand := subject(t, "250.00", "Zomato", "", at(3))

	bd := s.Score(refund, cand)
	// 0.35*100 + 0.35*100 + 0.20*100 + 0.10*0 = 90
	if bd.Confidence != 90 {
		t.Errorf("confidence = %d, want 90", bd.Confidence)
	}
}

func TestBand(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{100, BandHigh},
		{80, BandHigh},
		{79, BandMedium},
		{50, BandMedium},
		{49, BandLow},
		{0, BandLow},
	}
	for _, tc := range cases {
		if got := Band(tc.score); got != tc.want {
			t.Errorf("Band(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestNormalizeMerchant(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AMAZON*Retail", "amazon retail"},
		{"  Swiggy -- Instamart ", "swiggy instamart"},
		{"UPI/ZOMATO/12345", "upi zomato 12345"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeMerchant(tc.in); got != tc.want {
			t.Errorf("NormalizeMerchant(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
