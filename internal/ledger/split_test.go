package ledger

import (
	"errors"
	"testing"

	"github.com/DSaraf-Work/finance-buddy-sub001/internal/models"
)

func items(t *testing.T, amounts ...string) []SplitItem {
	t.Helper()
	out := make([]SplitItem, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, SplitItem{Amount: dec(t, a)})
	}
	return out
}

// TestValidateSplit_Table covers the balanced / under / over verdicts.
func TestValidateSplit_Table(t *testing.T) {
	e := testEngine(t)

	cases := []struct {
		name       string
		parent     string
		amounts    []string
		wantStatus string
		wantDiff   string
	}{
		{"balanced exact", "250.00", []string{"100.00", "100.00", "50.00"}, SplitBalanced, "0"},
		{"balanced within tolerance", "250.00", []string{"100.00", "149.99"}, SplitBalanced, "0.01"},
		{"under allocated", "250.00", []string{"100.00", "100.00"}, SplitUnder, "50"},
		{"over allocated", "250.00", []string{"150.00", "150.00"}, SplitOver, "-50"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := e.ValidateSplit(dec(t, tc.parent), items(t, tc.amounts...))
			if v.Status != tc.wantStatus {
				t.Errorf("status = %s, want %s", v.Status, tc.wantStatus)
			}
			if !v.Difference.Equal(dec(t, tc.wantDiff)) {
				t.Errorf("difference = %s, want %s", v.Difference, tc.wantDiff)
			}
			if v.IsValid() != (tc.wantStatus == SplitBalanced) {
				t.Errorf("IsValid = %v for status %s", v.IsValid(), v.Status)
			}
		})
	}
}

// TestCommitSplit_Balanced commits a clean split and checks ordering.
func TestCommitSplit_Balanced(t *testing.T) {
	e := testEngine(t)
	user := seedUser(t, e.DB)
	parent := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "250.00", "Big Bazaar", at(0))

	result, err := e.CommitSplit(parent.ID, user.ID, items(t, "100.00", "100.00", "50.00"))
	if err != nil {
		t.Fatalf("CommitSplit: %v", err)
	}
	if !result.Validation.IsValid() {
		t.Errorf("validation = %+v, want balanced", result.Validation)
	}
	if len(result.Subs) != 3 {
		t.Fatalf("got %d subs, want 3", len(result.Subs))
	}
	for i, s := range result.Subs {
		if s.Order != i {
			t.Errorf("sub[%d].Order = %d, want %d", i, s.Order, i)
		}
		if s.ID == "" {
			t.Errorf("sub[%d] has empty ID", i)
		}
	}
	if result.Replaced {
		t.Error("Replaced = true on first split")
	}
}

// TestCommitSplit_OverAllocated: over-allocation is rejected and the
// prior split stays untouched.
func TestCommitSplit_OverAllocated(t *testing.T) {
	e := testEngine(t)
	user := seedUser(t, e.DB)
	parent := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "250.00", "Big Bazaar", at(0))

	if _, err := e.CommitSplit(parent.ID, user.ID, items(t, "100.00", "100.00", "50.00")); err != nil {
		t.Fatalf("first CommitSplit: %v", err)
	}

	_, err := e.CommitSplit(parent.ID, user.ID, items(t, "150.00", "150.00"))
	if !IsConflict(err, ConflictOverAllocatedSplit) {
		t.Fatalf("err = %v, want over_allocated_split conflict", err)
	}

	var count int64
	if err := e.DB.Model(&models.SubTransaction{}).Where("transaction_id = ?", parent.ID).Count(&count).Error; err != nil {
		t.Fatalf("count subs: %v", err)
	}
	if count != 3 {
		t.Errorf("prior split has %d items after failed commit, want 3", count)
	}
}

// TestCommitSplit_CountBounds rejects too few or too many items.
func TestCommitSplit_CountBounds(t *testing.T) {
	e := testEngine(t)
	user := seedUser(t, e.DB)
	parent := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "250.00", "Big Bazaar", at(0))

	var ve *ValidationError
	if _, err := e.CommitSplit(parent.ID, user.ID, items(t, "250.00")); !errors.As(err, &ve) {
		t.Errorf("single item: err = %v, want ValidationError", err)
	}

	many := make([]SplitItem, 51)
	for i := range many {
		many[i] = SplitItem{Amount: dec(t, "1.00")}
	}
	if _, err := e.CommitSplit(parent.ID, user.ID, many); !errors.As(err, &ve) {
		t.Errorf("51 items: err = %v, want ValidationError", err)
	}

	if _, err := e.CommitSplit(parent.ID, user.ID, items(t, "100.00", "-5.00")); !errors.As(err, &ve) {
		t.Errorf("negative amount: err = %v, want ValidationError", err)
	}
}

// TestCommitSplit_ReportsOrphanedLinks: replacing a split reports the
// refund links that pointed at the old items, and linking against a
// replaced item fails not-found.
func TestCommitSplit_ReportsOrphanedLinks(t *testing.T) {
	e := testEngine(t)
	user := seedUser(t, e.DB)
	parent := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "250.00", "Big Bazaar", at(0))
	refund := seedTxn(t, e.DB, user.ID, models.DirectionCredit, "100.00", "Big Bazaar", at(5))

	first, err := e.CommitSplit(parent.ID, user.ID, items(t, "100.00", "150.00"))
	if err != nil {
		t.Fatalf("first CommitSplit: %v", err)
	}
	oldSubID := first.Subs[0].ID

	link, err := e.Link(user.ID, LinkRequest{
		RefundTransactionID: refund.ID,
		Original:            SubTransactionRef(oldSubID),
		Amount:              dec(t, "100.00"),
		MatchMethod:         models.MatchMethodManual,
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	second, err := e.CommitSplit(parent.ID, user.ID, items(t, "50.00", "200.00"))
	if err != nil {
		t.Fatalf("second CommitSplit: %v", err)
	}
	if !second.Replaced {
		t.Error("Replaced = false on re-split")
	}
	if len(second.OrphanedLinkIDs) != 1 || second.OrphanedLinkIDs[0] != link.ID {
		t.Errorf("OrphanedLinkIDs = %v, want [%s]", second.OrphanedLinkIDs, link.ID)
	}

	// the old sub ID is gone for good; new links against it must fail
	refund2 := seedTxn(t, e.DB, user.ID, models.DirectionCredit, "50.00", "Big Bazaar", at(6))
	var nf *NotFoundError
	_, err = e.Link(user.ID, LinkRequest{
		RefundTransactionID: refund2.ID,
		Original:            SubTransactionRef(oldSubID),
		Amount:              dec(t, "50.00"),
		MatchMethod:         models.MatchMethodManual,
	})
	if !errors.As(err, &nf) {
		t.Errorf("link to replaced sub: err = %v, want NotFoundError", err)
	}
}

// TestClearSplit removes the whole set.
func TestClearSplit(t *testing.T) {
	e := testEngine(t)
	user := seedUser(t, e.DB)
	parent := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "250.00", "Big Bazaar", at(0))

	if _, err := e.CommitSplit(parent.ID, user.ID, items(t, "100.00", "150.00")); err != nil {
		t.Fatalf("CommitSplit: %v", err)
	}
	if err := e.ClearSplit(parent.ID, user.ID); err != nil {
		t.Fatalf("ClearSplit: %v", err)
	}

	var count int64
	e.DB.Model(&models.SubTransaction{}).Where("transaction_id = ?", parent.ID).Count(&count)
	if count != 0 {
		t.Errorf("%d subs remain after clear, want 0", count)
	}
}

// TestVerifySplitItem: the membership check only accepts a current item
// of the given parent.
func TestVerifySplitItem(t *testing.T) {
	e := testEngine(t)
	user := seedUser(t, e.DB)
	parentA := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "300.00", "Croma", at(0))
	parentB := seedTxn(t, e.DB, user.ID, models.DirectionDebit, "300.00", "Croma", at(1))

	split, err := e.CommitSplit(parentA.ID, user.ID, items(t, "100.00", "200.00"))
	if err != nil {
		t.Fatalf("CommitSplit: %v", err)
	}
	sub := split.Subs[0]

	if err := e.VerifySplitItem(parentA.ID, sub.ID); err != nil {
		t.Errorf("own item: %v", err)
	}

	var nf *NotFoundError
	if err := e.VerifySplitItem(parentB.ID, sub.ID); !errors.As(err, &nf) {
		t.Errorf("other parent's item: err = %v, want NotFoundError", err)
	}
	if err := e.VerifySplitItem(parentA.ID, "no-such-item"); !errors.As(err, &nf) {
		t.Errorf("unknown item: err = %v, want NotFoundError", err)
	}
}
