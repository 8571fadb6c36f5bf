package ledger

import "fmt"

// RefKind tags an OriginalRef as pointing at a whole transaction or at
// one sub-transaction of a split.
type RefKind int

const (
	RefTransaction RefKind = iota
	RefSubTransaction
)

// OriginalRef identifies the original a refund is allocated against.
// Exactly one of TransactionID / SubTransactionID is meaningful,
// selected by Kind; resolve it with a switch so new kinds cannot be
// silently ignored.
type OriginalRef struct {
	Kind             RefKind
	TransactionID    uint
	SubTransactionID string
}

// TransactionRef points at a whole transaction.
func TransactionRef(id uint) OriginalRef {
	return OriginalRef{Kind: RefTransaction, TransactionID: id}
}

// SubTransactionRef points at one sub-transaction.
func SubTransactionRef(id string) OriginalRef {
	return OriginalRef{Kind: RefSubTransaction, SubTransactionID: id}
}

func (r OriginalRef) String() string {
	switch r.Kind {
	case RefTransaction:
		return fmt.Sprintf("transaction/%d", r.TransactionID)
	case RefSubTransaction:
		return fmt.Sprintf("sub-transaction/%s", r.SubTransactionID)
	}
	return "unknown-ref"
}
