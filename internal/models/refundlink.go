package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundLink target / method values.
const (
	OriginalTypeTransaction    = "transaction"
	OriginalTypeSubTransaction = "sub_transaction"

	RefundTypeFull    = "full"
	RefundTypePartial = "partial"

	MatchMethodManual       = "manual"
	MatchMethodAISuggestion = "ai_suggestion"
)

// RefundLink allocates part of a refund (credit) transaction to one
// original (debit) transaction or sub-transaction. Exactly one of
// OriginalTransactionID / OriginalSubTransactionID is set, mirrored by
// OriginalType. Aggregate refund status is always recomputed from these
// rows, never cached on the transaction.
type RefundLink struct {
	ID                     string  `gorm:"primaryKey;size:36"` // uuid
	UserID                 uint    `gorm:"index;not null"`
	RefundTransactionID    uint    `gorm:"index;not null"`
	RefundSubTransactionID *string `gorm:"size:36;index"` // set when a refund sub-item is the source

	OriginalType             string  `gorm:"size:16;not null"` // transaction / sub_transaction
	OriginalTransactionID    *uint   `gorm:"index"`
	OriginalSubTransactionID *string `gorm:"size:36;index"`

	AllocatedAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RefundType           string          `gorm:"size:16;not null"` // full / partial
	MatchMethod          string          `gorm:"size:16;not null"` // manual / ai_suggestion
	MatchConfidenceScore *int            // 0-100, ai_suggestion only
	MatchReasons         string          `gorm:"type:text"` // JSON array, display only
	CreatedAt            time.Time

	User              User        `gorm:"constraint:OnDelete:CASCADE"`
	RefundTransaction Transaction `gorm:"foreignKey:RefundTransactionID;constraint:OnDelete:CASCADE"`
}
