package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction direction values.
const (
	DirectionDebit    = "debit"
	DirectionCredit   = "credit"
	DirectionTransfer = "transfer"
)

// Transaction is a financial event extracted from an email by the
// ingestion subsystem. The reconciliation core never mutates its
// monetary fields; refund totals live in RefundLink rows only.
type Transaction struct {
	ID                 uint            `gorm:"primaryKey"`
	UserID             uint            `gorm:"index;not null"`
	Amount             decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Currency           string          `gorm:"size:8;not null;default:INR"`
	Direction          string          `gorm:"size:16;index;not null"` // debit / credit / transfer
	MerchantName       string          `gorm:"size:128"`
	MerchantNormalized string          `gorm:"size:128;index"`
	Category           string          `gorm:"size:64"`
	ReferenceID        string          `gorm:"size:128;index"` // bank/UPI reference, may be empty
	AccountHint        string          `gorm:"size:64"`        // e.g. last 4 digits
	SourceMessageID    string          `gorm:"size:255"`       // email message this came from
	OccurredAt         time.Time       `gorm:"index;not null"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	DeletedAt          gorm.DeletedAt `gorm:"index"`

	User            User             `gorm:"constraint:OnDelete:CASCADE"`
	SubTransactions []SubTransaction `gorm:"constraint:OnDelete:CASCADE"`
}
