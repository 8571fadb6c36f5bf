package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubTransaction is one item of a transaction split. The whole set is
// replaced as a batch; IDs are uuids so a replaced item's ID is never
// reused by a later split.
type SubTransaction struct {
	ID            string          `gorm:"primaryKey;size:36"` // uuid
	TransactionID uint            `gorm:"index;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Category      string          `gorm:"size:64"`
	MerchantName  string          `gorm:"size:128"`
	UserNotes     string          `gorm:"size:255"`
	Order         int             `gorm:"column:sort_order;not null"` // display-stable ordering
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Transaction Transaction `gorm:"constraint:OnDelete:CASCADE"`
}
