package models

import "time"

const (
	TransactionTypeEditUsed            = "edit_used"
	TransactionTypeSubscriptionGranted = "subscription_granted"
)

// CreditTransaction is one immutable entry in the append-only audit trail
// of ledger-affecting events. Rows are inserted in the same database
// transaction as the ledger mutation they describe and are never updated.
type CreditTransaction struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	Amount          int       `gorm:"not null" json:"amount"`
	TransactionType string    `gorm:"type:varchar(32);not null;index" json:"transaction_type"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedAt       time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
