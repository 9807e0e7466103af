package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SubscriptionFree    = "free"
	SubscriptionMonthly = "monthly"
	SubscriptionYearly  = "yearly"
)

// DefaultFreeCredits is the free-edit balance granted at signup.
const DefaultFreeCredits = 3

// UserLedger is the per-user record of remaining free-edit credits and
// subscription state. It is the single source of truth for entitlement
// checks and is only mutated through the ledger service.
type UserLedger struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	UserID              uint       `gorm:"uniqueIndex" json:"user_id"`
	Credits             int        `gorm:"not null;default:3" json:"credits"`
	SubscriptionStatus  string     `gorm:"type:varchar(20);not null;default:'free';index" json:"subscription_status"`
	SubscriptionEndDate *time.Time `gorm:"type:timestamp;default:null" json:"subscription_end_date,omitempty"`
	PaymentCustomerRef  string     `gorm:"type:varchar(191);default:'';index" json:"-"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOrCreateUserLedger returns the existing ledger row or creates the
// signup default (3 credits, free plan, no end date).
func GetOrCreateUserLedger(db *gorm.DB, userID uint) (*UserLedger, error) {
	var ledger UserLedger
	if err := db.Where("user_id = ?", userID).First(&ledger).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			ledger = UserLedger{UserID: userID, Credits: DefaultFreeCredits, SubscriptionStatus: SubscriptionFree}
			if err := db.Create(&ledger).Error; err != nil {
				return nil, err
			}
			return &ledger, nil
		}
		return nil, err
	}
	return &ledger, nil
}
