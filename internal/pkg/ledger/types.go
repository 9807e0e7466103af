package ledger

import "time"

// Snapshot is the read model of a user's ledger handed to API consumers.
type Snapshot struct {
	UserID                uint       `json:"user_id"`
	Credits               int        `json:"credits"`
	SubscriptionStatus    string     `json:"subscription_status"`
	SubscriptionEndDate   *time.Time `json:"subscription_end_date,omitempty"`
	HasActiveSubscription bool       `json:"has_active_subscription"`
}

// DebitResult reports the outcome of a successful TryDebit call. Charged is
// false when the user was entitled and no credit was consumed.
type DebitResult struct {
	RemainingCredits int  `json:"remaining_credits"`
	Charged          bool `json:"charged"`
}
