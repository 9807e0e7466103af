package billing

import (
	"context"
	"time"

	"github.com/JonasKleint/ReelKit/internal/pkg/entitlements"
	"github.com/JonasKleint/ReelKit/internal/pkg/ledger"
)

// LedgerService is the slice of the ledger service the billing layer
// drives. Satisfied by *ledger.Service; narrowed for testability.
type LedgerService interface {
	Activate(ctx context.Context, userID uint, plan entitlements.Plan, source string) (*ledger.Snapshot, error)
	ActivateUntil(ctx context.Context, userID uint, plan entitlements.Plan, end time.Time, source string) (*ledger.Snapshot, error)
	Deactivate(ctx context.Context, userID uint, source string) (*ledger.Snapshot, error)
	RecordRenewalPayment(ctx context.Context, userID uint, source string) error
	UserIDByCustomerRef(ctx context.Context, ref string) (uint, error)
	CachePaymentCustomerRef(ctx context.Context, userID uint, ref string) error
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}
