package billing

import (
	"context"
	"strings"
	"testing"

	"github.com/JonasKleint/ReelKit/app/models"
)

type fakeEventRepo struct {
	events    map[string]*models.BillingWebhookEvent
	processed map[uint]string
	nextID    uint
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: map[string]*models.BillingWebhookEvent{}, processed: map[uint]string{}}
}

func (f *fakeEventRepo) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	key := event.Provider + "/" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		return false, existing, nil
	}
	f.nextID++
	event.ID = f.nextID
	f.events[key] = event
	return true, event, nil
}

func (f *fakeEventRepo) MarkWebhookProcessed(id uint, processingError string) error {
	f.processed[id] = processingError
	return nil
}

func TestRecordWebhookEventDedup(t *testing.T) {
	repo := newFakeEventRepo()
	svc := NewService(repo)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: "evt_1",
		EventType:       "checkout.session.completed",
		PayloadJSON:     `{"id":"evt_1"}`,
		SignatureValid:  true,
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || stored.ID == 0 {
		t.Fatalf("expected first delivery to create a row")
	}

	created, stored2, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected redelivery to dedup")
	}
	if stored2.ID != stored.ID {
		t.Fatalf("expected redelivery to resolve to the stored row")
	}
}

func TestRecordWebhookEventHashFallback(t *testing.T) {
	repo := newFakeEventRepo()
	svc := NewService(repo)
	ctx := context.Background()

	in := WebhookEventInput{
		Provider:    models.BillingProviderStripe,
		EventType:   "checkout.session.completed",
		PayloadJSON: `{"some":"payload"}`,
	}

	created, stored, err := svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected first delivery to create a row")
	}
	if !strings.HasPrefix(stored.ProviderEventID, "hash:") {
		t.Fatalf("expected hash fallback event id, got %q", stored.ProviderEventID)
	}

	// Identical payload without an event id still dedups.
	created, _, err = svc.RecordWebhookEvent(ctx, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected identical payload to dedup via hash")
	}
}

func TestRecordWebhookEventRequiresProvider(t *testing.T) {
	svc := NewService(newFakeEventRepo())
	if _, _, err := svc.RecordWebhookEvent(context.Background(), WebhookEventInput{}); err == nil {
		t.Fatalf("expected error for missing provider")
	}
}
