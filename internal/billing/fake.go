package billing

import (
	"context"
	"fmt"
	"sync"

	id "turf/pkg/domain"
)

// Fake is an in-memory Provider for tests and dev mode. It records every
// call so tests can assert on outbound side effects.
type Fake struct {
	mu sync.Mutex

	// Err, when set, is returned by every call.
	Err error

	Checkouts     []PartyContext
	Cancellations []id.SubscriptionRef
	PriceChanges  map[id.SubscriptionRef]string

	nextSession int
}

// NewFake creates an empty fake provider.
func NewFake() *Fake {
	return &Fake{PriceChanges: make(map[id.SubscriptionRef]string)}
}

func (f *Fake) CreateCheckout(ctx context.Context, priceID string, pc PartyContext) (*Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.Checkouts = append(f.Checkouts, pc)
	f.nextSession++
	ref := fmt.Sprintf("cs_test_%03d", f.nextSession)
	return &Checkout{SessionRef: ref, URL: "https://billing.example.com/pay/" + ref}, nil
}

func (f *Fake) CancelSubscription(ctx context.Context, ref id.SubscriptionRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Cancellations = append(f.Cancellations, ref)
	return nil
}

func (f *Fake) ChangeSubscriptionPrice(ctx context.Context, ref id.SubscriptionRef, newPriceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.PriceChanges[ref] = newPriceID
	return nil
}

// PriceChangeFor returns the last price a subscription was moved to.
func (f *Fake) PriceChangeFor(ref id.SubscriptionRef) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.PriceChanges[ref]
	return p, ok
}
