package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "turf/pkg/domain"
)

func TestParseCheckoutCompleted(t *testing.T) {
	territoryID := id.NewTerritoryID()
	partyID := id.NewPartyID()
	body := fmt.Sprintf(`{
		"id": "evt_001",
		"type": "checkout.completed",
		"data": {
			"subscription": "sub_123",
			"customer": "cus_456",
			"customer_email": "buyer@example.com",
			"price_id": "price_standard",
			"metadata": {"territory_id": %q, "party_id": %q}
		}
	}`, territoryID, partyID)

	ev, err := Parse([]byte(body))
	require.NoError(t, err)

	checkout, ok := ev.(CheckoutCompleted)
	require.True(t, ok)
	assert.Equal(t, "evt_001", checkout.EventID())
	assert.Equal(t, id.SubscriptionRef("sub_123"), checkout.Ref())
	assert.Equal(t, "cus_456", checkout.CustomerRef)
	assert.Equal(t, territoryID, checkout.TerritoryID)
	assert.Equal(t, partyID, checkout.PartyID)
	assert.Equal(t, "price_standard", checkout.PriceID)
	assert.False(t, checkout.IsGuest())
}

func TestParseGuestCheckout(t *testing.T) {
	territoryID := id.NewTerritoryID()
	body := fmt.Sprintf(`{
		"id": "evt_002",
		"type": "checkout.completed",
		"data": {
			"subscription": "sub_123",
			"customer_email": "guest@example.com",
			"metadata": {"territory_id": %q}
		}
	}`, territoryID)

	ev, err := Parse([]byte(body))
	require.NoError(t, err)

	checkout, ok := ev.(CheckoutCompleted)
	require.True(t, ok)
	assert.True(t, checkout.IsGuest())
	assert.Equal(t, "guest@example.com", checkout.Email)
}

func TestParseSubscriptionEvents(t *testing.T) {
	ev, err := Parse([]byte(`{
		"id": "evt_003",
		"type": "subscription.updated",
		"data": {"subscription": "sub_123", "status": "past_due"}
	}`))
	require.NoError(t, err)
	updated, ok := ev.(SubscriptionUpdated)
	require.True(t, ok)
	assert.Equal(t, "past_due", updated.Status)

	ev, err = Parse([]byte(`{
		"id": "evt_004",
		"type": "subscription.deleted",
		"data": {"subscription": "sub_123"}
	}`))
	require.NoError(t, err)
	deleted, ok := ev.(SubscriptionDeleted)
	require.True(t, ok)
	assert.Equal(t, id.SubscriptionRef("sub_123"), deleted.Ref())
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"id": "evt_005", "type": "invoice.paid", "data": {}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestParseValidation(t *testing.T) {
	territoryID := id.NewTerritoryID().String()
	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{`},
		{"missing event id", `{"type": "subscription.deleted", "data": {"subscription": "sub_1"}}`},
		{
			"checkout missing subscription",
			fmt.Sprintf(`{"id": "e", "type": "checkout.completed", "data": {"metadata": {"territory_id": %q}}}`, territoryID),
		},
		{
			"checkout missing territory",
			`{"id": "e", "type": "checkout.completed", "data": {"subscription": "sub_1", "metadata": {}}}`,
		},
		{
			"checkout bad territory id",
			`{"id": "e", "type": "checkout.completed", "data": {"subscription": "sub_1", "metadata": {"territory_id": "nope"}}}`,
		},
		{
			"checkout bad party id",
			fmt.Sprintf(`{"id": "e", "type": "checkout.completed", "data": {"subscription": "sub_1", "customer_email": "a@b.com", "metadata": {"territory_id": %q, "party_id": "nope"}}}`, territoryID),
		},
		{
			"guest checkout without email",
			fmt.Sprintf(`{"id": "e", "type": "checkout.completed", "data": {"subscription": "sub_1", "metadata": {"territory_id": %q}}}`, territoryID),
		},
		{
			"update missing subscription",
			`{"id": "e", "type": "subscription.updated", "data": {"status": "active"}}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body))
			assert.Error(t, err)
		})
	}
}
