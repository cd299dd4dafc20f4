package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"turf/internal/platform/config"
	id "turf/pkg/domain"
	dErrors "turf/pkg/domain-errors"
)

// Client talks to the provider's REST API. Price-change calls retry with a
// capped backoff because they run as side effects of already-committed local
// transitions; a final failure is surfaced for operator follow-up, never
// propagated into the triggering event.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs the REST billing client.
func NewClient(cfg config.BillingConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) CreateCheckout(ctx context.Context, priceID string, pc PartyContext) (*Checkout, error) {
	body := map[string]any{
		"price_id": priceID,
		"metadata": map[string]string{
			"territory_id": pc.TerritoryID.String(),
		},
	}
	if !pc.PartyID.IsNil() {
		body["metadata"].(map[string]string)["party_id"] = pc.PartyID.String()
	}
	if pc.Email != "" {
		body["customer_email"] = pc.Email
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout_sessions", body, &out); err != nil {
		return nil, err
	}
	return &Checkout{SessionRef: out.ID, URL: out.URL}, nil
}

func (c *Client) CancelSubscription(ctx context.Context, ref id.SubscriptionRef) error {
	return c.do(ctx, http.MethodDelete, "/v1/subscriptions/"+ref.String(), nil, nil)
}

func (c *Client) ChangeSubscriptionPrice(ctx context.Context, ref id.SubscriptionRef, newPriceID string) error {
	body := map[string]any{
		"price_id":           newPriceID,
		"proration_behavior": "none",
	}
	var lastErr error
	for attempt, delay := 0, time.Second; attempt < 3; attempt, delay = attempt+1, delay*2 {
		lastErr = c.do(ctx, http.MethodPost, "/v1/subscriptions/"+ref.String()+"/price", body, nil)
		if lastErr == nil {
			return nil
		}
		if !dErrors.HasCode(lastErr, dErrors.CodeUpstream) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal billing request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build billing request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUpstream, "billing provider unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return dErrors.Newf(dErrors.CodeUpstream, "billing provider returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return dErrors.New(dErrors.CodeNotFound, "billing resource not found")
	case resp.StatusCode >= 400:
		return dErrors.Newf(dErrors.CodeBadRequest, "billing provider rejected request with %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode billing response: %w", err)
		}
	}
	return nil
}
