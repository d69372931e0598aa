package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// webhookDeliverer relays rendered alerts to an external endpoint, typically
// a bot gateway that forwards them to the chat given by address. The actual
// messaging transport lives behind that endpoint, not here.
type webhookDeliverer struct {
	url    string
	client *http.Client
}

func newWebhookDeliverer(url string) *webhookDeliverer {
	return &webhookDeliverer{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *webhookDeliverer) Deliver(ctx context.Context, address, payload string) error {
	body, err := json.Marshal(map[string]string{
		"address": address,
		"payload": payload,
	})
	if err != nil {
		return eris.Wrap(err, "marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "create delivery request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "delivery request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("delivery endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
