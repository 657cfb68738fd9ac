// Package notifier delivers terminal transfer statuses to an external webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/mockbank/ledgersvc/internal/domain"
)

// DefaultTimeout bounds the outbound call.
const DefaultTimeout = 3 * time.Second

// Webhook posts transfer status payloads to a fixed URL. Delivery is
// best-effort: failures are logged and swallowed, never retried, and never
// affect the transfer outcome.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook returns a Webhook notifier for the given URL.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type payload struct {
	TransferID string                `json:"transfer_id"`
	Status     domain.TransferStatus `json:"status"`
}

// Notify posts the terminal status of a transfer to the webhook.
func (w *Webhook) Notify(ctx context.Context, transferID string, status domain.TransferStatus) {
	l := zerolog.Ctx(ctx)

	body, err := json.Marshal(payload{TransferID: transferID, Status: status})
	if err != nil {
		l.Error().Err(err).Send()
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		l.Error().Err(err).Send()
		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		l.Warn().Err(err).Str("transfer_id", transferID).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.Warn().Int("status_code", resp.StatusCode).Str("transfer_id", transferID).Msg("webhook rejected notification")
	}
}
