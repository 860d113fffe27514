package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/example/roadside-matching/internal/models"
)

// WebhookDispatcher posts each event as JSON to a push gateway endpoint.
type WebhookDispatcher struct {
	Endpoint string
	Token    string
	Client   *http.Client
}

func NewWebhookDispatcher(endpoint, token string) *WebhookDispatcher {
	return &WebhookDispatcher{Endpoint: endpoint, Token: token, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (w *WebhookDispatcher) Notify(ctx context.Context, ev models.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook %s: unexpected status %d", w.Endpoint, resp.StatusCode)
	}
	return nil
}

var _ Notifier = (*WebhookDispatcher)(nil)
