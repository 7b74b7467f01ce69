package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// WebhookClient posts rendered messages to a notification gateway, e.g. a
// local mail or SMS bridge.
type WebhookClient struct {
	BaseURL    string
	AuthToken  string
	HTTPClient *http.Client
}

// NewWebhookClient returns a client for the given gateway URL. authToken is
// optional; when set it is sent as the Authorization header.
func NewWebhookClient(baseURL, authToken string) *WebhookClient {
	return &WebhookClient{
		BaseURL:    baseURL,
		AuthToken:  authToken,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Send posts the message as JSON. Any non-2xx response is an error with the
// response body included for the delivery log.
func (c *WebhookClient) Send(ctx context.Context, msg Message) error {
	if c.BaseURL == "" {
		return fmt.Errorf("webhook: base URL not configured")
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.AuthToken != "" {
		req.Header.Set("Authorization", c.AuthToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
