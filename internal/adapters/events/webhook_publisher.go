package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartattend/auditlog/internal/core/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookPublisher delivers alerts to a configured HTTP endpoint (a pager
// bridge, an incident channel relay). Each request is signed with
// HMAC-SHA256 so the receiver can verify authenticity. Non-2xx responses
// are errors, letting the alert dispatcher apply its retry/dead-letter
// policy.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookPublisher returns a WebhookPublisher that POSTs alerts to url
// and signs them with secret. A zero or negative timeout falls back to
// defaultWebhookTimeout.
func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

// Publish marshals the alert to JSON, signs the body, and POSTs it. Headers
// set on every request:
//
//	Content-Type:         application/json
//	X-Audit-Alert-Kind:   <alert.Kind>
//	X-Audit-Severity:     <alert.Severity>
//	X-Audit-Tenant:       <alert.TenantID>
//	X-Hub-Signature-256:  sha256=<hex-encoded HMAC-SHA256>
func (p *WebhookPublisher) Publish(ctx context.Context, alert domain.AlertEnvelope) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	sig := p.sign(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Audit-Alert-Kind", alert.Kind)
	req.Header.Set("X-Audit-Severity", alert.Severity)
	req.Header.Set("X-Audit-Tenant", alert.TenantID)
	req.Header.Set("X-Hub-Signature-256", "sha256="+sig)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) sign(payload []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
