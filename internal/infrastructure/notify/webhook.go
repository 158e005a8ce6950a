package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"leaseprotect/internal/domain/notification"
	"leaseprotect/internal/reliability/retry"

	"github.com/google/uuid"
)

const SignatureHeader = "X-Leaseprotect-Signature"

// WebhookNotifier posts each message as a signed JSON envelope to one URL;
// the receiver owns email/SMS delivery.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

func NewWebhookNotifier(url, secret string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, secret: secret, client: client}
}

type envelope struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	SentAt time.Time `json:"sent_at"`
	Data   any       `json:"data"`
}

func SignBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (w *WebhookNotifier) post(ctx context.Context, typ string, data any) error {
	body, err := json.Marshal(envelope{ID: uuid.NewString(), Type: typ, SentAt: time.Now().UTC(), Data: data})
	if err != nil {
		return retry.Permanent{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(SignatureHeader, SignBody(w.secret, body))
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook %s: status %d", typ, resp.StatusCode)
	default:
		return retry.Permanent{Err: fmt.Errorf("webhook %s: status %d", typ, resp.StatusCode)}
	}
}

func (w *WebhookNotifier) SendInvitation(ctx context.Context, inv notification.Invitation) error {
	return w.post(ctx, "actor.invitation", inv)
}

func (w *WebhookNotifier) NotifyActorRejected(ctx context.Context, r notification.Rejection) error {
	return w.post(ctx, "actor.rejected", r)
}

func (w *WebhookNotifier) NotifyPolicyCancelled(ctx context.Context, c notification.Cancellation) error {
	return w.post(ctx, "policy.cancelled", c)
}
