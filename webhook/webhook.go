// Package webhook notifies an HTTP endpoint when an analysis shard
// finishes.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Event types.
const (
	EventShardCompleted = "shard.completed"
	EventShardFailed    = "shard.failed"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Cookiediff-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	Shard     int    `json:"shard"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// ShardSummary is the Data of shard events.
type ShardSummary struct {
	Sites  int    `json:"sites"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewEvent stamps an event with the current time.
func NewEvent(typ string, shard int, data any) *Event {
	return &Event{Type: typ, Shard: shard, Timestamp: time.Now().Unix(), Data: data}
}

// Sign returns the signature header value of body: sha256=<hex>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}

// Notifier delivers events to one endpoint. A nil or URL-less Notifier
// drops every event.
type Notifier struct {
	URL    string
	Secret string
	client *http.Client

	// delays are the waits before each delivery attempt.
	delays []time.Duration
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates a Notifier. timeout bounds one delivery attempt.
func New(url, secret string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		URL:    url,
		Secret: secret,
		client: &http.Client{Timeout: timeout},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second},
		logger: logger,
	}
}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if Secret is non-empty.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Cookiediff-Webhook/1.0")
	if n.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify sends event in the background, retrying after 1s, 5s and 30s.
func (n *Notifier) Notify(event *Event) {
	if n == nil || n.URL == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		log := n.logger.With("url", n.URL, "event", event.Type, "shard", event.Shard)
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			err := n.Deliver(context.Background(), event)
			if err == nil {
				log.Info("webhook delivered", "attempt", attempt+1)
				return
			}
			log.Warn("webhook delivery failed", "attempt", attempt+1, "error", err)
		}
		log.Error("webhook delivery exhausted all retries")
	}()
}

// Wait blocks until every pending delivery finished or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
