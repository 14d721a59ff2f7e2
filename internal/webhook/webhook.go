// Package webhook delivers live events to an external HTTP endpoint.
package webhook

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

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/chamada/internal/ws"
)

const (
	HeaderSignature = "X-Chamada-Signature"
	HeaderEvent     = "X-Chamada-Event"
	HeaderDelivery  = "X-Chamada-Delivery"
)

type Config struct {
	URL         string
	Secret      string
	Events      map[ws.EventType]bool // nil sends everything
	Timeout     time.Duration
	MaxAttempts int
	QueueSize   int
	// RetryDelay is the first backoff delay; it doubles per attempt.
	RetryDelay time.Duration
}

func DefaultConfig(url string) Config {
	return Config{
		URL:         url,
		Timeout:     10 * time.Second,
		MaxAttempts: 5,
		QueueSize:   256,
		RetryDelay:  time.Second,
	}
}

// EventPayload is the body POSTed to the endpoint.
type EventPayload struct {
	ID        uuid.UUID    `json:"id"`
	Type      ws.EventType `json:"type"`
	Data      interface{}  `json:"data"`
	Timestamp time.Time    `json:"timestamp"`
}

type job struct {
	event    EventPayload
	body     []byte
	attempts int
}

func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign. Receivers use it.
func Verify(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(Sign(secret, payload)))
}

func (n *Notifier) send(ctx context.Context, j *job) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewReader(j.body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Chamada-Webhook/1.0")
	req.Header.Set(HeaderEvent, string(j.event.Type))
	req.Header.Set(HeaderDelivery, j.event.ID.String())
	if n.config.Secret != "" {
		req.Header.Set(HeaderSignature, Sign(n.config.Secret, j.body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

func encode(event EventPayload) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}
