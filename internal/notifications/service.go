package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadcast/internal/config"
)

const userAgent = "leadcast/0.1"

// Event enumerates the notifications leadcast can publish.
type Event string

const (
	EventLeadSent   Event = "lead_sent"
	EventLeadManual Event = "lead_manual"
	EventLeadFailed Event = "lead_failed"
	EventTest       Event = "test"
)

// Payload carries event details. Recognized keys: identifier, channel,
// destination, outcome, path, error.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		sent:     cfg.Notifications.Sent,
		failed:   cfg.Notifications.Failed,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	sent     bool
	failed   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventLeadSent:
		return n.sent
	case EventLeadManual, EventLeadFailed:
		return n.failed
	default:
		return true
	}
}

func render(event Event, payload Payload) (message, bool) {
	identifier := payloadString(payload, "identifier", "lead")
	switch event {
	case EventLeadSent:
		body := fmt.Sprintf("✅ Lead sent: %s", identifier)
		if destination := payloadString(payload, "destination", ""); destination != "" {
			body += " → " + destination
		}
		if channel := payloadString(payload, "channel", ""); channel != "" {
			body += fmt.Sprintf(" (%s)", channel)
		}
		return message{
			title: "leadcast - Lead Sent",
			body:  body,
			tags:  []string{"leadcast", "lead", "sent"},
		}, true
	case EventLeadManual:
		var b strings.Builder
		fmt.Fprintf(&b, "📎 Lead saved for manual sharing: %s", identifier)
		if path := payloadString(payload, "path", ""); path != "" {
			fmt.Fprintf(&b, "\nFile: %s", path)
		}
		if reason := payloadString(payload, "error", ""); reason != "" {
			fmt.Fprintf(&b, "\nReason: %s", reason)
		}
		return message{
			title: "leadcast - Manual Share Needed",
			body:  b.String(),
			tags:  []string{"leadcast", "lead", "manual"},
		}, true
	case EventLeadFailed:
		return message{
			title:    "leadcast - Lead Failed",
			body:     fmt.Sprintf("❌ Lead delivery failed for %s: %s", identifier, payloadString(payload, "error", "unknown")),
			tags:     []string{"leadcast", "lead", "failed", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "leadcast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"leadcast", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case error:
		text = v.Error()
	default:
		text = fmt.Sprint(v)
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback
	}
	return text
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
