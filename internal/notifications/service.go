package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"asrtt/internal/config"
	"asrtt/internal/timefmt"
)

const userAgent = "asrtt/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventIdleStop         Event = "idle_stop"
	EventTrackingDisabled Event = "tracking_disabled"
	EventTrackingEnabled  Event = "tracking_enabled"
	EventTest             Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service defines the notification surface exposed to the tracker and CLI.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	NotifyIdleStop(ctx context.Context, branch, project string, elapsed time.Duration) error
	NotifyTrackingDisabled(ctx context.Context, active int) error
	NotifyTrackingEnabled(ctx context.Context, threshold int) error
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
		enabled: map[Event]bool{
			EventIdleStop:         cfg.Notifications.IdleStop,
			EventTrackingDisabled: cfg.Notifications.TrackingToggled,
			EventTrackingEnabled:  cfg.Notifications.TrackingToggled,
			EventTest:             true,
		},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	if !n.enabled[event] {
		return nil
	}
	data, ok := format(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyIdleStop(ctx context.Context, branch, project string, elapsed time.Duration) error {
	return n.Publish(ctx, EventIdleStop, Payload{"branch": branch, "project": project, "elapsed": elapsed})
}

func (n *ntfyService) NotifyTrackingDisabled(ctx context.Context, active int) error {
	return n.Publish(ctx, EventTrackingDisabled, Payload{"active": active})
}

func (n *ntfyService) NotifyTrackingEnabled(ctx context.Context, threshold int) error {
	return n.Publish(ctx, EventTrackingEnabled, Payload{"threshold": threshold})
}

func format(event Event, fields Payload) (payload, bool) {
	switch event {
	case EventIdleStop:
		branch := fields.text("branch")
		label := branch
		if project := fields.text("project"); project != "" {
			label = fmt.Sprintf("%s (%s)", branch, project)
		}
		message := fmt.Sprintf("⏸️ Idle, stopped tracking %s", label)
		if elapsed, ok := fields["elapsed"].(time.Duration); ok && elapsed > 0 {
			message = fmt.Sprintf("%s after %s", message, timefmt.Spent(elapsed, true))
		}
		return payload{
			title:   "asrtt - Idle Stop",
			message: message,
			tags:    []string{"asrtt", "idle", "stopped"},
		}, true
	case EventTrackingDisabled:
		active, _ := fields["active"].(int)
		message := "Tracking disabled"
		if active > 0 {
			message = fmt.Sprintf("Tracking disabled, stopping %d active session(s)", active)
		}
		return payload{
			title:    "asrtt - Tracking Disabled",
			message:  message,
			tags:     []string{"asrtt", "tracking", "disabled"},
			priority: "high",
		}, true
	case EventTrackingEnabled:
		threshold, _ := fields["threshold"].(int)
		return payload{
			title:   "asrtt - Tracking Enabled",
			message: fmt.Sprintf("Tracking enabled, max idle time %ds", threshold),
			tags:    []string{"asrtt", "tracking", "enabled"},
		}, true
	case EventTest:
		return payload{
			title:    "asrtt - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"asrtt", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (p Payload) text(key string) string {
	value, _ := p[key].(string)
	return strings.TrimSpace(value)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
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

func (noopService) Publish(context.Context, Event, Payload) error {
	return nil
}

func (noopService) NotifyIdleStop(context.Context, string, string, time.Duration) error {
	return nil
}

func (noopService) NotifyTrackingDisabled(context.Context, int) error {
	return nil
}

func (noopService) NotifyTrackingEnabled(context.Context, int) error {
	return nil
}
