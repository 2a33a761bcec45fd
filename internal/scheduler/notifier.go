package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/ovdsync/internal/core"
)

// Event names what a Notification reports.
type Event string

const (
	EventSyncSucceeded Event = "SYNC_SUCCEEDED"
	EventSyncFailed    Event = "SYNC_FAILED"
	EventSyncDisabled  Event = "SYNC_DISABLED"
)

// Notification is sent to a config's recipients after a scheduled run.
type Notification struct {
	Event         Event           `json:"event"`
	ConfigID      string          `json:"configId"`
	ConfigName    string          `json:"configName"`
	Recipients    []string        `json:"recipients"`
	Status        core.SyncStatus `json:"status,omitempty"`
	SyncHistoryID string          `json:"syncHistoryId,omitempty"`
	RetryCount    int             `json:"retryCount"`
	MaxRetries    int             `json:"maxRetries"`
	Error         string          `json:"error,omitempty"`
	At            time.Time       `json:"at"`
}

// Notifier delivers notifications. A failed delivery is logged by the
// scheduler and never fails the run.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to slog.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n at warn level for failures and info otherwise.
func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Event != EventSyncSucceeded {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "sync notification",
		"event", n.Event,
		"config_id", n.ConfigID,
		"config_name", n.ConfigName,
		"recipients", n.Recipients,
		"retry_count", n.RetryCount,
		"max_retries", n.MaxRetries,
		"error", n.Error,
	)
	return nil
}

// DefaultWebhookTimeout bounds a webhook call when none is configured.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookNotifier POSTs each notification as JSON to a URL. The mail
// relay or chat bridge behind it does the delivery.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a notifier that posts to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify sends n and fails on any non-2xx response.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
