package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"bindery/internal/config"
)

const userAgent = "Bindery/0.1.0"

const sendAttempts = 3

// Service defines the notification surface exposed to the daemon components.
type Service interface {
	NotifyReconcileCompleted(ctx context.Context, added, changed, removed int) error
	NotifyConversionFailed(ctx context.Context, title, target string, err error) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:      topic,
		client:        &http.Client{Timeout: timeout},
		sendReconcile: cfg.Notifications.Reconcile,
		sendErrors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sendReconcile bool
	sendErrors    bool
}

func (n *ntfyService) NotifyReconcileCompleted(ctx context.Context, added, changed, removed int) error {
	if !n.sendReconcile {
		return nil
	}
	if added == 0 && changed == 0 && removed == 0 {
		return nil
	}
	data := payload{
		title:   "Bindery - Catalog Updated",
		message: fmt.Sprintf("Library sync: %d added, %d changed, %d removed", added, changed, removed),
		tags:    []string{"bindery", "reconcile", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyConversionFailed(ctx context.Context, title, target string, err error) error {
	if !n.sendErrors {
		return nil
	}
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Conversion to %s failed: %s", strings.ToUpper(strings.TrimSpace(target)), title)
	if err != nil {
		message = fmt.Sprintf("%s\n%s", message, strings.TrimSpace(err.Error()))
	}
	data := payload{
		title:    "Bindery - Conversion Failed",
		message:  message,
		tags:     []string{"bindery", "convert", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendErrors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Bindery - Error",
		message:  builder.String(),
		tags:     []string{"bindery", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Bindery - Test",
		message:  "Notification system test",
		tags:     []string{"bindery", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// send posts to ntfy, retrying transient failures with backoff.
func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	return retry.Do(
		func() error { return n.post(ctx, data) },
		retry.Context(ctx),
		retry.Attempts(sendAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func (n *ntfyService) post(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build ntfy request: %w", err))
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
		err := fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Unrecoverable(err)
		}
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyReconcileCompleted(context.Context, int, int, int) error       { return nil }
func (noopService) NotifyConversionFailed(context.Context, string, string, error) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
