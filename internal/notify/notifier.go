// Package notify implements the Notifier: an async sink for textual alerts
// that optionally carry a JPEG payload.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/your-org/catdoor/internal/observability"
)

const (
	notifyAttempts = 3
	notifyTimeout  = 10 * time.Second
)

// Sink is the Notifier capability interface used by the decision engine and
// the dispatcher's orientation-debug path.
type Sink interface {
	Notify(ctx context.Context, text string, jpeg []byte)
}

// WebhookNotifier posts alerts to a configured webhook URL as multipart
// form data. Notify is safe to call both from the cooperative main loop and
// from the capture thread: each call runs in its own goroutine and never
// blocks the caller.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: notifyTimeout},
	}
}

// Notify implements Sink. It hands the send off to a background goroutine
// so neither the main loop nor the capture thread ever blocks on an
// outbound HTTP call.
func (n *WebhookNotifier) Notify(ctx context.Context, text string, jpeg []byte) {
	go n.send(context.WithoutCancel(ctx), text, jpeg)
}

func (n *WebhookNotifier) send(ctx context.Context, text string, jpeg []byte) {
	var lastErr error
	for attempt := 0; attempt < notifyAttempts; attempt++ {
		if err := n.sendOnce(ctx, text, jpeg); err != nil {
			lastErr = err
			slog.Warn("notification send failed", "attempt", attempt+1, "error", err)
			continue
		}
		observability.NotificationsSent.WithLabelValues("ok").Inc()
		return
	}
	observability.NotificationsSent.WithLabelValues("failed").Inc()
	slog.Error("notification dropped after retries", "error", lastErr, "text", text)
}

func (n *WebhookNotifier) sendOnce(ctx context.Context, text string, jpeg []byte) error {
	if n.url == "" {
		slog.Info("notification (no webhook configured)", "text", text)
		return nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("text", text); err != nil {
		return fmt.Errorf("write text field: %w", err)
	}
	if len(jpeg) > 0 {
		part, err := writer.CreateFormFile("image", "frame.jpg")
		if err != nil {
			return fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(jpeg); err != nil {
			return fmt.Errorf("write image part: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, &body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

var _ Sink = (*WebhookNotifier)(nil)

// MultiSink fans a notification out to every configured Sink.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Notify(ctx context.Context, text string, jpeg []byte) {
	for _, s := range m.sinks {
		s.Notify(ctx, text, jpeg)
	}
}

var _ Sink = (*MultiSink)(nil)
