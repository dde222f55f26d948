package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	episodesStreamName  = "EPISODES"
	episodesSubjectBase = "episodes"
)

// EpisodeEvent is published for every notification sent through the sink
// (decision engine, pipeline driver and dispatcher alike), so external subscribers (a dashboard, a log shipper) can react
// without adding request/response coupling to the hot path.
type EpisodeEvent struct {
	Text      string    `json:"text"`
	HasImage  bool      `json:"has_image"`
	Timestamp time.Time `json:"timestamp"`
}

// JetStreamPublisher is an optional episode-event fan-out wrapping the same
// NATS JetStream client pattern used elsewhere in this codebase. It is
// never on the hot path: the dispatcher mailbox stays in-process, and a
// publish failure here only logs a warning.
type JetStreamPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewJetStreamPublisher(natsURL string) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &JetStreamPublisher{nc: nc, js: js}, nil
}

// EnsureStream creates the EPISODES stream if it doesn't already exist.
func (p *JetStreamPublisher) EnsureStream(ctx context.Context) error {
	_, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        episodesStreamName,
		Subjects:    []string{episodesSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Description: "Episode decision notifications",
	})
	if err != nil {
		return fmt.Errorf("ensure episodes stream: %w", err)
	}
	return nil
}

// Notify implements Sink as a secondary fan-out: callers should wrap this
// alongside a WebhookNotifier, not use it alone, since JetStream delivery
// is not the primary alert path.
func (p *JetStreamPublisher) Notify(ctx context.Context, text string, jpeg []byte) {
	event := EpisodeEvent{Text: text, HasImage: len(jpeg) > 0, Timestamp: time.Now()}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal episode event", "error", err)
		return
	}
	if _, err := p.js.Publish(ctx, episodesSubjectBase+".decision", payload); err != nil {
		slog.Warn("publish episode event", "error", err)
	}
}

func (p *JetStreamPublisher) Close() {
	p.nc.Close()
}

var _ Sink = (*JetStreamPublisher)(nil)
