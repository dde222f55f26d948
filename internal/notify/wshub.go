package notify

import (
	"context"
	"time"

	"github.com/your-org/catdoor/internal/api/ws"
	"github.com/your-org/catdoor/pkg/dto"
)

// HubSink adapts a ws.Hub to Sink, so every notification also reaches
// connected dashboard clients in real time.
type HubSink struct {
	hub *ws.Hub
}

func NewHubSink(hub *ws.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Notify(ctx context.Context, text string, jpeg []byte) {
	s.hub.BroadcastEvent(&dto.WSEvent{
		Type:      "notification",
		Text:      text,
		HasImage:  len(jpeg) > 0,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

var _ Sink = (*HubSink)(nil)
