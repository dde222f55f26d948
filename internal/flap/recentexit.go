package flap

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const recentExitTimestampLayout = "2006-01-02 15:04:05"

// RecentExitGate checks an external reed-sensor log to suppress dispatcher
// admission right after the cat has already exited through the flap.
// Failure to reach or parse the endpoint fails open (does not suppress).
type RecentExitGate struct {
	baseURL string
	window  time.Duration
	client  *http.Client
}

func NewRecentExitGate(baseURL string, window time.Duration) *RecentExitGate {
	return &RecentExitGate{
		baseURL: strings.TrimRight(baseURL, "/"),
		window:  window,
		client:  &http.Client{Timeout: remoteHTTPTimeout},
	}
}

// ShouldSuppress implements prey.RecentExitChecker.
func (g *RecentExitGate) ShouldSuppress(ctx context.Context) bool {
	last, err := g.lastExit(ctx)
	if err != nil {
		slog.Warn("recent-exit probe failed, proceeding", "error", err)
		return false
	}
	return time.Since(last) < g.window
}

func (g *RecentExitGate) lastExit(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/logs/reed/last", nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Timestamp string `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(recentExitTimestampLayout, parsed.Timestamp, time.Local)
}
