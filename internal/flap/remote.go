package flap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/your-org/catdoor/internal/observability"
)

const remoteHTTPTimeout = 5 * time.Second

// Remote is the remote-HTTP Flap Actuator backend: state lives on an
// external controller reachable over a small status/mode HTTP API. Locking
// is indefinite (no local timer); unlocking schedules a follow-up task that
// polls the reed sensor and then dims from green to yellow, whether or not
// the reed reported the flap open.
type Remote struct {
	baseURL string
	client  *http.Client

	mu          sync.Mutex
	followupGen int
}

func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: remoteHTTPTimeout},
	}
}

func (r *Remote) Lock(ctx context.Context, reason string) (bool, error) {
	r.mu.Lock()
	r.followupGen++
	r.mu.Unlock()

	if err := r.get(ctx, "/mode/red"); err != nil {
		return false, fmt.Errorf("lock flap: %w", err)
	}
	observability.LockEvents.WithLabelValues("lock", reason).Inc()
	slog.Info("flap locked (remote)", "reason", reason)
	return true, nil
}

// Unlock implements the "no-prey unlock" flow: if the controller already
// reads RED it does nothing further and reports the flap as still locked.
// Otherwise it greens the flap immediately and launches a follow-up task
// that polls the reed sensor before dimming to yellow.
func (r *Remote) Unlock(ctx context.Context, reason string) (bool, error) {
	status, err := r.status(ctx)
	if err != nil {
		return false, fmt.Errorf("unlock flap: check status: %w", err)
	}
	if strings.Contains(status, "RED") {
		slog.Info("unlock requested but flap remains locked", "status", status)
		return false, nil
	}

	if err := r.get(ctx, "/mode/green"); err != nil {
		return false, fmt.Errorf("unlock flap: %w", err)
	}

	r.mu.Lock()
	r.followupGen++
	gen := r.followupGen
	r.mu.Unlock()

	go r.followUp(context.Background(), gen)

	observability.LockEvents.WithLabelValues("unlock", reason).Inc()
	slog.Info("flap unlocked (remote)", "reason", reason)
	return true, nil
}

// followUp waits 120s then polls the reed sensor up to 3 times, 30s apart.
// If a poll reports the reed OPEN, it greens once more for 5s before
// dimming to yellow; otherwise it dims to yellow directly. A newer lock/unlock call
// bumps followupGen, which cancels any in-flight follow-up of this kind.
func (r *Remote) followUp(ctx context.Context, gen int) {
	if !r.sleepIfCurrent(ctx, 120*time.Second, gen) {
		return
	}

	reedOpened := false
	for attempt := 0; attempt < 3; attempt++ {
		if !r.stillCurrent(gen) {
			return
		}
		status, err := r.reedStatus(ctx)
		if err != nil {
			slog.Warn("reed status check failed", "error", err, "attempt", attempt+1)
		} else if status == "OPEN" {
			reedOpened = true
			break
		}
		if attempt < 2 {
			if !r.sleepIfCurrent(ctx, 30*time.Second, gen) {
				return
			}
		}
	}

	if !r.stillCurrent(gen) {
		return
	}

	if reedOpened {
		if err := r.get(ctx, "/mode/green"); err != nil {
			slog.Warn("follow-up green failed", "error", err)
		}
		if !r.sleepIfCurrent(ctx, 5*time.Second, gen) {
			return
		}
	}

	if !r.stillCurrent(gen) {
		return
	}
	if err := r.get(ctx, "/mode/yellow"); err != nil {
		slog.Warn("follow-up yellow failed", "error", err)
	}
}

func (r *Remote) stillCurrent(gen int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.followupGen == gen
}

func (r *Remote) sleepIfCurrent(ctx context.Context, d time.Duration, gen int) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return r.stillCurrent(gen)
	case <-ctx.Done():
		return false
	}
}

// status returns the raw text body of GET /status, which contains one of
// RED/YELLOW/GREEN rather than structured JSON.
func (r *Remote) status(ctx context.Context) (string, error) {
	return r.getText(ctx, "/status")
}

func (r *Remote) reedStatus(ctx context.Context) (string, error) {
	var parsed struct {
		ReedStatus string `json:"reed_status"`
	}
	if err := r.getJSON(ctx, "/reed/status", &parsed); err != nil {
		return "", err
	}
	return parsed.ReedStatus, nil
}

func (r *Remote) State() LockState {
	status, err := r.status(context.Background())
	if err != nil {
		slog.Warn("state check failed", "error", err)
		return Unlocked
	}
	if strings.Contains(status, "RED") {
		return Locked
	}
	return Unlocked
}

func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followupGen++
	return nil
}

func (r *Remote) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return nil
}

func (r *Remote) getText(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (r *Remote) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Actuator = (*Remote)(nil)
