package prey

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/your-org/catdoor/internal/observability"
)

// TriggerPosition is the left/middle/right bucket of a trigger detection's
// bbox center within the frame.
type TriggerPosition string

const (
	PositionLeft   TriggerPosition = "left"
	PositionMiddle TriggerPosition = "middle"
	PositionRight  TriggerPosition = "right"
)

// ResultKind classifies a single classifier call outcome.
type ResultKind int

const (
	ResultNegative ResultKind = iota
	ResultPositive
	ResultError
)

// DetectionResult is the outcome of one classifier call.
type DetectionResult struct {
	Kind    ResultKind
	Message string
	JPEG    []byte
}

func NegativeResult() DetectionResult { return DetectionResult{Kind: ResultNegative} }

func PositiveResult(message string, jpeg []byte) DetectionResult {
	return DetectionResult{Kind: ResultPositive, Message: message, JPEG: jpeg}
}

func ErrorResult(message string, jpeg []byte) DetectionResult {
	return DetectionResult{Kind: ResultError, Message: message, JPEG: jpeg}
}

func (r DetectionResult) hasImage() bool { return len(r.JPEG) > 0 }

// Decision engine constants, pinned to the upstream reference implementation.
const (
	MinResultsPerBatch          = 1
	RequiredNegativeOnlyBatches = 2
	RequiredDistinctPositions   = 2
)

// EpisodeState is the mutable state spanning one episode: from the first
// admitted trigger frame after a flap/unlock event until the next
// episode-resetting event.
type EpisodeState struct {
	mu sync.Mutex

	consecutiveNegativeOnlyBatches int
	positionsSeen                  map[TriggerPosition]struct{}
	lastEnqueuedJPEG               []byte
	firstMiddleJPEG                []byte
	lastTriggerPosition            *TriggerPosition
}

// NewEpisodeState returns a freshly reset episode.
func NewEpisodeState() *EpisodeState {
	return &EpisodeState{positionsSeen: make(map[TriggerPosition]struct{})}
}

// RecordAdmission updates trigger-position bookkeeping when a frame is
// admitted into the dispatcher mailbox. Must be called with the same JPEG
// bytes that were enqueued.
func (e *EpisodeState) RecordAdmission(pos TriggerPosition, jpeg []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.positionsSeen[pos] = struct{}{}
	e.lastEnqueuedJPEG = jpeg
	if pos == PositionMiddle && e.firstMiddleJPEG == nil {
		e.firstMiddleJPEG = jpeg
	}
}

// Transition returns the previous trigger position and records the new one,
// ahead of the recent-exit gate check, mirroring the reference tracker's
// update-then-check ordering.
func (e *EpisodeState) Transition(pos TriggerPosition) (prev *TriggerPosition) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev = e.lastTriggerPosition
	p := pos
	e.lastTriggerPosition = &p
	return prev
}

// Reset clears all episode-scoped state: called on a positive decision, a
// fresh flap event, or a successful no-prey unlock (invariant I6).
func (e *EpisodeState) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *EpisodeState) resetLocked() {
	e.consecutiveNegativeOnlyBatches = 0
	e.positionsSeen = make(map[TriggerPosition]struct{})
	e.firstMiddleJPEG = nil
	e.lastTriggerPosition = nil
}

func (e *EpisodeState) positionsString() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedPositionsLocked()
}

func (e *EpisodeState) sortedPositionsLocked() string {
	names := make([]string, 0, len(e.positionsSeen))
	for p := range e.positionsSeen {
		names = append(names, string(p))
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "unknown"
	}
	return strings.Join(names, ", ")
}

// Actuator is the subset of the Flap Actuator Client the decision engine
// needs: issuing a no-prey unlock. Locking on a positive result is the
// Classifier's responsibility (see classifier.go), not the decision
// engine's — matching the reference implementation exactly.
type Actuator interface {
	Unlock(ctx context.Context, reason string) (bool, error)
}

// NotificationSink is the subset of the Notifier the decision engine needs.
type NotificationSink interface {
	Notify(ctx context.Context, text string, jpeg []byte)
}

// Engine implements the on_batch decision policy (§4.5): it owns an
// EpisodeState and drives the Actuator/Notifier from accumulated batch
// results.
type Engine struct {
	state    *EpisodeState
	actuator Actuator
	notifier NotificationSink
}

func NewEngine(state *EpisodeState, actuator Actuator, notifier NotificationSink) *Engine {
	return &Engine{state: state, actuator: actuator, notifier: notifier}
}

// OnBatch applies the decision policy to one completed dispatcher batch.
func (e *Engine) OnBatch(ctx context.Context, batch []DetectionResult) {
	if positive, ok := firstPositive(batch); ok {
		e.state.mu.Lock()
		e.state.resetLocked()
		e.state.mu.Unlock()

		observability.BatchesProcessed.WithLabelValues("positive").Inc()
		e.notifier.Notify(ctx, positive.Message, positive.JPEG)
		return
	}

	if len(batch) < MinResultsPerBatch {
		observability.BatchesProcessed.WithLabelValues("empty").Inc()
		return
	}

	e.state.mu.Lock()
	e.state.consecutiveNegativeOnlyBatches++
	count := e.state.consecutiveNegativeOnlyBatches
	e.state.mu.Unlock()

	slog.Info("negative batch", "consecutive", count, "required", RequiredNegativeOnlyBatches)

	if count < RequiredNegativeOnlyBatches {
		observability.BatchesProcessed.WithLabelValues("negative_pending").Inc()
		return
	}

	e.state.mu.Lock()
	distinct := len(e.state.positionsSeen)
	e.state.mu.Unlock()

	if distinct < RequiredDistinctPositions {
		observability.BatchesProcessed.WithLabelValues("negative_pending").Inc()
		return
	}

	unlockMessage, jpeg := e.episodeImage(batch)
	positions := e.state.positionsString()
	caption := unlockMessage + "\nPositions in this episode: " + positions

	ok, err := e.actuator.Unlock(ctx, "No prey detected")
	if err != nil {
		slog.Error("no-prey unlock failed", "error", err)
	}
	if ok {
		observability.BatchesProcessed.WithLabelValues("unlocked").Inc()
		e.notifier.Notify(ctx, caption, jpeg)
	}

	e.state.mu.Lock()
	e.state.resetLocked()
	e.state.mu.Unlock()
}

func firstPositive(batch []DetectionResult) (DetectionResult, bool) {
	for _, r := range batch {
		if r.Kind == ResultPositive {
			return r, true
		}
	}
	return DetectionResult{}, false
}

// episodeImage picks the preferred JPEG and caption prefix for an episode
// close: the first batch result carrying an image, falling back to the
// last enqueued image.
func (e *Engine) episodeImage(batch []DetectionResult) (message string, jpeg []byte) {
	for _, r := range batch {
		if r.hasImage() {
			return "Cat flap unlocked - no prey detected", r.JPEG
		}
	}
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return "Cat flap unlocked - no prey detected", e.state.lastEnqueuedJPEG
}
