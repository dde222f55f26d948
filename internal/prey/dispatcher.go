package prey

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/your-org/catdoor/internal/observability"
)

// Classifier is the prey classifier capability interface. A nil jpeg input
// (the "permit unavailable" path) must return a negative result.
type Classifier interface {
	Classify(ctx context.Context, jpeg []byte) DetectionResult
}

// RecentExitChecker reports whether the flap logged a reed event recently
// enough to suppress admission.
type RecentExitChecker interface {
	ShouldSuppress(ctx context.Context) bool
}

// DetectionPauser reports whether detection admission should pause (e.g.
// while the flap is already locked).
type DetectionPauser interface {
	ShouldPause() bool
}

// DetectorImageArchive persists every frame the Dispatcher admits to the
// classifier, independent of the Classifier's own prey-positive archive.
// Implementations live in the storage package. Saving is best-effort: a nil
// archive disables persistence entirely.
type DetectorImageArchive interface {
	SaveDetectorImage(jpeg []byte, at time.Time) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	QueueCapacity           int
	MaxConcurrent           int
	IdleTimeout             time.Duration
	SSIMThreshold           float64
	CropWidth               int
	AllowedTriggerPositions map[TriggerPosition]bool
	RequireMiddleAfterRight bool
}

// Dispatcher is the Prey-Detection Dispatcher: a bounded mailbox plus a
// cooperative consumer that runs the classifier under a concurrency cap,
// filters near-duplicate frames via SSIM, and hands completed batches to
// the Engine.
type Dispatcher struct {
	cfg        DispatcherConfig
	queue      chan []byte
	sem        *semaphore.Weighted
	classifier Classifier
	episode    *EpisodeState
	engine     *Engine
	recentExit RecentExitChecker
	pauser     DetectionPauser
	archive    DetectorImageArchive

	mu               sync.Mutex
	previousAdmitted image.Image
}

func NewDispatcher(cfg DispatcherConfig, classifier Classifier, episode *EpisodeState, engine *Engine, recentExit RecentExitChecker, pauser DetectionPauser, archive DetectorImageArchive) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		queue:      make(chan []byte, cfg.QueueCapacity),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		classifier: classifier,
		episode:    episode,
		engine:     engine,
		recentExit: recentExit,
		pauser:     pauser,
		archive:    archive,
	}
}

// Admit is the producer-side entry point, called from the capture thread.
// It never blocks: a full mailbox results in a dropped frame, not a stall.
func (d *Dispatcher) Admit(ctx context.Context, pos TriggerPosition, frame image.Image) {
	if !d.cfg.AllowedTriggerPositions[pos] {
		return
	}
	if d.pauser != nil && d.pauser.ShouldPause() {
		return
	}

	prev := d.episode.Transition(pos)
	orientationDebug := d.cfg.RequireMiddleAfterRight && prev != nil && *prev == PositionRight && pos == PositionMiddle

	if d.recentExit != nil && d.recentExit.ShouldSuppress(ctx) {
		d.episode.Reset()
		return
	}

	d.mu.Lock()
	prevFrame := d.previousAdmitted
	d.mu.Unlock()

	if prevFrame != nil && ssim(prevFrame, frame) > d.cfg.SSIMThreshold {
		return
	}

	// Debug-orientation notifications only fire for frames that survive
	// every admission gate, matching the reference tracker's ordering.
	if orientationDebug {
		d.emitOrientationDebug(ctx, *prev, pos, frame)
	}

	cropped := cropByPosition(frame, pos, d.cfg.CropWidth)
	jpegBytes, err := encodeImageJPEG(cropped, 85)
	if err != nil {
		slog.Error("encode admitted frame", "error", err)
		return
	}

	if d.archive != nil {
		if err := d.archive.SaveDetectorImage(jpegBytes, time.Now()); err != nil {
			slog.Warn("save prey detector image", "error", err)
		}
	}

	d.mu.Lock()
	d.previousAdmitted = frame
	d.mu.Unlock()

	d.episode.RecordAdmission(pos, jpegBytes)

	select {
	case d.queue <- jpegBytes:
		observability.DispatcherQueueDepth.Set(float64(len(d.queue)))
	default:
		observability.DispatcherDropped.Inc()
		slog.Warn("dispatcher mailbox full, dropping admitted frame", "position", pos)
	}
}

func (d *Dispatcher) emitOrientationDebug(ctx context.Context, prev, cur TriggerPosition, frame image.Image) {
	if d.engine == nil {
		return
	}
	slog.Info("orientation transition", "from", prev, "to", cur)
	jpegBytes, err := encodeImageJPEG(frame, 85)
	if err != nil {
		return
	}
	d.engine.notifier.Notify(ctx, "Orientation debug: "+string(prev)+"->"+string(cur), jpegBytes)
}

// Run is the consumer loop: the single long-running cooperative task that
// owns the mailbox, the concurrency semaphore, and batch lifetimes. It
// returns when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		batch []DetectionResult
	)

	timer := time.NewTimer(d.cfg.IdleTimeout)
	defer timer.Stop()

	flush := func() {
		wg.Wait()
		mu.Lock()
		toProcess := batch
		batch = nil
		mu.Unlock()
		if len(toProcess) > 0 {
			d.engine.OnBatch(ctx, toProcess)
		}
	}

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(d.cfg.IdleTimeout)
	}

	for {
		select {
		case item, ok := <-d.queue:
			if !ok {
				flush()
				return
			}
			observability.DispatcherQueueDepth.Set(float64(len(d.queue)))

			wg.Add(1)
			go d.processItem(ctx, item, &mu, &batch, &wg)
			resetTimer()

		case <-timer.C:
			flush()
			resetTimer()

		case <-ctx.Done():
			flush()
			return
		}
	}
}

// processItem runs the classifier under the concurrency semaphore. If a
// permit cannot be acquired immediately, the classifier is still invoked,
// with a nil input, preserving the upstream result-accounting contract
// (every admitted item yields exactly one DetectionResult per batch).
func (d *Dispatcher) processItem(ctx context.Context, item []byte, mu *sync.Mutex, batch *[]DetectionResult, wg *sync.WaitGroup) {
	defer wg.Done()

	var result DetectionResult
	if d.sem.TryAcquire(1) {
		observability.DispatcherInFlight.Inc()
		result = d.classifier.Classify(ctx, item)
		d.sem.Release(1)
		observability.DispatcherInFlight.Dec()
	} else {
		slog.Warn("classifier concurrency limit reached, invoking with nil image")
		result = d.classifier.Classify(ctx, nil)
	}

	mu.Lock()
	*batch = append(*batch, result)
	mu.Unlock()
}

// cropByPosition horizontally crops frame to cropWidth, aligned by trigger
// position: left crops from x=0, right crops from the right edge, middle
// centers the crop. cropWidth<=0 or >= frame width is a pass-through.
func cropByPosition(frame image.Image, pos TriggerPosition, cropWidth int) image.Image {
	bounds := frame.Bounds()
	width := bounds.Dx()
	if cropWidth <= 0 || cropWidth >= width {
		return frame
	}

	var startX int
	switch pos {
	case PositionLeft:
		startX = 0
	case PositionRight:
		startX = width - cropWidth
		if startX < 0 {
			startX = 0
		}
	default: // middle
		startX = (width - cropWidth) / 2
		if startX < 0 {
			startX = 0
		}
	}

	endX := startX + cropWidth
	if endX > width {
		endX = width
		startX = endX - cropWidth
		if startX < 0 {
			startX = 0
		}
	}

	rect := image.Rect(bounds.Min.X+startX, bounds.Min.Y, bounds.Min.X+endX, bounds.Max.Y)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if si, ok := frame.(subImager); ok {
		return si.SubImage(rect)
	}
	return frame
}

func encodeImageJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
