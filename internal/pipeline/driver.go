// Package pipeline wires the Frame Source, Object Detector, Tracker,
// Dispatcher, Episode Decision Engine, Flap Actuator, and Notifier into the
// Pipeline Driver: the top-level control loop.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/catdoor/internal/capture"
	"github.com/your-org/catdoor/internal/flap"
	"github.com/your-org/catdoor/internal/notify"
	"github.com/your-org/catdoor/internal/observability"
	"github.com/your-org/catdoor/internal/prey"
	"github.com/your-org/catdoor/internal/vision"
)

// Config carries the runtime parameters the driver needs that aren't
// already captured by its component dependencies.
type Config struct {
	TriggerClass          string
	FollowupFrames        int
	InputWidth, InputHeight int
}

// Driver is the Pipeline Driver: it owns the capture/detect loop (the
// "second OS thread" in the reference architecture) and starts the
// Dispatcher's consumer loop (the cooperative main loop).
type Driver struct {
	cfg        Config
	source     capture.Source
	detector   *vision.Detector
	tracker    *vision.Tracker
	dispatcher *prey.Dispatcher
	actuator   flap.Actuator
	notifier   notify.Sink

	mu     sync.RWMutex
	paused bool
}

func NewDriver(cfg Config, source capture.Source, detector *vision.Detector, tracker *vision.Tracker, dispatcher *prey.Dispatcher, actuator flap.Actuator, notifier notify.Sink) *Driver {
	return &Driver{
		cfg:        cfg,
		source:     source,
		detector:   detector,
		tracker:    tracker,
		dispatcher: dispatcher,
		actuator:   actuator,
		notifier:   notifier,
	}
}

// ShouldPause implements prey.DetectionPauser: admission pauses while the
// flap is already locked.
func (d *Driver) ShouldPause() bool {
	return d.actuator.State() == flap.Locked
}

// Run starts the capture/detect loop and the dispatcher consumer loop, and
// blocks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.captureLoop(ctx)
	}()

	wg.Wait()
	return nil
}

func (d *Driver) captureLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := d.source.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("capture frame", "error", err)
			continue
		}

		observability.FramesCaptured.Inc()
		d.processFrame(ctx, frame)
	}
}

func (d *Driver) processFrame(ctx context.Context, frame *capture.Frame) {
	start := time.Now()
	imgData := vision.Preprocess(frame.Image, d.cfg.InputWidth, d.cfg.InputHeight)
	bounds := frame.Image.Bounds()

	detections, err := d.detector.Detect(imgData, bounds.Dx(), bounds.Dy())
	observability.InferenceDuration.WithLabelValues("detector").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Error("run detector", "error", err)
		detections = nil
	}
	for _, det := range detections {
		if det.ClassID >= 0 && det.ClassID < len(d.detector.ClassNames()) {
			observability.DetectionsByClass.WithLabelValues(d.detector.ClassNames()[det.ClassID]).Inc()
		}
	}

	triggerPos, hasTrigger := d.triggerPosition(detections, bounds.Dx())

	expired := d.tracker.Update(detections, frame.Image, frame.Timestamp)

	if hasTrigger {
		d.dispatcher.Admit(ctx, triggerPos, frame.Image)
		d.burstFollowup(ctx, triggerPos)
	}

	for _, ex := range expired {
		if len(ex.BestJPEG) == 0 {
			continue
		}
		d.notifier.Notify(ctx, "Track ended, best confidence observed", ex.BestJPEG)
	}
}

// burstFollowup captures K additional frames without running detection on
// them, passing each straight to the dispatcher under the same trigger
// position, increasing classifier-facing frame density cheaply.
func (d *Driver) burstFollowup(ctx context.Context, pos prey.TriggerPosition) {
	for i := 0; i < d.cfg.FollowupFrames; i++ {
		frame, err := d.source.Capture(ctx)
		if err != nil {
			return
		}
		d.dispatcher.Admit(ctx, pos, frame.Image)
	}
}

// triggerPosition buckets the first trigger-class detection's bbox center
// into left/middle/right thirds of the frame width.
func (d *Driver) triggerPosition(detections []vision.Detection, frameWidth int) (prey.TriggerPosition, bool) {
	names := d.detector.ClassNames()
	for _, det := range detections {
		if det.ClassID < 0 || det.ClassID >= len(names) || names[det.ClassID] != d.cfg.TriggerClass {
			continue
		}
		centerX := (det.BBox[0] + det.BBox[2]) / 2
		third := float32(frameWidth) / 3
		switch {
		case centerX < third:
			return prey.PositionLeft, true
		case centerX > 2*third:
			return prey.PositionRight, true
		default:
			return prey.PositionMiddle, true
		}
	}
	return "", false
}
