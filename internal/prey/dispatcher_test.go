package prey

import (
	"context"
	"image"
	"testing"
	"time"
)

type nilClassifier struct{ calls int }

func (c *nilClassifier) Classify(ctx context.Context, jpeg []byte) DetectionResult {
	c.calls++
	if jpeg == nil {
		return NegativeResult()
	}
	return NegativeResult()
}

func frame(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestCropByPositionPassThroughWhenNarrowerThanCropWidth(t *testing.T) {
	f := frame(100, 50)
	got := cropByPosition(f, PositionLeft, 200)
	if got.Bounds().Dx() != 100 {
		t.Errorf("expected pass-through at width 100, got %d", got.Bounds().Dx())
	}
}

func TestCropByPositionAligns(t *testing.T) {
	f := frame(300, 100)

	left := cropByPosition(f, PositionLeft, 100)
	if left.Bounds().Min.X != 0 || left.Bounds().Dx() != 100 {
		t.Errorf("left crop = %v, want starting at x=0 width 100", left.Bounds())
	}

	right := cropByPosition(f, PositionRight, 100)
	if right.Bounds().Min.X != 200 || right.Bounds().Dx() != 100 {
		t.Errorf("right crop = %v, want starting at x=200 width 100", right.Bounds())
	}

	middle := cropByPosition(f, PositionMiddle, 100)
	if middle.Bounds().Min.X != 100 || middle.Bounds().Dx() != 100 {
		t.Errorf("middle crop = %v, want starting at x=100 width 100", middle.Bounds())
	}
}

func TestDispatcherAdmitRejectsDisallowedPosition(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		QueueCapacity:           10,
		MaxConcurrent:           1,
		IdleTimeout:             time.Second,
		AllowedTriggerPositions: map[TriggerPosition]bool{PositionMiddle: true},
	}, &nilClassifier{}, NewEpisodeState(), nil, nil, nil, nil)

	d.Admit(context.Background(), PositionLeft, frame(50, 50))

	if len(d.queue) != 0 {
		t.Errorf("expected no admission for disallowed position, queue depth = %d", len(d.queue))
	}
}

func TestDispatcherAdmitDropsWhenMailboxFull(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		QueueCapacity:           1,
		MaxConcurrent:           1,
		IdleTimeout:             time.Hour,
		SSIMThreshold:           2, // never treat frames as duplicates
		AllowedTriggerPositions: map[TriggerPosition]bool{PositionLeft: true},
	}, &nilClassifier{}, NewEpisodeState(), nil, nil, nil, nil)

	d.Admit(context.Background(), PositionLeft, frame(20, 20))
	d.Admit(context.Background(), PositionLeft, frame(21, 21))

	if len(d.queue) != 1 {
		t.Errorf("expected mailbox capped at capacity 1, got %d", len(d.queue))
	}
}

func TestDispatcherAdmitPausesWhenPauserSaysSo(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{
		QueueCapacity:           10,
		MaxConcurrent:           1,
		IdleTimeout:             time.Second,
		AllowedTriggerPositions: map[TriggerPosition]bool{PositionLeft: true},
	}, &nilClassifier{}, NewEpisodeState(), nil, nil, alwaysPause{}, nil)

	d.Admit(context.Background(), PositionLeft, frame(20, 20))

	if len(d.queue) != 0 {
		t.Errorf("expected admission to be paused, queue depth = %d", len(d.queue))
	}
}

type alwaysPause struct{}

func (alwaysPause) ShouldPause() bool { return true }
