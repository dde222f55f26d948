package vision

import (
	"image"
	"testing"
	"time"
)

func blankFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 4, 4))
}

func TestTrackerMatchesByIOUAndKeepsBestConfidence(t *testing.T) {
	tr := NewTracker("test", []string{"cat", "person"}, time.Second, 0.3, 0, nil)

	t0 := time.Unix(0, 0)
	det1 := Detection{ClassID: 0, Confidence: 0.5, BBox: [4]float32{0, 0, 10, 10}}
	tr.Update([]Detection{det1}, blankFrame(), t0)

	// Same object, slightly moved, lower confidence: must match the
	// existing track and NOT replace the best-confidence image (since
	// 0.4 < 0.5), but DetectionCount must still increase.
	det2 := Detection{ClassID: 0, Confidence: 0.4, BBox: [4]float32{1, 1, 11, 11}}
	tr.Update([]Detection{det2}, blankFrame(), t0.Add(100*time.Millisecond))

	if len(tr.tracked) != 1 {
		t.Fatalf("expected 1 tracked object, got %d", len(tr.tracked))
	}
	for _, obj := range tr.tracked {
		if obj.BestConfidence != 0.5 {
			t.Errorf("BestConfidence = %v, want 0.5 (monotonic non-decreasing)", obj.BestConfidence)
		}
		if obj.DetectionCount != 2 {
			t.Errorf("DetectionCount = %d, want 2", obj.DetectionCount)
		}
	}
}

func TestTrackerTieBreakPrefersLatestOnEqualConfidence(t *testing.T) {
	tr := NewTracker("test", []string{"cat"}, time.Second, 0.3, 0, nil)
	t0 := time.Unix(0, 0)

	det := Detection{ClassID: 0, Confidence: 0.5, BBox: [4]float32{0, 0, 10, 10}}
	tr.Update([]Detection{det}, blankFrame(), t0)

	// Equal confidence on the next frame: >= means the image IS replaced.
	latest := blankFrame()
	tr.Update([]Detection{det}, latest, t0.Add(time.Millisecond))

	for _, obj := range tr.tracked {
		if obj.LastSeen != t0.Add(time.Millisecond) {
			t.Errorf("LastSeen not updated on tie: got %v", obj.LastSeen)
		}
		if obj.BestImage != latest {
			t.Error("BestImage not replaced by the latest frame on equal confidence")
		}
	}
}

func TestTrackerExpiresQuietTracks(t *testing.T) {
	tr := NewTracker("test", []string{"cat"}, 500*time.Millisecond, 0.3, 0, nil)
	t0 := time.Unix(0, 0)

	det := Detection{ClassID: 0, Confidence: 0.9, BBox: [4]float32{0, 0, 10, 10}}
	tr.Update([]Detection{det}, blankFrame(), t0)

	expired := tr.Update(nil, blankFrame(), t0.Add(time.Second))
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired track after quiescence window, got %d", len(expired))
	}
	if expired[0].ClassID != 0 {
		t.Errorf("expired track ClassID = %d, want 0", expired[0].ClassID)
	}
	if len(tr.tracked) != 0 {
		t.Errorf("tracker still holds %d tracks after expiry", len(tr.tracked))
	}
}

func TestTrackerFirstMatchInsertionOrder(t *testing.T) {
	tr := NewTracker("test", []string{"cat"}, time.Second, 0.01, 0, nil)
	t0 := time.Unix(0, 0)

	// Two adjacent (touching, IoU 0) tracks of the same class created back
	// to back.
	tr.Update([]Detection{
		{ClassID: 0, Confidence: 0.5, BBox: [4]float32{0, 0, 10, 10}},
	}, blankFrame(), t0)
	tr.Update([]Detection{
		{ClassID: 0, Confidence: 0.5, BBox: [4]float32{10, 0, 20, 10}},
	}, blankFrame(), t0)

	// A new detection overlapping both equally (IoU 1/3 each, threshold is
	// low) should match the first one in insertion order.
	key, ok := tr.findMatch(Detection{ClassID: 0, Confidence: 0.6, BBox: [4]float32{5, 0, 15, 10}})
	if !ok {
		t.Fatal("expected a match")
	}
	if key != tr.order[0] {
		t.Errorf("findMatch returned %q, want first-inserted key %q", key, tr.order[0])
	}
}
