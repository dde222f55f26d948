package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// TrackedObject is a single object followed across consecutive frames.
type TrackedObject struct {
	Key            string
	ClassID        int
	FirstSeen      time.Time
	LastSeen       time.Time
	BestConfidence float32
	BestImage      image.Image
	LastDetection  Detection
	DetectionCount int
}

func newTrackedObject(key string, det Detection, t time.Time, img image.Image) *TrackedObject {
	return &TrackedObject{
		Key:            key,
		ClassID:        det.ClassID,
		FirstSeen:      t,
		LastSeen:       t,
		BestConfidence: det.Confidence,
		BestImage:      img,
		LastDetection:  det,
		DetectionCount: 1,
	}
}

// update advances a tracked object with a newly-matched detection. The
// best-confidence image is replaced on ties (>=), favoring the most recent
// frame, matching invariant I5's non-decreasing monotonicity.
func (t *TrackedObject) update(det Detection, at time.Time, img image.Image) {
	t.LastSeen = at
	t.LastDetection = det
	t.DetectionCount++
	if det.Confidence >= t.BestConfidence {
		t.BestConfidence = det.Confidence
		t.BestImage = img
	}
}

// ExpiredTrack is what a Tracker yields when a TrackedObject's quiescence
// window elapses.
type ExpiredTrack struct {
	ClassID        int
	BestConfidence float32
	BestJPEG       []byte
}

// ImageSaver persists a frame for a tracked object; implementations live in
// the storage package. The frame is passed as captured, with no boxes drawn
// on it. Saving is best-effort: errors are logged by the caller, not
// returned from Update.
type ImageSaver interface {
	SaveTrackedObjectImage(trackerUUID, objKey string, at time.Time, img image.Image) error
}

// Tracker groups per-frame detections into persistent tracks by class and
// IoU, expiring tracks that have gone quiet for longer than
// DetectionTimeWindow.
type Tracker struct {
	mu sync.Mutex

	classNames            []string
	detectionTimeWindow   time.Duration
	detectionIOUThreshold float32
	saveFrequency         float64

	tracked map[string]*TrackedObject
	order   []string // insertion order, for first-match tie-break
	nextID  int

	uuid  string
	saver ImageSaver
	rng   *rand.Rand
}

// NewTracker builds a Tracker. classNames indexes Detection.ClassID to a
// human-readable name for generated track keys.
func NewTracker(uuid string, classNames []string, detectionTimeWindow time.Duration, detectionIOUThreshold float32, saveFrequency float64, saver ImageSaver) *Tracker {
	return &Tracker{
		classNames:            classNames,
		detectionTimeWindow:   detectionTimeWindow,
		detectionIOUThreshold: detectionIOUThreshold,
		saveFrequency:         saveFrequency,
		tracked:               make(map[string]*TrackedObject),
		uuid:                  uuid,
		saver:                 saver,
		rng:                   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Update expires stale tracks first, then matches or creates tracks for the
// given detections, and returns the tracks that expired in this call.
func (t *Tracker) Update(detections []Detection, frame image.Image, at time.Time) []ExpiredTrack {
	t.mu.Lock()
	defer t.mu.Unlock()

	expired := t.expireOldObjects(at)

	var annotated image.Image
	if len(detections) > 0 {
		annotated = frame
	}

	for _, det := range detections {
		if key, ok := t.findMatch(det); ok {
			tracked := t.tracked[key]
			tracked.update(det, at, annotated)
			if t.saver != nil && t.shouldSave() {
				if err := t.saver.SaveTrackedObjectImage(t.uuid, key, at, frame); err != nil {
					slog.Warn("save tracked object image", "key", key, "error", err)
				}
			}
			continue
		}

		key := t.generateKey(det)
		t.tracked[key] = newTrackedObject(key, det, at, annotated)
		t.order = append(t.order, key)
		if t.saver != nil && t.shouldSave() {
			if err := t.saver.SaveTrackedObjectImage(t.uuid, key, at, frame); err != nil {
				slog.Warn("save tracked object image", "key", key, "error", err)
			}
		}
	}

	results := make([]ExpiredTrack, 0, len(expired))
	for _, tr := range expired {
		if tr.BestImage == nil {
			continue
		}
		jpegBytes, err := encodeJPEG(tr.BestImage, 85)
		if err != nil {
			continue
		}
		results = append(results, ExpiredTrack{
			ClassID:        tr.ClassID,
			BestConfidence: tr.BestConfidence,
			BestJPEG:       jpegBytes,
		})
	}
	return results
}

func (t *Tracker) shouldSave() bool {
	return t.rng.Float64() <= t.saveFrequency
}

// findMatch scans tracked objects in insertion order and returns the first
// whose class matches and whose IoU against the new detection meets the
// threshold.
func (t *Tracker) findMatch(det Detection) (string, bool) {
	for _, key := range t.order {
		tracked, ok := t.tracked[key]
		if !ok {
			continue
		}
		if tracked.ClassID == det.ClassID && iou(tracked.LastDetection.BBox, det.BBox) >= t.detectionIOUThreshold {
			return key, true
		}
	}
	return "", false
}

func (t *Tracker) generateKey(det Detection) string {
	name := fmt.Sprintf("class_%d", det.ClassID)
	if det.ClassID >= 0 && det.ClassID < len(t.classNames) {
		name = t.classNames[det.ClassID]
	}
	key := fmt.Sprintf("%s_%d", name, t.nextID)
	t.nextID++
	return key
}

func (t *Tracker) expireOldObjects(at time.Time) []*TrackedObject {
	var expired []*TrackedObject
	var remainingOrder []string

	for _, key := range t.order {
		tracked, ok := t.tracked[key]
		if !ok {
			continue
		}
		if at.Sub(tracked.LastSeen) > t.detectionTimeWindow {
			expired = append(expired, tracked)
			delete(t.tracked, key)
			continue
		}
		remainingOrder = append(remainingOrder, key)
	}
	t.order = remainingOrder
	return expired
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
