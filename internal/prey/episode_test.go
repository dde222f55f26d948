package prey

import (
	"context"
	"strings"
	"testing"
)

type fakeActuator struct {
	unlocked bool
	reason   string
}

func (f *fakeActuator) Unlock(ctx context.Context, reason string) (bool, error) {
	f.unlocked = true
	f.reason = reason
	return true, nil
}

type fakeSink struct {
	texts []string
	jpegs [][]byte
}

func (f *fakeSink) Notify(ctx context.Context, text string, jpeg []byte) {
	f.texts = append(f.texts, text)
	f.jpegs = append(f.jpegs, jpeg)
}

func TestEngineUnlocksOnlyAfterRequiredNegativeBatchesAndDistinctPositions(t *testing.T) {
	state := NewEpisodeState()
	actuator := &fakeActuator{}
	sink := &fakeSink{}
	engine := NewEngine(state, actuator, sink)

	state.RecordAdmission(PositionLeft, []byte("img1"))
	engine.OnBatch(context.Background(), []DetectionResult{NegativeResult()})
	if actuator.unlocked {
		t.Fatal("unlocked after first negative batch with only one position seen")
	}

	state.RecordAdmission(PositionMiddle, []byte("img2"))
	engine.OnBatch(context.Background(), []DetectionResult{NegativeResult()})
	if !actuator.unlocked {
		t.Fatal("expected unlock after 2 negative-only batches across 2 distinct positions")
	}
	if actuator.reason != "No prey detected" {
		t.Errorf("unlock reason = %q", actuator.reason)
	}
}

func TestEngineCaptionFormat(t *testing.T) {
	state := NewEpisodeState()
	actuator := &fakeActuator{}
	sink := &fakeSink{}
	engine := NewEngine(state, actuator, sink)

	state.RecordAdmission(PositionRight, []byte("img1"))
	state.RecordAdmission(PositionLeft, []byte("img2"))
	engine.OnBatch(context.Background(), []DetectionResult{NegativeResult()})
	engine.OnBatch(context.Background(), []DetectionResult{NegativeResult()})

	if len(sink.texts) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(sink.texts))
	}
	caption := sink.texts[0]
	wantPrefix := "Cat flap unlocked - no prey detected\nPositions in this episode: "
	if !strings.HasPrefix(caption, wantPrefix) {
		t.Errorf("caption = %q, want prefix %q", caption, wantPrefix)
	}
	if !strings.Contains(caption, "left, right") {
		t.Errorf("caption = %q, want sorted positions %q", caption, "left, right")
	}
}

func TestEnginePositiveResultResetsAndSkipsUnlock(t *testing.T) {
	state := NewEpisodeState()
	actuator := &fakeActuator{}
	sink := &fakeSink{}
	engine := NewEngine(state, actuator, sink)

	state.RecordAdmission(PositionLeft, []byte("img1"))
	engine.OnBatch(context.Background(), []DetectionResult{PositiveResult("CAT WITH PREY DETECTED", []byte("prey.jpg"))})

	if actuator.unlocked {
		t.Fatal("actuator must not be unlocked on a positive result")
	}
	if len(sink.texts) != 1 || sink.texts[0] != "CAT WITH PREY DETECTED" {
		t.Errorf("expected positive notification, got %v", sink.texts)
	}

	state.mu.Lock()
	positions := len(state.positionsSeen)
	state.mu.Unlock()
	if positions != 0 {
		t.Errorf("episode state not reset after positive result: %d positions remain", positions)
	}
}

func TestEngineEmptyBatchDoesNotCount(t *testing.T) {
	state := NewEpisodeState()
	actuator := &fakeActuator{}
	sink := &fakeSink{}
	engine := NewEngine(state, actuator, sink)

	engine.OnBatch(context.Background(), nil)

	state.mu.Lock()
	count := state.consecutiveNegativeOnlyBatches
	state.mu.Unlock()
	if count != 0 {
		t.Errorf("empty batch incremented negative-batch counter to %d", count)
	}
}
