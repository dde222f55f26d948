package vision

import "testing"

func TestIOU(t *testing.T) {
	cases := []struct {
		name string
		a, b [4]float32
		want float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 1.0 / 3.0},
		{"zero area both", [4]float32{0, 0, 0, 0}, [4]float32{0, 0, 0, 0}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := iou(c.a, c.b)
			if diff := got - c.want; diff > 1e-4 || diff < -1e-4 {
				t.Errorf("iou(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestNMSKeepsHighestConfidencePerCluster(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, Confidence: 0.9, BBox: [4]float32{0, 0, 10, 10}},
		{ClassID: 0, Confidence: 0.5, BBox: [4]float32{1, 1, 11, 11}}, // heavily overlapping, same class
		{ClassID: 1, Confidence: 0.6, BBox: [4]float32{1, 1, 11, 11}}, // different class, should survive
		{ClassID: 0, Confidence: 0.8, BBox: [4]float32{50, 50, 60, 60}}, // disjoint, should survive
	}

	kept := nms(dets, 0.3)

	if len(kept) != 3 {
		t.Fatalf("nms kept %d detections, want 3: %+v", len(kept), kept)
	}
	for _, d := range kept {
		if d.ClassID == 0 && d.Confidence == 0.5 {
			t.Errorf("nms kept suppressed low-confidence duplicate: %+v", d)
		}
	}
}

func TestNMSEmptyInput(t *testing.T) {
	if got := nms(nil, 0.5); len(got) != 0 {
		t.Errorf("nms(nil) = %v, want empty", got)
	}
}
