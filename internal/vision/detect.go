package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detector runs a YOLO-style single-stage object detector using ONNX
// Runtime. The model is expected to emit one tensor shaped
// [1, 4+C, N] (center-x, center-y, w, h, then one score per class), the
// common export layout for Ultralytics-style YOLO models.
type Detector struct {
	session     *ort.AdvancedSession
	inputTensor *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	inputW, inputH int
	numClasses     int
	numAnchors     int

	classIDs       []int     // indices into the full model class list, in classesOfInterest order
	classNames     []string  // classesOfInterest, same order as classIDs
	thresholds     []float32 // per classOfInterest threshold
	iouThreshold   float32
	minArea        float32
}

// DetectorConfig carries everything needed to build a Detector, independent
// of the config package so this file stays importable from tests.
type DetectorConfig struct {
	ModelPath         string
	InputWidth        int
	InputHeight       int
	TotalModelClasses int      // size of the full class vocabulary the model was trained on
	ClassesOfInterest []string // names, in the order the caller wants results labelled
	ClassIndex        func(name string) (int, error)
	ClassThresholds   map[string]float32
	IOUThreshold      float32
	MinDetectionArea  float32
}

// NewDetector loads the ONNX model described by cfg.
func NewDetector(cfg DetectorConfig, opts *ort.SessionOptions) (*Detector, error) {
	if len(cfg.ClassesOfInterest) == 0 {
		return nil, fmt.Errorf("detector: no classes of interest configured")
	}

	classIDs := make([]int, len(cfg.ClassesOfInterest))
	thresholds := make([]float32, len(cfg.ClassesOfInterest))
	for i, name := range cfg.ClassesOfInterest {
		id, err := cfg.ClassIndex(name)
		if err != nil {
			return nil, fmt.Errorf("detector: resolve class %q: %w", name, err)
		}
		classIDs[i] = id
		thresholds[i] = cfg.ClassThresholds[name]
	}

	// Model output for a W x H input at stride-derived anchor count: YOLO
	// exports typically flatten the three detection heads into a single
	// N = sum((W/8*H/8), (W/16*H/16), (W/32*H/32)) anchor dimension.
	numAnchors := (cfg.InputWidth/8)*(cfg.InputHeight/8) +
		(cfg.InputWidth/16)*(cfg.InputHeight/16) +
		(cfg.InputWidth/32)*(cfg.InputHeight/32)

	inputShape := ort.NewShape(1, 3, int64(cfg.InputHeight), int64(cfg.InputWidth))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("detector: create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, int64(4+cfg.TotalModelClasses), int64(numAnchors))
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("detector: create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("detector: create session: %w", err)
	}

	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       cfg.InputWidth,
		inputH:       cfg.InputHeight,
		numClasses:   cfg.TotalModelClasses,
		numAnchors:   numAnchors,
		classIDs:     classIDs,
		classNames:   cfg.ClassesOfInterest,
		thresholds:   thresholds,
		iouThreshold: cfg.IOUThreshold,
		minArea:      cfg.MinDetectionArea,
	}, nil
}

// InputSize returns the model's expected input dimensions (width, height).
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

// ClassNames returns the configured classes of interest, in Detection.ClassID order.
func (d *Detector) ClassNames() []string {
	return d.classNames
}

// Detect runs inference on a preprocessed CHW float32 buffer (values
// normalized to [0,1], resized to the model's input size) and returns
// detections filtered by per-class threshold, minimum area, and NMS.
// origW/origH are the source frame's dimensions, used to scale boxes back
// to frame coordinates.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("detector: run inference: %w", err)
	}

	out := d.outputTensor.GetData()
	scaleX := float32(origW) / float32(d.inputW)
	scaleY := float32(origH) / float32(d.inputH)

	var detections []Detection
	stride := d.numAnchors

	for a := 0; a < d.numAnchors; a++ {
		cx := out[0*stride+a]
		cy := out[1*stride+a]
		w := out[2*stride+a]
		h := out[3*stride+a]

		var bestScore float32 = -1
		var bestClassIdx int
		for ci, classID := range d.classIDs {
			score := out[(4+classID)*stride+a]
			if score > bestScore {
				bestScore = score
				bestClassIdx = ci
			}
		}

		if bestScore <= d.thresholds[bestClassIdx] {
			continue
		}
		if w*h <= d.minArea/(scaleX*scaleY) {
			continue
		}

		x1 := (cx - w/2) * scaleX
		y1 := (cy - h/2) * scaleY
		x2 := (cx + w/2) * scaleX
		y2 := (cy + h/2) * scaleY

		detections = append(detections, Detection{
			ClassID:    bestClassIdx,
			Confidence: bestScore,
			BBox:       [4]float32{clampF(x1, 0, float32(origW)), clampF(y1, 0, float32(origH)), clampF(x2, 0, float32(origW)), clampF(y2, 0, float32(origH))},
		})
	}

	return nms(detections, d.iouThreshold), nil
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

// nms performs class-aware non-maximum suppression, keeping the
// highest-confidence detection in each overlapping cluster.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] || detections[j].ClassID != detections[i].ClassID {
				continue
			}
			if iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := make([]Detection, 0, len(detections))
	for i, det := range detections {
		if keep[i] {
			result = append(result, det)
		}
	}
	return result
}

// iou computes the corner-form IoU of two boxes. The IoU of two
// zero-area boxes is defined as 0.
func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
