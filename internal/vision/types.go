// Package vision implements per-frame object detection and short-horizon
// tracking for the catdoor pipeline.
package vision

// Detection is a single object detector output for one frame.
type Detection struct {
	ClassID    int
	Confidence float32
	// BBox is (x1, y1, x2, y2) in frame pixel coordinates.
	BBox [4]float32
}

func (d Detection) width() float32  { return d.BBox[2] - d.BBox[0] }
func (d Detection) height() float32 { return d.BBox[3] - d.BBox[1] }
func (d Detection) area() float32   { return d.width() * d.height() }

func (d Detection) centerX() float32 {
	return d.BBox[0] + d.width()/2
}
