package vision

import (
	"image"

	"golang.org/x/image/draw"
)

// Preprocess resizes img to (w, h) and packs it into a CHW float32 buffer
// normalized to [0, 1], the layout Detect expects.
func Preprocess(img image.Image, w, h int) []float32 {
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	out := make([]float32, 3*w*h)
	plane := w * h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := resized.PixOffset(x, y)
			r := float32(resized.Pix[idx]) / 255
			g := float32(resized.Pix[idx+1]) / 255
			b := float32(resized.Pix[idx+2]) / 255
			pos := y*w + x
			out[0*plane+pos] = r
			out[1*plane+pos] = g
			out[2*plane+pos] = b
		}
	}
	return out
}
