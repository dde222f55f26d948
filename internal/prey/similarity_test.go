package prey

import (
	"image"
	"image/color"
	"testing"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSSIMIdenticalImages(t *testing.T) {
	a := solidImage(16, 16, color.RGBA{100, 150, 200, 255})
	got := ssim(a, a)
	if got < 0.99 {
		t.Errorf("ssim(identical) = %v, want ~1", got)
	}
}

func TestSSIMDifferentImages(t *testing.T) {
	a := solidImage(16, 16, color.RGBA{0, 0, 0, 255})
	b := solidImage(16, 16, color.RGBA{255, 255, 255, 255})
	got := ssim(a, b)
	if got > 0.5 {
		t.Errorf("ssim(black, white) = %v, want low similarity", got)
	}
}

func TestSSIMDistinguishesSameLumaDifferentHue(t *testing.T) {
	// Red and green here share almost the same grayscale luma
	// (0.299*255 ≈ 0.587*130 ≈ 76), so a luma-only SSIM would call these
	// near-identical. Comparing per RGB channel must not.
	a := solidImage(16, 16, color.RGBA{255, 0, 0, 255})
	b := solidImage(16, 16, color.RGBA{0, 130, 0, 255})

	got := ssim(a, b)
	if got > 0.9 {
		t.Errorf("ssim(red, green same-luma) = %v, want clearly below 1 (channels differ)", got)
	}
}

func TestSSIMDimensionMismatch(t *testing.T) {
	a := solidImage(16, 16, color.RGBA{0, 0, 0, 255})
	b := solidImage(8, 8, color.RGBA{0, 0, 0, 255})
	if got := ssim(a, b); got != 0 {
		t.Errorf("ssim(mismatched dims) = %v, want 0", got)
	}
}
