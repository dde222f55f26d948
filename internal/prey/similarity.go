package prey

import (
	"image"
)

// ssim computes a single-scale structural similarity index between two
// equally-sized images, over RGB color channels (not grayscale luma) using
// non-overlapping 8x8 windows (a simplified, dependency-free variant of the
// windowed SSIM formula; no Gaussian weighting), averaged across channels
// and windows. Returns a value in roughly [-1, 1]. Images of differing
// dimensions are treated as dissimilar (0), since the dispatcher
// only ever compares consecutive admitted frames at the same configured
// crop size.
func ssim(a, b image.Image) float64 {
	boundsA := a.Bounds()
	boundsB := b.Bounds()
	if boundsA.Dx() != boundsB.Dx() || boundsA.Dy() != boundsB.Dy() {
		return 0
	}

	const window = 8
	const c1 = (0.01 * 255) * (0.01 * 255)
	const c2 = (0.03 * 255) * (0.03 * 255)

	w, h := boundsA.Dx(), boundsA.Dy()
	var total float64
	var windows int

	for y := 0; y+window <= h; y += window {
		for x := 0; x+window <= w; x += window {
			var channelSum float64
			for ch := 0; ch < 3; ch++ {
				channelSum += windowSSIM(a, b, boundsA.Min.X+x, boundsA.Min.Y+y, boundsB.Min.X+x, boundsB.Min.Y+y, window, ch, c1, c2)
			}
			total += channelSum / 3
			windows++
		}
	}

	if windows == 0 {
		return 0
	}
	return total / float64(windows)
}

func windowSSIM(a, b image.Image, ax, ay, bx, by, size, ch int, c1, c2 float64) float64 {
	n := float64(size * size)
	var sumA, sumB, sumAA, sumBB, sumAB float64

	for dy := 0; dy < size; dy++ {
		for dx := 0; dx < size; dx++ {
			va := channelValue(a, ax+dx, ay+dy, ch)
			vb := channelValue(b, bx+dx, by+dy, ch)
			sumA += va
			sumB += vb
			sumAA += va * va
			sumBB += vb * vb
			sumAB += va * vb
		}
	}

	meanA := sumA / n
	meanB := sumB / n
	varA := sumAA/n - meanA*meanA
	varB := sumBB/n - meanB*meanB
	covAB := sumAB/n - meanA*meanB

	numerator := (2*meanA*meanB + c1) * (2*covAB + c2)
	denominator := (meanA*meanA + meanB*meanB + c1) * (varA + varB + c2)
	if denominator == 0 {
		return 1
	}
	return numerator / denominator
}

// channelValue returns the 8-bit value of one RGB channel (0=R, 1=G, 2=B)
// at (x, y). RGBA() returns 16-bit components, so the result is scaled down.
func channelValue(img image.Image, x, y, ch int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	switch ch {
	case 0:
		return float64(r >> 8)
	case 1:
		return float64(g >> 8)
	default:
		return float64(b >> 8)
	}
}
