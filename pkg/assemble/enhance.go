package assemble

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Each enhancement blends the image with a degenerate version of itself:
//
//	out = degenerate + factor*(image - degenerate)
//
// clipped to 0..255 and truncated. A factor of 1 returns the image, 0 the
// degenerate, and values above 1 extrapolate away from it.

// blend computes one output sample
func blend(degenerate, src, factor float64) uint8 {
	v := degenerate + factor*(src-degenerate)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// luma returns the ITU-R 601-2 luma of one RGB pixel with the same fixed
// point rounding used by common imaging libraries.
func luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*19595 + uint32(g)*38470 + uint32(b)*7471 + 0x8000) >> 16)
}

// Brightness scales every sample toward or away from black
func Brightness(pix []uint8, factor float64) {
	for i, v := range pix {
		pix[i] = blend(0, float64(v), factor)
	}
}

// Color scales saturation: each pixel moves toward or away from its own luma
func Color(pix []uint8, factor float64) {
	for i := 0; i+2 < len(pix); i += 3 {
		l := float64(luma(pix[i], pix[i+1], pix[i+2]))
		pix[i] = blend(l, float64(pix[i]), factor)
		pix[i+1] = blend(l, float64(pix[i+1]), factor)
		pix[i+2] = blend(l, float64(pix[i+2]), factor)
	}
}

// Contrast scales every sample toward or away from the mean luma of the image
func Contrast(pix []uint8, factor float64) {
	if len(pix) < 3 {
		return
	}
	lumas := make([]float64, len(pix)/3)
	for i := range lumas {
		lumas[i] = float64(luma(pix[i*3], pix[i*3+1], pix[i*3+2]))
	}
	mean := math.Floor(stat.Mean(lumas, nil) + 0.5)
	for i, v := range pix {
		pix[i] = blend(mean, float64(v), factor)
	}
}

// Sharpness blends the image with a 3x3 smoothed copy of itself.
// Border pixels are left as they are.
func Sharpness(pix []uint8, width, height int, factor float64) {
	smooth := Smooth(pix, width, height)
	for i, v := range pix {
		pix[i] = blend(float64(smooth[i]), float64(v), factor)
	}
}

// Smooth applies the kernel
//
//	1 1 1
//	1 5 1
//	1 1 1   / 13
//
// to the interior of an interleaved RGB buffer and copies the border.
func Smooth(pix []uint8, width, height int) []uint8 {
	out := make([]uint8, len(pix))
	copy(out, pix)
	if width < 3 || height < 3 {
		return out
	}

	stride := width * 3
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			for c := 0; c < 3; c++ {
				idx := y*stride + x*3 + c
				sum := 0
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						sum += int(pix[idx+dy*stride+dx*3])
					}
				}
				// centre weight 5 = 1 already counted + 4
				sum += 4 * int(pix[idx])
				out[idx] = uint8(math.Min(255, float64(sum)/13+0.5))
			}
		}
	}
	return out
}
