package reid

import (
	"fmt"
	"math"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/vision"
)

// Descriptor layout constants. These are fixed: changing any of them
// changes the embedding space and makes stored fallback embeddings
// incomparable across runs.
const (
	descriptorWidth  = 128
	descriptorHeight = 256
	histogramBins    = 32  // per channel, over the 0..255 value range
	gradientStride   = 100 // sample every Nth flattened gradient pixel
)

// computeDescriptor builds the deterministic fallback embedding: 32-bin
// histograms for each channel of the RGB, HSV and Lab renderings of a
// fixed-size resize, concatenated with a strided sample of Sobel
// gradient magnitude, then L2-normalized.
func computeDescriptor(crop *vision.Frame) ([]float32, error) {
	if crop == nil || crop.Width() == 0 || crop.Height() == 0 {
		return nil, fmt.Errorf("empty crop")
	}

	resized := crop.Resize(descriptorWidth, descriptorHeight).RGBA()

	features := make([]float32, 0, 3*3*histogramBins+descriptorWidth*descriptorHeight/gradientStride+1)

	var rgb, hsv, lab [3][]uint8
	for i := range rgb {
		rgb[i] = make([]uint8, 0, descriptorWidth*descriptorHeight)
		hsv[i] = make([]uint8, 0, descriptorWidth*descriptorHeight)
		lab[i] = make([]uint8, 0, descriptorWidth*descriptorHeight)
	}
	gray := make([]float64, 0, descriptorWidth*descriptorHeight)

	for y := 0; y < descriptorHeight; y++ {
		for x := 0; x < descriptorWidth; x++ {
			off := resized.PixOffset(x, y)
			r := resized.Pix[off]
			g := resized.Pix[off+1]
			b := resized.Pix[off+2]

			rgb[0] = append(rgb[0], r)
			rgb[1] = append(rgb[1], g)
			rgb[2] = append(rgb[2], b)

			h, s, v := rgbToHSV(r, g, b)
			hsv[0] = append(hsv[0], h)
			hsv[1] = append(hsv[1], s)
			hsv[2] = append(hsv[2], v)

			l, la, lb := rgbToLab(r, g, b)
			lab[0] = append(lab[0], l)
			lab[1] = append(lab[1], la)
			lab[2] = append(lab[2], lb)

			gray = append(gray, 0.299*float64(r)+0.587*float64(g)+0.114*float64(b))
		}
	}

	for _, space := range [][3][]uint8{rgb, hsv, lab} {
		for _, channel := range space {
			features = append(features, histogram(channel)...)
		}
	}

	features = append(features, sampledGradientMagnitude(gray)...)

	return Normalize(features), nil
}

// histogram counts channel values into histogramBins equal-width bins.
func histogram(values []uint8) []float32 {
	hist := make([]float32, histogramBins)
	for _, v := range values {
		hist[int(v)*histogramBins/256]++
	}
	return hist
}

// sampledGradientMagnitude runs a 3x3 Sobel over the grayscale plane and
// returns every gradientStride-th magnitude in row-major order.
func sampledGradientMagnitude(gray []float64) []float32 {
	w, h := descriptorWidth, descriptorHeight
	at := func(x, y int) float64 {
		// Replicate edge pixels so the gradient is defined everywhere.
		if x < 0 {
			x = 0
		}
		if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		return gray[y*w+x]
	}

	var samples []float32
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if idx%gradientStride == 0 {
				gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
					at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
				gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
					at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
				samples = append(samples, float32(math.Sqrt(gx*gx+gy*gy)))
			}
			idx++
		}
	}
	return samples
}

// rgbToHSV converts an sRGB pixel to HSV with all channels scaled to
// 0..255.
func rgbToHSV(r8, g8, b8 uint8) (uint8, uint8, uint8) {
	r := float64(r8) / 255
	g := float64(g8) / 255
	b := float64(b8) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	var h float64
	switch {
	case delta == 0:
		h = 0
	case max == r:
		h = math.Mod((g-b)/delta, 6)
		if h < 0 {
			h += 6
		}
	case max == g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h /= 6 // 0..1

	var s float64
	if max > 0 {
		s = delta / max
	}

	return clampByte(h * 255), clampByte(s * 255), clampByte(max * 255)
}

// rgbToLab converts an sRGB pixel to CIELAB (D65 white point) with L
// scaled from 0..100 and a/b offset from roughly -128..127 into 0..255.
func rgbToLab(r8, g8, b8 uint8) (uint8, uint8, uint8) {
	r := srgbToLinear(float64(r8) / 255)
	g := srgbToLinear(float64(g8) / 255)
	b := srgbToLinear(float64(b8) / 255)

	x := (0.4124564*r + 0.3575761*g + 0.1804375*b) / 0.95047
	y := 0.2126729*r + 0.7151522*g + 0.0721750*b
	z := (0.0193339*r + 0.1191920*g + 0.9503041*b) / 1.08883

	fx := labF(x)
	fy := labF(y)
	fz := labF(z)

	l := 116*fy - 16
	a := 500 * (fx - fy)
	bb := 200 * (fy - fz)

	return clampByte(l * 255 / 100), clampByte(a + 128), clampByte(bb + 128)
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
