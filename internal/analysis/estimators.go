package analysis

import (
	"errors"
	"image"
	"math"
	"slices"

	"github.com/disintegration/imaging"

	"refboard/internal/color"
)

// sampleSize is the longest side images are reduced to before estimation.
const sampleSize = 64

// ErrNoPixels is returned for empty or fully transparent images.
var ErrNoPixels = errors.New("image has no opaque pixels")

// ColorEstimator derives a dominant color from pixel data.
type ColorEstimator interface {
	EstimateColor(img image.Image) (color.LCH, error)
}

// ToneEstimator derives a tone label such as "high-short" from pixel data.
type ToneEstimator interface {
	EstimateTone(img image.Image) (string, error)
}

// DominantColor picks the most populated bucket of a coarse RGB histogram
// and returns the mean color of that bucket.
type DominantColor struct {
	// Bits per channel used for bucketing. Zero means 4.
	Bits uint
}

// EstimateColor implements ColorEstimator.
func (d DominantColor) EstimateColor(img image.Image) (color.LCH, error) {
	bits := d.Bits
	if bits == 0 || bits > 8 {
		bits = 4
	}
	shift := 8 - bits

	type bucket struct {
		n       int
		r, g, b int
	}
	buckets := make(map[uint32]*bucket)
	var best *bucket

	forEachOpaque(sample(img), func(r, g, b uint8) {
		key := uint32(r>>shift)<<16 | uint32(g>>shift)<<8 | uint32(b>>shift)
		bk := buckets[key]
		if bk == nil {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.n++
		bk.r += int(r)
		bk.g += int(g)
		bk.b += int(b)
		if best == nil || bk.n > best.n {
			best = bk
		}
	})

	if best == nil {
		return color.LCH{}, ErrNoPixels
	}
	mean := color.RGB{
		R: uint8((best.r + best.n/2) / best.n),
		G: uint8((best.g + best.n/2) / best.n),
		B: uint8((best.b + best.n/2) / best.n),
	}
	return mean.LCH(), nil
}

// Tone classifies an image by key (mean lightness: low, mid, high) and
// range (spread between the 5th and 95th lightness percentiles: short, mid,
// long), joined as "key-range".
type Tone struct{}

// EstimateTone implements ToneEstimator.
func (Tone) EstimateTone(img image.Image) (string, error) {
	var lightness []float64
	forEachOpaque(sample(img), func(r, g, b uint8) {
		lightness = append(lightness, color.RGB{R: r, G: g, B: b}.LCH().L)
	})
	if len(lightness) == 0 {
		return "", ErrNoPixels
	}

	var sum float64
	for _, l := range lightness {
		sum += l
	}
	mean := sum / float64(len(lightness))

	slices.Sort(lightness)
	spread := percentile(lightness, 0.95) - percentile(lightness, 0.05)

	return bucketLabel(mean, "low", "mid", "high") + "-" + bucketLabel(spread, "short", "mid", "long"), nil
}

func bucketLabel(v float64, low, mid, high string) string {
	switch {
	case v < 1.0/3:
		return low
	case v < 2.0/3:
		return mid
	default:
		return high
	}
}

// percentile reads the p-th percentile of sorted values, nearest rank.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Round(p * float64(len(sorted)-1)))
	return sorted[idx]
}

// sample reduces img so its longest side is at most sampleSize.
func sample(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() > sampleSize || b.Dy() > sampleSize {
		return imaging.Fit(img, sampleSize, sampleSize, imaging.Box)
	}
	return imaging.Clone(img)
}

// forEachOpaque calls fn for every pixel with alpha of at least one half.
func forEachOpaque(img *image.NRGBA, fn func(r, g, b uint8)) {
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			if row[x+3] < 128 {
				continue
			}
			fn(row[x], row[x+1], row[x+2])
		}
	}
}

// Result is the output of Analyze.
type Result struct {
	Color color.LCH
	Hex   string
	Tone  string
}

// Analyze runs both estimators on img.
func Analyze(img image.Image, ce ColorEstimator, te ToneEstimator) (Result, error) {
	c, err := ce.EstimateColor(img)
	if err != nil {
		return Result{}, err
	}
	tone, err := te.EstimateTone(img)
	if err != nil {
		return Result{}, err
	}
	return Result{Color: c, Hex: c.Hex(), Tone: tone}, nil
}
