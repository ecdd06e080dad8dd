package analysis

import (
	"context"
	"errors"
	"image"
	stdcolor "image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func solid(w, h int, c stdcolor.NRGBA) *image.NRGBA {
	return imaging.New(w, h, c)
}

// split paints the left half a and the right half b.
func split(w, h int, a, b stdcolor.NRGBA) *image.NRGBA {
	img := imaging.New(w, h, a)
	right := imaging.New(w-w/2, h, b)
	return imaging.Paste(img, right, image.Pt(w/2, 0))
}

var (
	black = stdcolor.NRGBA{0, 0, 0, 255}
	white = stdcolor.NRGBA{255, 255, 255, 255}
	red   = stdcolor.NRGBA{255, 0, 0, 255}
	blue  = stdcolor.NRGBA{0, 0, 255, 255}
)

func TestDominantColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  image.Image
		want string
	}{
		{name: "solid red", img: solid(10, 10, red), want: "#ff0000"},
		{name: "large solid blue is downsampled", img: solid(300, 200, blue), want: "#0000ff"},
		{name: "majority wins", img: imaging.Paste(solid(10, 10, red), solid(3, 10, white), image.Pt(0, 0)), want: "#ff0000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DominantColor{}.EstimateColor(tt.img)
			if err != nil {
				t.Fatalf("EstimateColor: %v", err)
			}
			if hex := got.Hex(); hex != tt.want {
				t.Errorf("dominant = %s, want %s", hex, tt.want)
			}
		})
	}
}

func TestDominantColorTransparent(t *testing.T) {
	t.Parallel()

	_, err := DominantColor{}.EstimateColor(solid(4, 4, stdcolor.NRGBA{255, 0, 0, 0}))
	if !errors.Is(err, ErrNoPixels) {
		t.Errorf("transparent image error = %v, want ErrNoPixels", err)
	}
}

func TestTone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		img  image.Image
		want string
	}{
		{name: "black", img: solid(8, 8, black), want: "low-short"},
		{name: "white", img: solid(8, 8, white), want: "high-short"},
		{name: "black and white", img: split(20, 20, black, white), want: "mid-long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Tone{}.EstimateTone(tt.img)
			if err != nil {
				t.Fatalf("EstimateTone: %v", err)
			}
			if got != tt.want {
				t.Errorf("tone = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConstrain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		w, h, maxDim, maxPix int
		wantW, wantH         int
	}{
		{100, 50, 4096, 1 << 30, 100, 50},
		{8000, 4000, 4096, 1 << 30, 4096, 2048},
		{4000, 8000, 4096, 1 << 30, 2048, 4096},
		{1000, 1000, 4096, 250_000, 500, 500},
		{1, 10000, 100, 1 << 30, 1, 100},
	}
	for _, tt := range tests {
		w, h := constrain(tt.w, tt.h, tt.maxDim, tt.maxPix)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("constrain(%d,%d,%d,%d) = %dx%d, want %dx%d",
				tt.w, tt.h, tt.maxDim, tt.maxPix, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestDecodeAndAnalyze(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "red.png")
	if err := imaging.Save(solid(50, 30, red), path); err != nil {
		t.Fatal(err)
	}

	dims, err := GetImageDimensions(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if dims.Width != 50 || dims.Height != 30 {
		t.Errorf("dimensions = %dx%d, want 50x30", dims.Width, dims.Height)
	}

	img, err := DecodeConstrained(context.Background(), path, 25, 1<<30)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 25 || b.Dy() != 15 {
		t.Errorf("constrained bounds = %v, want 25x15", b)
	}

	res, err := Analyze(img, DominantColor{}, Tone{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Hex != "#ff0000" {
		t.Errorf("Hex = %s, want #ff0000", res.Hex)
	}
	if res.Tone != "mid-short" {
		t.Errorf("Tone = %s, want mid-short", res.Tone)
	}

	if _, err := Decode(context.Background(), filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsImage(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]bool{
		"a.jpg":        true,
		"dir/B.JPEG":   true,
		"c.webp":       true,
		"d.tif":        true,
		"e.svg":        false,
		"f.txt":        false,
		"no-extension": false,
	} {
		if got := IsImage(path); got != want {
			t.Errorf("IsImage(%q) = %v, want %v", path, got, want)
		}
	}
}
