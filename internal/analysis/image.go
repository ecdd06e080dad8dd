package analysis

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os"

	"refboard/internal/filesystem"
	"refboard/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImageDimension is the maximum width or height decoded for analysis.
	// Larger images are downscaled after decoding.
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) kept in
	// memory for analysis, ~20MP or ~80MB in RGBA.
	MaxImagePixels = 20_000_000
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Decode opens an image with EXIF auto-orientation, downscaling it if it
// exceeds MaxImageDimension or MaxImagePixels.
func Decode(ctx context.Context, path string) (image.Image, error) {
	return DecodeConstrained(ctx, path, MaxImageDimension, MaxImagePixels)
}

// DecodeConstrained is Decode with explicit limits.
func DecodeConstrained(ctx context.Context, path string, maxDimension, maxPixels int) (image.Image, error) {
	file, err := openImage(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closeImage(file, path)

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	width, height := config.Width, config.Height
	targetWidth, targetHeight := constrain(width, height, maxDimension, maxPixels)
	if targetWidth == width && targetHeight == height {
		return img, nil
	}

	logging.Debug("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// constrain returns the dimensions an image is scaled to so that neither
// side exceeds maxDimension and the area does not exceed maxPixels.
func constrain(width, height, maxDimension, maxPixels int) (int, int) {
	targetWidth, targetHeight := width, height

	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(targetPixels))
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	return max(targetWidth, 1), max(targetHeight, 1)
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(ctx context.Context, path string) (*ImageDimensions, error) {
	file, err := openImage(ctx, path)
	if err != nil {
		return nil, err
	}
	defer closeImage(file, path)

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// openImage opens path, retrying stale NFS handles for libraries on
// network mounts.
func openImage(ctx context.Context, path string) (*os.File, error) {
	return filesystem.OpenWithRetry(ctx, path, filesystem.DefaultRetryConfig())
}

func closeImage(file *os.File, path string) {
	if err := file.Close(); err != nil {
		logging.Warn("failed to close image file %s: %v", path, err)
	}
}
