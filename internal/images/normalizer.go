package images

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lehigh-university-libraries/productfinder/internal/models"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 720
	DefaultQuality      = 85
)

// Normalizer bounds image size before the image is sent for classification
type Normalizer struct {
	MaxDimension int
	Quality      int
}

// NewNormalizer creates a normalizer with the default 720px / q85 settings
func NewNormalizer() *Normalizer {
	return &Normalizer{
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
	}
}

// Normalize writes a bounded copy of src next to dst and returns the path written.
// Images whose longer side exceeds MaxDimension are resized and re-encoded as JPEG
// (dst's extension becomes .jpg); smaller images are copied byte for byte.
func (n *Normalizer) Normalize(src, dst string) (string, error) {
	width, height, err := Dimensions(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrImageUnreadable, src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	longer := max(width, height)
	if longer <= n.MaxDimension {
		slog.Debug("Image within size limits, copying", "src", src, "width", width, "height", height)
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
		return dst, nil
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrImageUnreadable, src, err)
	}

	// bounds, not the header, since EXIF orientation may swap the sides
	bounds := img.Bounds()
	newWidth, newHeight := ScaledSize(bounds.Dx(), bounds.Dy(), n.MaxDimension)

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)

	out := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".jpg"
	if err := imaging.Save(resized, out, imaging.JPEGQuality(n.Quality)); err != nil {
		return "", fmt.Errorf("failed to write resized image: %w", err)
	}

	slog.Debug("Resized image", "src", src, "from", fmt.Sprintf("%dx%d", width, height), "to", fmt.Sprintf("%dx%d", newWidth, newHeight))
	return out, nil
}

// ScaledSize returns width and height scaled so the longer side equals limit.
// Sizes already within limit are returned unchanged.
func ScaledSize(width, height, limit int) (int, int) {
	longer := max(width, height)
	if longer <= limit || longer == 0 {
		return width, height
	}
	scale := float64(limit) / float64(longer)
	if width >= height {
		return limit, max(1, int(math.Round(float64(height)*scale)))
	}
	return max(1, int(math.Round(float64(width)*scale))), limit
}

// Dimensions reads only the image header
func Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}

	return cfg.Width, cfg.Height, nil
}

func copyFile(src, dst string) error {
	if src == dst {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrImageUnreadable, src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy image: %w", err)
	}
	return out.Close()
}
