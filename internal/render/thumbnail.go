package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// ThumbnailSide is the longest edge of an upload thumbnail.
const ThumbnailSide = 480

// MaxImagePixels bounds the decoded size of an uploaded image.
const MaxImagePixels = 40_000_000

// ErrImageTooLarge is returned when an image header declares more than
// MaxImagePixels pixels.
var ErrImageTooLarge = errors.New("image dimensions too large")

// Thumbnail decodes a PNG or JPEG and returns a PNG scaled so its longest
// edge is at most maxSide. Smaller images keep their size.
func Thumbnail(raw []byte, maxSide int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("decode image: unsupported format %q", format)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}
	if longest := max(w, h); longest > maxSide {
		w = max(1, w*maxSide/longest)
		h = max(1, h*maxSide/longest)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var out bytes.Buffer
	if err := gg.NewContextForImage(dst).EncodePNG(&out); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}
