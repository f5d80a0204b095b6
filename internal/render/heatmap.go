package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/patrickmn/go-cache"
	"golang.org/x/image/draw"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Output size limits for rendered heatmaps.
const (
	DefaultWidth  = 600
	DefaultHeight = 300
	MinSide       = 32
	MaxSide       = 2000

	colorBarWidth = 14
	colorBarGap   = 6
)

// ErrEmptyGrid is returned when asked to render a grid with no cells.
var ErrEmptyGrid = errors.New("empty intensity grid")

// Renderer draws heatmaps and memoizes the encoded PNGs.
type Renderer struct {
	cache *cache.Cache
}

// NewRenderer returns a Renderer that keeps rendered images for ttl.
func NewRenderer(ttl time.Duration) *Renderer {
	return &Renderer{cache: cache.New(ttl, ttl*2)}
}

// ClampSize bounds requested output dimensions, substituting defaults for zero values.
func ClampSize(width, height int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return min(max(width, MinSide), MaxSide), min(max(height, MinSide), MaxSide)
}

// Heatmap returns rec's intensity grid rendered as a width×height PNG using
// the record's palette. cacheKey scopes memoization; an empty key disables it.
func (r *Renderer) Heatmap(cacheKey string, rec *domain.ScanRecord, width, height int) ([]byte, error) {
	width, height = ClampSize(width, height)
	key := fmt.Sprintf("%s|%s|%dx%d", cacheKey, rec.ScanID, width, height)
	if cacheKey != "" {
		if cached, found := r.cache.Get(key); found {
			return cached.([]byte), nil
		}
	}

	pal, _ := LookupPalette(rec.ColorScale)
	png, err := DrawHeatmap(rec.IntensityGrid, pal, width, height)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rec.ScanID, err)
	}

	if cacheKey != "" {
		r.cache.Set(key, png, cache.DefaultExpiration)
	}
	return png, nil
}

// Forget drops memoized images for cacheKey and scanID at every size.
func (r *Renderer) Forget(cacheKey, scanID string) {
	r.forgetPrefix(cacheKey + "|" + scanID + "|")
}

// ForgetScope drops every memoized image under cacheKey.
func (r *Renderer) ForgetScope(cacheKey string) {
	r.forgetPrefix(cacheKey + "|")
}

func (r *Renderer) forgetPrefix(prefix string) {
	for k := range r.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			r.cache.Delete(k)
		}
	}
}

// DrawHeatmap rasterizes g with pal and appends a vertical color bar.
func DrawHeatmap(g domain.Grid, pal Palette, width, height int) ([]byte, error) {
	if g.Rows == 0 || g.Cols == 0 {
		return nil, ErrEmptyGrid
	}

	src := image.NewNRGBA(image.Rect(0, 0, g.Cols, g.Rows))
	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			src.SetNRGBA(x, y, pal.At(g.At(y, x)))
		}
	}

	plotW := width - colorBarWidth - colorBarGap
	if plotW < 1 {
		plotW = width
	}
	plot := image.NewNRGBA(image.Rect(0, 0, plotW, height))
	draw.ApproxBiLinear.Scale(plot, plot.Bounds(), src, src.Bounds(), draw.Src, nil)

	dc := gg.NewContext(width, height)
	dc.SetColor(color.NRGBA{R: 14, G: 17, B: 23, A: 255})
	dc.Clear()
	dc.DrawImage(plot, 0, 0)

	if plotW < width {
		x0 := float64(plotW + colorBarGap)
		for y := 0; y < height; y++ {
			dc.SetColor(pal.At(1 - float64(y)/float64(max(height-1, 1))))
			dc.DrawRectangle(x0, float64(y), colorBarWidth, 1)
			dc.Fill()
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
