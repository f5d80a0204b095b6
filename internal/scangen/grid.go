package scangen

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ashureev/sonar-hub/internal/domain"
)

// Default grid dimensions for simulated scans.
const (
	DefaultHeight = 128
	DefaultWidth  = 256
)

var (
	// ErrUnknownPattern is returned for a pattern name the generator does not know.
	ErrUnknownPattern = errors.New("unknown grid pattern")
	// ErrInvalidShape is returned for non-positive grid dimensions.
	ErrInvalidShape = errors.New("grid dimensions must be positive")
)

// GenerateGrid builds a height×width intensity grid for pattern. The scan
// domain is passed explicitly; only object_strong reacts to it (sea scans
// gain a seabed return band). Every value of the result lies in [0,1].
func GenerateGrid(rng *rand.Rand, pattern domain.Pattern, height, width int, d domain.Domain) (domain.Grid, error) {
	if height <= 0 || width <= 0 {
		return domain.Grid{}, fmt.Errorf("%w: %dx%d", ErrInvalidShape, height, width)
	}

	g := domain.NewGrid(height, width)
	for i := range g.Values {
		g.Values[i] = rng.Float64() * 0.3
	}

	switch pattern {
	case domain.PatternClear:
	case domain.PatternObjectStrong:
		objectStrong(rng, g, d)
	case domain.PatternObjectFaint:
		objectFaint(rng, g)
	case domain.PatternLayeredGPR:
		layeredGPR(rng, g)
	case domain.PatternUtilityGPR:
		utilityGPR(rng, g)
	case domain.PatternSmallObjectsSea:
		scatter(rng, g, intRange(rng, 3, 7), 0, 0, [2]int{18, 30}, [2]int{12, 20}, 0.25, 0.45)
	case domain.PatternClutteredAir:
		scatter(rng, g, intRange(rng, 5, 15), g.Rows/4, g.Cols/4, [2]int{15, 25}, [2]int{10, 18}, 0.2, 0.4)
	default:
		return domain.Grid{}, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}

	for i, v := range g.Values {
		g.Values[i] = clamp01(v)
	}
	return g, nil
}

func objectStrong(rng *rand.Rand, g domain.Grid, d domain.Domain) {
	yc, xc := g.Rows/2, g.Cols/2
	yr, xr := g.Rows/7, g.Cols/5
	addNoise(rng, g, yc-yr, yc+yr, xc-xr, xc+xr, 0, 0.75)

	if g.Rows > 50 && d == domain.DomainSea {
		addNoise(rng, g, int(float64(g.Rows)*0.8), int(float64(g.Rows)*0.95), 0, g.Cols, 0.25, 0.1)
	}
}

func objectFaint(rng *rand.Rand, g domain.Grid) {
	yc := g.Rows / pick(rng, []int{2, 3, 4})
	xc := g.Cols / pick(rng, []int{2, 3, 4})
	yr := g.Rows / pick(rng, []int{10, 12, 15})
	xr := g.Cols / pick(rng, []int{6, 8, 10})
	addNoise(rng, g, yc-yr, yc+yr, xc-xr, xc+xr, 0, 0.35)
}

func layeredGPR(rng *rand.Rand, g domain.Grid) {
	h := float64(g.Rows)
	layers := intRange(rng, 2, 5)
	for i := 0; i < layers; i++ {
		depth := int(h * (0.2 + float64(i)*0.2 + uniform(rng, -0.05, 0.05)))
		thickness := int(h * (0.04 + rng.Float64()*0.06))
		if depth >= 0 && depth+thickness < g.Rows {
			addNoise(rng, g, depth, depth+thickness, 0, g.Cols, 0.25, 0.2)
		}
	}
}

func utilityGPR(rng *rand.Rand, g domain.Grid) {
	utilities := intRange(rng, 1, 4)
	spread := float64(g.Cols) / 32
	for u := 0; u < utilities; u++ {
		cx := intRange(rng, g.Cols/4, 3*g.Cols/4)
		apex := intRange(rng, g.Rows/4, g.Rows/2)
		for dx := -g.Cols / 8; dx < g.Cols/8; dx++ {
			x := cx + dx
			y := apex + int(0.05*float64(dx*dx)/spread)
			if x < 0 || x >= g.Cols || y < 0 || y >= g.Rows {
				continue
			}
			g.Set(y, x, min(1, g.At(y, x)+0.6))
			if y+1 < g.Rows {
				g.Set(y+1, x, min(1, g.At(y+1, x)+0.4))
			}
		}
	}
}

// scatter places count blobs centred in [minY,rows)×[minX,cols) with radii
// rows/divY and cols/divX, each scaled by a per-blob gain in [gainLo,gainHi).
func scatter(rng *rand.Rand, g domain.Grid, count, minY, minX int, divY, divX [2]int, gainLo, gainHi float64) {
	for i := 0; i < count; i++ {
		yc := intRange(rng, minY, g.Rows)
		xc := intRange(rng, minX, g.Cols)
		yr := g.Rows / intRange(rng, divY[0], divY[1])
		xr := g.Cols / intRange(rng, divX[0], divX[1])
		addNoise(rng, g, yc-yr, yc+yr, xc-xr, xc+xr, 0, uniform(rng, gainLo, gainHi))
	}
}

// addNoise adds offset + rand*scale to every cell in [r0,r1)×[c0,c1), clipped
// to the grid bounds.
func addNoise(rng *rand.Rand, g domain.Grid, r0, r1, c0, c1 int, offset, scale float64) {
	r0, r1 = max(r0, 0), min(r1, g.Rows)
	c0, c1 = max(c0, 0), min(c1, g.Cols)
	for r := r0; r < r1; r++ {
		for c := c0; c < c1; c++ {
			g.Set(r, c, g.At(r, c)+offset+rng.Float64()*scale)
		}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
