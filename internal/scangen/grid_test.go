package scangen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/sonar-hub/internal/domain"
)

func TestGenerateGrid_ShapeAndBounds(t *testing.T) {
	shapes := [][2]int{{128, 256}, {150, 300}, {1, 1}, {3, 7}, {60, 4}}
	domains := []domain.Domain{domain.DomainSea, domain.DomainLand, domain.DomainAir, domain.DomainGeneric}

	for _, p := range domain.Patterns() {
		for _, s := range shapes {
			for _, d := range domains {
				g, err := GenerateGrid(NewRand(42), p, s[0], s[1], d)
				require.NoError(t, err, "pattern %s shape %v", p, s)
				require.Equal(t, s[0], g.Rows)
				require.Equal(t, s[1], g.Cols)
				require.Len(t, g.Values, s[0]*s[1])
				for i, v := range g.Values {
					if v < 0 || v > 1 {
						t.Fatalf("pattern %s shape %v: value %d = %f outside [0,1]", p, s, i, v)
					}
				}
			}
		}
	}
}

func TestGenerateGrid_Errors(t *testing.T) {
	_, err := GenerateGrid(NewRand(1), "spiral", 10, 10, domain.DomainSea)
	assert.ErrorIs(t, err, ErrUnknownPattern)

	_, err = GenerateGrid(NewRand(1), domain.PatternClear, 0, 10, domain.DomainSea)
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = GenerateGrid(NewRand(1), domain.PatternClear, 10, -1, domain.DomainSea)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestGenerateGrid_ClearIsBackgroundOnly(t *testing.T) {
	g, err := GenerateGrid(NewRand(7), domain.PatternClear, 64, 64, domain.DomainGeneric)
	require.NoError(t, err)
	for _, v := range g.Values {
		require.Less(t, v, 0.3)
	}
}

func TestGenerateGrid_SeabedBandOnlyForSea(t *testing.T) {
	bandMean := func(g domain.Grid) float64 {
		sum, n := 0.0, 0
		for r := int(float64(g.Rows) * 0.8); r < int(float64(g.Rows)*0.95); r++ {
			for c := 0; c < g.Cols; c++ {
				sum += g.At(r, c)
				n++
			}
		}
		return sum / float64(n)
	}

	sea, err := GenerateGrid(NewRand(3), domain.PatternObjectStrong, 150, 300, domain.DomainSea)
	require.NoError(t, err)
	land, err := GenerateGrid(NewRand(3), domain.PatternObjectStrong, 150, 300, domain.DomainLand)
	require.NoError(t, err)

	assert.Greater(t, bandMean(sea), 0.3)
	assert.Less(t, bandMean(land), 0.2)
}

func TestGenerateGrid_SeedReproducible(t *testing.T) {
	a, err := GenerateGrid(NewRand(99), domain.PatternClutteredAir, 40, 80, domain.DomainAir)
	require.NoError(t, err)
	b, err := GenerateGrid(NewRand(99), domain.PatternClutteredAir, 40, 80, domain.DomainAir)
	require.NoError(t, err)
	assert.Equal(t, a.Values, b.Values)

	c, err := GenerateGrid(NewRand(100), domain.PatternClutteredAir, 40, 80, domain.DomainAir)
	require.NoError(t, err)
	assert.NotEqual(t, a.Values, c.Values)
}

func TestSeedFor_Stable(t *testing.T) {
	assert.Equal(t, SeedFor("SEA001"), SeedFor("SEA001"))
	assert.NotEqual(t, SeedFor("SEA001"), SeedFor("LAND001"))
	assert.GreaterOrEqual(t, SeedFor("AIR002"), int64(0))
}
