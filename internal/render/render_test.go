package render

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/sonar-hub/internal/domain"
)

func TestLookupPalette(t *testing.T) {
	p, ok := LookupPalette("plasma")
	assert.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 0x0d, G: 0x08, B: 0x87, A: 255}, p.At(0))
	assert.Equal(t, color.NRGBA{R: 0xf0, G: 0xf9, B: 0x21, A: 255}, p.At(1))

	_, ok = LookupPalette("Greys")
	assert.True(t, ok)

	p, ok = LookupPalette("rainbow")
	assert.False(t, ok)
	assert.Equal(t, DefaultPalette, p.Name())
}

func TestPaletteAt_ClampsAndInterpolates(t *testing.T) {
	p, _ := LookupPalette("Gray")
	assert.Equal(t, uint8(0), p.At(-3).R)
	assert.Equal(t, uint8(255), p.At(7).R)
	assert.Equal(t, uint8(128), p.At(0.5).R)
}

func TestPaletteNames(t *testing.T) {
	assert.Equal(t, []string{"Cividis", "Gray", "Inferno", "Magma", "Plasma", "Turbo", "Viridis"}, PaletteNames())
}

func TestClampSize(t *testing.T) {
	w, h := ClampSize(0, 0)
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)

	w, h = ClampSize(5, 99999)
	assert.Equal(t, MinSide, w)
	assert.Equal(t, MaxSide, h)
}

func testRecord() *domain.ScanRecord {
	g := domain.NewGrid(4, 8)
	for i := range g.Values {
		g.Values[i] = float64(i) / float64(len(g.Values))
	}
	return &domain.ScanRecord{ScanID: "SEA001", ColorScale: "Viridis", IntensityGrid: g}
}

func TestHeatmap_DimensionsAndCache(t *testing.T) {
	r := NewRenderer(time.Minute)
	rec := testRecord()

	data, err := r.Heatmap("sess", rec, 200, 100)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 100, img.Bounds().Dy())

	rec.IntensityGrid = domain.Grid{}
	again, err := r.Heatmap("sess", rec, 200, 100)
	require.NoError(t, err, "second call must be served from cache")
	assert.Equal(t, data, again)

	r.Forget("sess", "SEA001")
	_, err = r.Heatmap("sess", rec, 200, 100)
	assert.ErrorIs(t, err, ErrEmptyGrid)
}

func TestHeatmap_ForgetScope(t *testing.T) {
	r := NewRenderer(time.Minute)
	rec := testRecord()

	_, err := r.Heatmap("a:1", rec, 64, 64)
	require.NoError(t, err)
	_, err = r.Heatmap("a:1", rec, 128, 64)
	require.NoError(t, err)
	_, err = r.Heatmap("a:10", rec, 64, 64)
	require.NoError(t, err)
	require.Equal(t, 3, r.cache.ItemCount())

	r.ForgetScope("a:1")
	assert.Equal(t, 1, r.cache.ItemCount())
}

func TestHeatmap_NoCacheKey(t *testing.T) {
	r := NewRenderer(time.Minute)
	rec := testRecord()
	_, err := r.Heatmap("", rec, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, 0, r.cache.ItemCount())
}

func TestThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	out, err := Thumbnail(buf.Bytes(), 100)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestThumbnail_SmallImageKeepsSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 10))))

	out, err := Thumbnail(buf.Bytes(), ThumbnailSide)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestThumbnail_Garbage(t *testing.T) {
	_, err := Thumbnail([]byte("not an image"), 100)
	assert.Error(t, err)
}

// pngWithDeclaredSize returns a small PNG whose header claims width x height.
func pngWithDeclaredSize(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	raw := buf.Bytes()
	// IHDR data starts after the 8-byte signature, length and chunk type.
	binary.BigEndian.PutUint32(raw[16:20], width)
	binary.BigEndian.PutUint32(raw[20:24], height)
	binary.BigEndian.PutUint32(raw[29:33], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func TestThumbnail_RejectsOversizedDimensions(t *testing.T) {
	_, err := Thumbnail(pngWithDeclaredSize(t, 12000, 12000), ThumbnailSide)
	require.ErrorIs(t, err, ErrImageTooLarge)

	_, err = Thumbnail(pngWithDeclaredSize(t, 100000, 500), ThumbnailSide)
	require.ErrorIs(t, err, ErrImageTooLarge)
}
