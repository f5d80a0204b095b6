// Package render draws intensity grids and uploaded images as PNGs.
package render

import (
	"image/color"
	"sort"
	"strings"
)

// DefaultPalette is used when a record names an unknown palette.
const DefaultPalette = "Viridis"

var palettes = map[string][]color.NRGBA{
	"viridis": hexStops("440154", "482878", "3e4989", "31688e", "26828e", "1f9e89", "35b779", "6ece58", "b5de2b", "fde725"),
	"plasma":  hexStops("0d0887", "46039f", "7201a8", "9c179e", "bd3786", "d8576b", "ed7953", "fb9f3a", "fdca26", "f0f921"),
	"cividis": hexStops("00224e", "123570", "3b496c", "575d6d", "707173", "8a8678", "a59c74", "c3b369", "e1cc55", "fee838"),
	"inferno": hexStops("000004", "1b0c41", "4a0c6b", "781c6d", "a52c60", "cf4446", "ed6925", "fb9b06", "f7d13d", "fcffa4"),
	"magma":   hexStops("000004", "180f3d", "440f76", "721f81", "9e2f7f", "cd4071", "f1605d", "fd9668", "feca8d", "fcfdbf"),
	"turbo":   hexStops("30123b", "4662d7", "36aaf9", "1ae4b6", "72fe5e", "c8ef34", "faba39", "f66b19", "ca2a04", "7a0403"),
	"gray":    hexStops("000000", "ffffff"),
}

// Palette maps a value in [0,1] to a color.
type Palette struct {
	name  string
	stops []color.NRGBA
}

// PaletteNames returns the supported palette names.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for n := range palettes {
		names = append(names, strings.ToUpper(n[:1])+n[1:])
	}
	sort.Strings(names)
	return names
}

// LookupPalette returns the named palette, matching case-insensitively. The
// boolean is false when name is unknown and the default was substituted.
func LookupPalette(name string) (Palette, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "greys" || key == "grey" {
		key = "gray"
	}
	stops, ok := palettes[key]
	if !ok {
		return Palette{name: DefaultPalette, stops: palettes["viridis"]}, false
	}
	return Palette{name: name, stops: stops}, true
}

// Name returns the palette name.
func (p Palette) Name() string { return p.name }

// At linearly interpolates the palette at v, clamping v to [0,1].
func (p Palette) At(v float64) color.NRGBA {
	if v <= 0 {
		return p.stops[0]
	}
	if v >= 1 {
		return p.stops[len(p.stops)-1]
	}
	pos := v * float64(len(p.stops)-1)
	i := int(pos)
	f := pos - float64(i)
	a, b := p.stops[i], p.stops[i+1]
	return color.NRGBA{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
		A: 255,
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

func hexStops(hexes ...string) []color.NRGBA {
	out := make([]color.NRGBA, 0, len(hexes))
	for _, h := range hexes {
		out = append(out, color.NRGBA{R: hexByte(h[0:2]), G: hexByte(h[2:4]), B: hexByte(h[4:6]), A: 255})
	}
	return out
}

func hexByte(s string) uint8 {
	var v uint8
	for _, c := range s {
		v <<= 4
		switch {
		case c >= '0' && c <= '9':
			v |= uint8(c - '0')
		case c >= 'a' && c <= 'f':
			v |= uint8(c-'a') + 10
		}
	}
	return v
}
