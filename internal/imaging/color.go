package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/lucasb-eyer/go-colorful"
)

// ChannelMeans holds the average of each colour channel over an image.
type ChannelMeans struct {
	R float64 `json:"r"` // Red mean (0-255)
	G float64 `json:"g"` // Green mean (0-255)
	B float64 `json:"b"` // Blue mean (0-255)
}

// Gray returns the mean of the three channel means.
func (m ChannelMeans) Gray() float64 {
	return (m.R + m.G + m.B) / 3
}

// Lightness returns the CIE L* of the mean colour, 0-100.
func (m ChannelMeans) Lightness() float64 {
	c := colorful.Color{R: m.R / 255, G: m.G / 255, B: m.B / 255}
	l, _, _ := c.Lab()
	return l * 100
}

// MeanColor computes ChannelMeans over the whole image.
func MeanColor(img *image.RGBA) ChannelMeans {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return ChannelMeans{}
	}
	var r, g, b uint64
	for y := 0; y < h; y++ {
		row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
		for x := 0; x < w; x++ {
			r += uint64(row[4*x])
			g += uint64(row[4*x+1])
			b += uint64(row[4*x+2])
		}
	}
	n := float64(w * h)
	return ChannelMeans{R: float64(r) / n, G: float64(g) / n, B: float64(b) / n}
}

// WhiteBalance applies gray-world white balance: each channel is scaled so
// its mean matches the mean of all three channels. Channels with a zero mean
// are left unchanged. The result is a new image.
func WhiteBalance(img *image.RGBA) *image.RGBA {
	dst := ToRGBA(img)
	means := MeanColor(dst)
	gray := means.Gray()

	gain := func(mean float64) float64 {
		if mean == 0 {
			return 1
		}
		return gray / mean
	}
	var lut [3][256]uint8
	for c, m := range []float64{means.R, means.G, means.B} {
		k := gain(m)
		for v := 0; v < 256; v++ {
			lut[c][v] = uint8(math.Min(255, math.Round(float64(v)*k)))
		}
	}

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			row := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				row[4*x] = lut[0][row[4*x]]
				row[4*x+1] = lut[1][row[4*x+1]]
				row[4*x+2] = lut[2][row[4*x+2]]
			}
		}
	})
	return dst
}

// Palette returns n visually distinct opaque colours with evenly spaced hues.
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		c := colorful.Hsv(360*float64(i)/float64(max(n, 1)), 0.85, 0.95)
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// parseHexColor converts "#RRGGBB" or "#RRGGBBAA" (leading '#' optional).
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	switch len(hex) {
	case 6:
		c, err := colorful.Hex("#" + hex)
		if err != nil {
			return color.RGBA{}, err
		}
		r, g, b := c.RGB255()
		return color.RGBA{R: r, G: g, B: b, A: 255}, nil
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		return color.RGBA{R: uint8(val >> 24), G: uint8(val >> 16), B: uint8(val >> 8), A: uint8(val)}, nil
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}
}
