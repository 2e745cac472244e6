package imaging

import (
	"image"
	"image/color"
)

// createInMemoryImage creates a solid colour RGBA image.
func createInMemoryImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createEdgeTestImage creates a white image with a black square in the
// middle third.
func createEdgeTestImage(width, height int) *image.RGBA {
	img := createInMemoryImage(width, height, color.White)
	for y := height / 3; y < 2*height/3; y++ {
		for x := width / 3; x < 2*width/3; x++ {
			img.Set(x, y, color.Black)
		}
	}
	return img
}

// createGradientImage encodes each pixel's position in its colour:
// R = 5x, G = 5y.
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(5 * x), uint8(5 * y), 0, 255})
		}
	}
	return img
}

// createGray creates a gray image filled with v.
func createGray(width, height int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// fillGray sets every pixel of r to v.
func fillGray(g *image.Gray, r image.Rectangle, v uint8) {
	r = r.Intersect(g.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func countNonZero(g *image.Gray) int {
	n := 0
	for _, v := range g.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}
