package detection

import (
	"image"
	"image/color"
)

// createBinaryMask creates a black mask with the given rectangles filled white.
func createBinaryMask(width, height int, rects ...image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for _, r := range rects {
		r = r.Intersect(g.Rect)
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return g
}

// createEdgeBands creates a gray image whose brightness steps between 100
// and 160 at each x in edges. The pixel at the step takes a third of the
// change so the gradient peak sits on a single column.
func createEdgeBands(width, height int, edges []int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, width, height))
	levels := make([]uint8, width)
	cur, next := 100, 160
	k := 0
	for x := 0; x < width; x++ {
		if k < len(edges) && x == edges[k] {
			levels[x] = uint8(cur + (next-cur)/3)
			cur, next = next, cur
			k++
			continue
		}
		levels[x] = uint8(cur)
	}
	for y := 0; y < height; y++ {
		copy(g.Pix[y*g.Stride:], levels)
	}
	return g
}

// createRodImage draws dark vertical rods of the given width on a light
// background, spanning the full height.
func createRodImage(width, height, rodWidth int, xs []int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{220, 220, 220, 255})
		}
	}
	for _, x0 := range xs {
		for y := 0; y < height; y++ {
			for x := x0; x < x0+rodWidth && x < width; x++ {
				img.SetRGBA(x, y, color.RGBA{30, 30, 30, 255})
			}
		}
	}
	return img
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
