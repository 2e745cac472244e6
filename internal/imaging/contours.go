package imaging

import (
	"image"
)

// mooreOffsets lists the 8 neighbours clockwise (y grows downward) starting
// east.
var mooreOffsets = [8]image.Point{
	{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1},
}

const west = 4

// FindExternalContours returns the ordered outer boundary of every
// 8-connected foreground region of bin (any non-zero pixel) that is not
// enclosed by another region.
//
// Regions are discovered in raster order, so each boundary starts at its
// region's top-most, left-most pixel and runs clockwise. Holes are not
// traced, and a region lying inside another region's hole is skipped. The
// image is treated as surrounded by background.
func (*Backend) FindExternalContours(bin *image.Gray) ([][]image.Point, error) {
	if isEmpty(bin) {
		return nil, ErrEmptyImage
	}
	src := normGray(bin)
	width, height := src.Rect.Dx(), src.Rect.Dy()

	foreground := func(p image.Point) bool {
		return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height && src.Pix[p.Y*width+p.X] != 0
	}

	outside := outerBackground(src.Pix, width, height)
	visited := make([]bool, width*height)
	contours := make([][]image.Point, 0)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if src.Pix[i] == 0 || visited[i] {
				continue
			}
			start := image.Point{X: x, Y: y}
			// The pixel above a region's first pixel belongs to the
			// background that surrounds the region.
			if y == 0 || outside[i-width] {
				contours = append(contours, traceBoundary(start, foreground, 4*width*height+8))
			}
			floodFill(src.Pix, visited, start, width, height)
		}
	}
	return contours, nil
}

// outerBackground marks the background pixels 4-connected to the image
// edge. Background left unmarked lies in some region's hole.
func outerBackground(pix []uint8, width, height int) []bool {
	outside := make([]bool, width*height)
	var stack []int
	push := func(x, y int) {
		if x < 0 || x >= width || y < 0 || y >= height {
			return
		}
		i := y*width + x
		if pix[i] == 0 && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < width; x++ {
		push(x, 0)
		push(x, height-1)
	}
	for y := 0; y < height; y++ {
		push(0, y)
		push(width-1, y)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		push(x+1, y)
		push(x-1, y)
		push(x, y+1)
		push(x, y-1)
	}
	return outside
}

// traceBoundary walks the outer boundary clockwise with Moore-neighbour
// tracing. start must be the top-most, left-most pixel of its region so that
// its west neighbour is background. Tracing stops when the walk is about to
// leave start towards the same pixel it first moved to, which closes the loop
// for one-pixel-wide regions too.
func traceBoundary(start image.Point, foreground func(image.Point) bool, limit int) []image.Point {
	contour := []image.Point{start}
	cur := start
	backtrack := west
	var second image.Point

	for len(contour) <= limit {
		next := -1
		for i := 1; i <= 8; i++ {
			d := (backtrack + i) % 8
			if foreground(cur.Add(mooreOffsets[d])) {
				next = d
				break
			}
		}
		if next < 0 {
			return contour // isolated pixel
		}

		prev := cur.Add(mooreOffsets[(next+7)%8])
		step := cur.Add(mooreOffsets[next])

		switch {
		case len(contour) == 1:
			second = step
		case cur == start && step == second:
			return contour[:len(contour)-1]
		}

		cur = step
		backtrack = offsetIndex(prev.Sub(cur))
		contour = append(contour, cur)
	}
	return contour
}

// offsetIndex maps a unit neighbour offset back to its Moore index.
func offsetIndex(p image.Point) int {
	for i, o := range mooreOffsets {
		if o == p {
			return i
		}
	}
	return west
}

// floodFill marks every pixel 8-connected to start as visited.
func floodFill(pix []uint8, visited []bool, start image.Point, width, height int) {
	stack := []image.Point{start}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		i := p.Y*width + p.X
		if visited[i] || pix[i] == 0 {
			continue
		}
		visited[i] = true

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				stack = append(stack, image.Point{X: p.X + dx, Y: p.Y + dy})
			}
		}
	}
}
