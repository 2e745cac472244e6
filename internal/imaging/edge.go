package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
)

// Canny runs Canny edge detection on an 8-bit gray image.
//
// # Algorithm
//
//  1. Gradient computation: 3×3 Sobel operators on 0-255 intensities,
//     magnitude = |Gx| + |Gy| (OpenCV's default L1 norm)
//
//  2. Non-maximum suppression: thin edges to 1-pixel width by keeping only
//     local maxima along the gradient direction, quantised to 4 sectors
//
//  3. Hysteresis thresholding:
//     - Pixels above high are strong edges (always kept)
//     - Pixels between low and high are weak edges, kept only when
//     8-connected (directly or through other weak edges) to a strong edge
//     - Pixels below low are discarded
//
// No smoothing is applied; blur beforehand if the input is noisy.
// The result holds 255 on edges and 0 elsewhere.
func (*Backend) Canny(gray *image.Gray, low, high float64) (*image.Gray, error) {
	if isEmpty(gray) {
		return nil, ErrEmptyImage
	}
	if low > high {
		low, high = high, low
	}

	src := normGray(gray)
	width, height := src.Rect.Dx(), src.Rect.Dy()
	gx, gy := sobel(src)

	magnitude := make([]float64, width*height)
	for i := range magnitude {
		magnitude[i] = abs(gx[i]) + abs(gy[i])
	}

	// Non-maximum suppression
	const (
		none = iota
		weak
		strong
	)
	class := make([]uint8, width*height)
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			if y == 0 || y == height-1 {
				continue
			}
			for x := 1; x < width-1; x++ {
				i := y*width + x
				mag := magnitude[i]
				if mag <= low {
					continue
				}

				ax, ay := abs(gx[i]), abs(gy[i])
				var n1, n2 float64
				switch {
				case ay <= ax*0.4142135623730951: // tan(22.5°): horizontal gradient
					n1, n2 = magnitude[i-1], magnitude[i+1]
				case ay >= ax*2.414213562373095: // tan(67.5°): vertical gradient
					n1, n2 = magnitude[i-width], magnitude[i+width]
				case (gx[i] > 0) == (gy[i] > 0):
					n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
				default:
					n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
				}

				if mag > n1 && mag >= n2 {
					if mag > high {
						class[i] = strong
					} else {
						class[i] = weak
					}
				}
			}
		}
	})

	// Double threshold and edge tracking by hysteresis
	result := image.NewGray(image.Rect(0, 0, width, height))
	var stack []int
	for i, c := range class {
		if c == strong {
			result.Pix[i] = 255
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				px, py := x+dx, y+dy
				if px < 0 || px >= width || py < 0 || py >= height {
					continue
				}
				j := py*width + px
				if class[j] == weak && result.Pix[j] == 0 {
					result.Pix[j] = 255
					stack = append(stack, j)
				}
			}
		}
	}
	return result, nil
}

// SobelXAbs returns |∂I/∂x| from a 3×3 Sobel kernel, saturated to 255.
// Borders are reflected without repeating the edge pixel.
func (*Backend) SobelXAbs(gray *image.Gray) (*image.Gray, error) {
	if isEmpty(gray) {
		return nil, ErrEmptyImage
	}
	src := normGray(gray)
	width, height := src.Rect.Dx(), src.Rect.Dy()
	gx, _ := sobel(src)

	dst := image.NewGray(image.Rect(0, 0, width, height))
	for i, v := range gx {
		v = abs(v)
		if v > 255 {
			v = 255
		}
		dst.Pix[i] = uint8(v + 0.5)
	}
	return dst, nil
}

// sobel computes the horizontal and vertical 3×3 Sobel responses.
//
//	Gx = [-1 0 1; -2 0 2; -1 0 1]
//	Gy = [-1 -2 -1; 0 0 0; 1 2 1]
func sobel(src *image.Gray) (gx, gy []float64) {
	width, height := src.Rect.Dx(), src.Rect.Dy()
	gx = make([]float64, width*height)
	gy = make([]float64, width*height)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			ym := reflect101(y-1, height) * src.Stride
			y0 := y * src.Stride
			yp := reflect101(y+1, height) * src.Stride
			for x := 0; x < width; x++ {
				xm := reflect101(x-1, width)
				xp := reflect101(x+1, width)

				p := func(row, col int) float64 { return float64(src.Pix[row+col]) }

				gx[y*width+x] = p(ym, xp) - p(ym, xm) +
					2*(p(y0, xp)-p(y0, xm)) +
					p(yp, xp) - p(yp, xm)
				gy[y*width+x] = p(yp, xm) - p(ym, xm) +
					2*(p(yp, x)-p(ym, x)) +
					p(yp, xp) - p(ym, xp)
			}
		}
	})
	return gx, gy
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
