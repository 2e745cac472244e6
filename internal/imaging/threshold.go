package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// EqualizeCLAHE applies contrast-limited adaptive histogram equalisation.
//
// The image is divided into a tiles × tiles grid. Each tile's histogram is
// clipped at clipLimit × (tile area / 256), the excess is spread evenly over
// all bins, and the resulting mapping is bilinearly interpolated between
// neighbouring tile centres.
func (*Backend) EqualizeCLAHE(gray *image.Gray, clipLimit float64, tiles int) (*image.Gray, error) {
	if isEmpty(gray) {
		return nil, ErrEmptyImage
	}
	if tiles <= 0 {
		return nil, fmt.Errorf("invalid CLAHE tile grid %d", tiles)
	}

	src := normGray(gray)
	width, height := src.Rect.Dx(), src.Rect.Dy()

	tilesX := min(tiles, width)
	tilesY := min(tiles, height)
	tileW := (width + tilesX - 1) / tilesX
	tileH := (height + tilesY - 1) / tilesY

	luts := make([][256]uint8, tilesX*tilesY)
	parallel.Line(tilesY, func(start, end int) {
		for ty := start; ty < end; ty++ {
			for tx := 0; tx < tilesX; tx++ {
				x0, y0 := tx*tileW, ty*tileH
				x1, y1 := min(x0+tileW, width), min(y0+tileH, height)
				luts[ty*tilesX+tx] = claheLUT(src, x0, y0, x1, y1, clipLimit)
			}
		}
	})

	dst := image.NewGray(image.Rect(0, 0, width, height))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			fy := (float64(y)+0.5)/float64(tileH) - 0.5
			ty0 := int(math.Floor(fy))
			wy := fy - float64(ty0)
			ty1 := clamp(ty0+1, 0, tilesY-1)
			ty0 = clamp(ty0, 0, tilesY-1)

			for x := 0; x < width; x++ {
				fx := (float64(x)+0.5)/float64(tileW) - 0.5
				tx0 := int(math.Floor(fx))
				wx := fx - float64(tx0)
				tx1 := clamp(tx0+1, 0, tilesX-1)
				tx0 = clamp(tx0, 0, tilesX-1)

				v := src.Pix[y*src.Stride+x]
				top := (1-wx)*float64(luts[ty0*tilesX+tx0][v]) + wx*float64(luts[ty0*tilesX+tx1][v])
				bottom := (1-wx)*float64(luts[ty1*tilesX+tx0][v]) + wx*float64(luts[ty1*tilesX+tx1][v])
				dst.Pix[y*dst.Stride+x] = uint8(math.Round((1-wy)*top + wy*bottom))
			}
		}
	})
	return dst, nil
}

// claheLUT builds the clipped equalisation mapping for one tile.
func claheLUT(src *image.Gray, x0, y0, x1, y1 int, clipLimit float64) [256]uint8 {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := src.Pix[y*src.Stride:]
		for x := x0; x < x1; x++ {
			hist[row[x]]++
		}
	}
	area := (x1 - x0) * (y1 - y0)

	if clipLimit > 0 {
		limit := max(int(clipLimit*float64(area)/256), 1)
		excess := 0
		for i, c := range hist {
			if c > limit {
				excess += c - limit
				hist[i] = limit
			}
		}
		bonus, residual := excess/256, excess%256
		for i := range hist {
			hist[i] += bonus
		}
		if residual > 0 {
			step := max(256/residual, 1)
			for i := 0; i < 256 && residual > 0; i += step {
				hist[i]++
				residual--
			}
		}
	}

	var lut [256]uint8
	scale := 255.0 / float64(area)
	sum := 0
	for i, c := range hist {
		sum += c
		lut[i] = uint8(clamp(int(math.Round(float64(sum)*scale)), 0, 255))
	}
	return lut
}

// AdaptiveThreshold binarises gray against a Gaussian-weighted local mean:
// a pixel becomes 255 when it is at least c darker than the mean, else 0.
// Uniform areas therefore come out as background.
func (*Backend) AdaptiveThreshold(gray *image.Gray, blockSize int, c float64) (*image.Gray, error) {
	if isEmpty(gray) {
		return nil, ErrEmptyImage
	}
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("adaptive threshold block size must be odd and >= 3, got %d", blockSize)
	}

	src := normGray(gray)
	width, height := src.Rect.Dx(), src.Rect.Dy()
	mean := gaussianSmooth(src, gaussianKernel(blockSize, 0))

	// Pixels exactly at the rounded mean stay background for any c >= 1.
	delta := math.Floor(c)
	dst := image.NewGray(image.Rect(0, 0, width, height))
	for i, m := range mean {
		if float64(src.Pix[i])-math.Round(m) <= -delta {
			dst.Pix[i] = 255
		}
	}
	return dst, nil
}

// gaussianKernel returns a normalised 1D kernel. A non-positive sigma is
// derived from the size the way OpenCV does.
func gaussianKernel(size int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 0.3*(float64(size-1)*0.5-1) + 0.8
	}
	k := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianSmooth convolves a tightly packed gray image with kernel along
// both axes, replicating edge pixels.
func gaussianSmooth(src *image.Gray, kernel []float64) []float64 {
	width, height := src.Rect.Dx(), src.Rect.Dy()
	half := len(kernel) / 2
	tmp := make([]float64, width*height)
	out := make([]float64, width*height)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < width; x++ {
				var s float64
				for k, w := range kernel {
					s += w * float64(row[clamp(x+k-half, 0, width-1)])
				}
				tmp[y*width+x] = s
			}
		}
	})
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var s float64
				for k, w := range kernel {
					s += w * tmp[clamp(y+k-half, 0, height-1)*width+x]
				}
				out[y*width+x] = s
			}
		}
	})
	return out
}
