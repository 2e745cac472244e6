package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/parallel"
	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned when an operation receives a nil image or one
// with no pixels.
var ErrEmptyImage = errors.New("empty image")

// Backend is the cgo-free vision.Backend.
type Backend struct{}

var _ vision.Backend = (*Backend)(nil)

// NewBackend returns the pure-Go backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name implements vision.Backend.
func (*Backend) Name() string { return "purego" }

// Resize scales img to exactly width × height using bilinear filtering.
func (*Backend) Resize(img image.Image, width, height int) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return ToRGBA(img), nil
	}
	return ToRGBA(imaging.Resize(img, width, height, imaging.Linear)), nil
}

// GaussianBlur smooths img with a Gaussian of radius ksize/2.
func (*Backend) GaussianBlur(img *image.RGBA, ksize int) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	k := vision.OddKernel(ksize)
	if k == 1 {
		return ToRGBA(img), nil
	}
	return ToRGBA(blur.Gaussian(img, float64(k/2))), nil
}

// BilateralFilter smooths flat regions while keeping strong colour edges.
//
// The colour distance is the sum of absolute channel differences and the
// neighbourhood is a disc of diameter d, as in OpenCV.
func (*Backend) BilateralFilter(img *image.RGBA, d int, sigmaColor, sigmaSpace float64) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	if sigmaColor <= 0 {
		sigmaColor = 1
	}
	if sigmaSpace <= 0 {
		sigmaSpace = 1
	}
	radius := d / 2
	if d <= 0 {
		radius = int(math.Round(sigmaSpace * 1.5))
	}
	if radius < 1 {
		return ToRGBA(img), nil
	}

	src := ToRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	type tap struct {
		dx, dy int
		weight float64
	}
	var taps []tap
	spaceCoeff := -0.5 / (sigmaSpace * sigmaSpace)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			r2 := float64(dx*dx + dy*dy)
			if r2 > float64(radius*radius) {
				continue
			}
			taps = append(taps, tap{dx, dy, math.Exp(r2 * spaceCoeff)})
		}
	}

	var colorWeight [3*255 + 1]float64
	colorCoeff := -0.5 / (sigmaColor * sigmaColor)
	for i := range colorWeight {
		colorWeight[i] = math.Exp(float64(i*i) * colorCoeff)
	}

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				o := src.PixOffset(x, y)
				r0, g0, b0 := int(src.Pix[o]), int(src.Pix[o+1]), int(src.Pix[o+2])

				var sr, sg, sb, sw float64
				for _, t := range taps {
					px := clamp(x+t.dx, 0, w-1)
					py := clamp(y+t.dy, 0, h-1)
					p := src.PixOffset(px, py)
					r, g, b := int(src.Pix[p]), int(src.Pix[p+1]), int(src.Pix[p+2])
					wgt := t.weight * colorWeight[absInt(r-r0)+absInt(g-g0)+absInt(b-b0)]
					sr += wgt * float64(r)
					sg += wgt * float64(g)
					sb += wgt * float64(b)
					sw += wgt
				}

				q := dst.PixOffset(x, y)
				dst.Pix[q] = uint8(math.Round(sr / sw))
				dst.Pix[q+1] = uint8(math.Round(sg / sw))
				dst.Pix[q+2] = uint8(math.Round(sb / sw))
				dst.Pix[q+3] = 255
			}
		}
	})
	return dst, nil
}

// Grayscale converts img with BT.601 weights in 14-bit fixed point, matching
// OpenCV's RGB→GRAY rounding.
func (*Backend) Grayscale(img image.Image) (*image.Gray, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	if g, ok := img.(*image.Gray); ok {
		return normGray(g), nil
	}

	src := ToRGBA(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	parallel.Line(h, func(start, end int) {
		for y := start; y < end; y++ {
			s := src.Pix[y*src.Stride:]
			d := dst.Pix[y*dst.Stride:]
			for x := 0; x < w; x++ {
				r, g, b := uint32(s[4*x]), uint32(s[4*x+1]), uint32(s[4*x+2])
				d[x] = uint8((r*4899 + g*9617 + b*1868 + 8192) >> 14)
			}
		}
	})
	return dst, nil
}

// ToRGBA returns img as an *image.RGBA with bounds at the origin. An RGBA
// input already at the origin is copied so callers may mutate the result.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// normGray returns g rebased to the origin with a tight stride, copying only
// when needed.
func normGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	if b.Min == (image.Point{}) && g.Stride == b.Dx() {
		return g
	}
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:(y+1)*dst.Stride], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return dst
}

func isEmpty(img image.Image) bool {
	if img == nil {
		return true
	}
	switch v := img.(type) {
	case *image.RGBA:
		if v == nil {
			return true
		}
	case *image.Gray:
		if v == nil {
			return true
		}
	}
	return img.Bounds().Empty()
}

// clamp constrains an integer value to the range [min, max].
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// reflect101 mirrors an out-of-range index without repeating the edge
// pixel (OpenCV BORDER_REFLECT_101).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
