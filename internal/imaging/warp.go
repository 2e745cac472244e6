package imaging

import (
	"fmt"
	"image"
	"math"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/geometry"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
	"github.com/anthonynsimon/bild/parallel"
)

// WarpPerspective maps the quadrilateral src (TL, TR, BR, BL) onto a
// width × height image with bilinear sampling. Destination pixels that fall
// outside the source are black.
func (*Backend) WarpPerspective(img image.Image, src [4]vision.Point, width, height int) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid warp target %dx%d", width, height)
	}

	forward, err := geometry.PerspectiveTransform(src, geometry.RectCorners(float64(width), float64(height)))
	if err != nil {
		return nil, err
	}
	inverse, err := forward.Inverse()
	if err != nil {
		return nil, err
	}

	in := ToRGBA(img)
	sw, sh := in.Rect.Dx(), in.Rect.Dy()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				sp := inverse.Apply(vision.Pt(float64(x), float64(y)))
				o := dst.PixOffset(x, y)
				dst.Pix[o+3] = 255
				if sp.X < -0.5 || sp.Y < -0.5 || sp.X > float64(sw)-0.5 || sp.Y > float64(sh)-0.5 {
					continue
				}
				bilinear(in, sp.X, sp.Y, dst.Pix[o:o+3])
			}
		}
	})
	return dst, nil
}

// bilinear samples the RGB channels of img at (fx, fy) into out.
func bilinear(img *image.RGBA, fx, fy float64, out []uint8) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := fx - float64(x0)
	ay := fy - float64(y0)

	xa, xb := clamp(x0, 0, w-1), clamp(x0+1, 0, w-1)
	ya, yb := clamp(y0, 0, h-1), clamp(y0+1, 0, h-1)

	p00 := img.PixOffset(xa, ya)
	p10 := img.PixOffset(xb, ya)
	p01 := img.PixOffset(xa, yb)
	p11 := img.PixOffset(xb, yb)
	for c := 0; c < 3; c++ {
		top := (1-ax)*float64(img.Pix[p00+c]) + ax*float64(img.Pix[p10+c])
		bottom := (1-ax)*float64(img.Pix[p01+c]) + ax*float64(img.Pix[p11+c])
		out[c] = uint8(math.Round((1-ay)*top + ay*bottom))
	}
}
