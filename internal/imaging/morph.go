package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
)

// MorphCloseOpen closes small gaps in the foreground and then removes
// isolated specks, both with a square ksize × ksize structuring element.
// Pixels outside the image never affect the result.
func (*Backend) MorphCloseOpen(bin *image.Gray, ksize int) (*image.Gray, error) {
	if isEmpty(bin) {
		return nil, ErrEmptyImage
	}
	src := normGray(bin)
	if ksize <= 1 {
		dst := image.NewGray(src.Rect)
		copy(dst.Pix, src.Pix)
		return dst, nil
	}

	r := ksize / 2
	closed := erode(dilate(src, r), r)
	return dilate(erode(closed, r), r), nil
}

func dilate(src *image.Gray, r int) *image.Gray {
	return rankFilter(src, r, func(a, b uint8) bool { return a > b })
}

func erode(src *image.Gray, r int) *image.Gray {
	return rankFilter(src, r, func(a, b uint8) bool { return a < b })
}

// rankFilter applies a separable square max (or min) filter of radius r.
func rankFilter(src *image.Gray, r int, better func(a, b uint8) bool) *image.Gray {
	width, height := src.Rect.Dx(), src.Rect.Dy()
	tmp := image.NewGray(src.Rect)
	dst := image.NewGray(src.Rect)

	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			in := src.Pix[y*src.Stride : y*src.Stride+width]
			out := tmp.Pix[y*tmp.Stride:]
			for x := 0; x < width; x++ {
				v := in[x]
				for k := max(x-r, 0); k <= min(x+r, width-1); k++ {
					if better(in[k], v) {
						v = in[k]
					}
				}
				out[x] = v
			}
		}
	})
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < width; x++ {
				v := tmp.Pix[y*tmp.Stride+x]
				for k := max(y-r, 0); k <= min(y+r, height-1); k++ {
					if c := tmp.Pix[k*tmp.Stride+x]; better(c, v) {
						v = c
					}
				}
				out[x] = v
			}
		}
	})
	return dst
}
