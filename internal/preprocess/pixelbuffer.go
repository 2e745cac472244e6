package preprocess

import (
	"image"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// ConvertPixelBuffer copies a locked camera frame into an RGBA image.
//
// The buffer is locked read-only for the duration of the copy and unlocked
// on every return path, including a panic. Rows are read using the buffer's
// own stride so padded rows are handled.
func ConvertPixelBuffer(buf vision.PixelBuffer) (img *image.RGBA, err error) {
	if buf == nil {
		return nil, vision.Errorf(vision.CodeInvalidInput, "pixel buffer", "nil buffer")
	}
	if err := buf.LockReadOnly(); err != nil {
		return nil, vision.NewError(vision.CodeInvalidInput, "pixel buffer", err)
	}
	defer buf.UnlockReadOnly()
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = vision.Errorf(vision.CodeProcessingError, "pixel buffer", "panic: %v", r)
		}
	}()

	w, h := buf.Width(), buf.Height()
	format := buf.PixelFormat()
	bpp := format.BytesPerPixel()
	stride := buf.BytesPerRow()

	switch {
	case w <= 0 || h <= 0:
		return nil, vision.Errorf(vision.CodeInvalidInput, "pixel buffer", "invalid size %dx%d", w, h)
	case bpp == 0:
		return nil, vision.Errorf(vision.CodeInvalidInput, "pixel buffer", "unsupported format %s", format)
	case stride < w*bpp:
		return nil, vision.Errorf(vision.CodeInvalidInput, "pixel buffer", "row stride %d shorter than %d bytes", stride, w*bpp)
	}

	data := buf.BaseAddress()
	if data == nil {
		return nil, vision.Errorf(vision.CodeInvalidInput, "pixel buffer", "no base address")
	}
	if need := stride*(h-1) + w*bpp; len(data) < need {
		return nil, vision.Errorf(vision.CodeInvalidInput, "pixel buffer", "buffer holds %d bytes, need %d", len(data), need)
	}

	img = image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := data[y*stride : y*stride+w*bpp]
		dst := img.Pix[y*img.Stride : y*img.Stride+4*w]
		switch format {
		case vision.PixelFormatRGBA:
			copy(dst, src)
			for x := 0; x < w; x++ {
				dst[4*x+3] = 0xff
			}
		case vision.PixelFormatBGRA:
			for x := 0; x < w; x++ {
				dst[4*x] = src[4*x+2]
				dst[4*x+1] = src[4*x+1]
				dst[4*x+2] = src[4*x]
				dst[4*x+3] = 0xff
			}
		case vision.PixelFormatBGR:
			for x := 0; x < w; x++ {
				dst[4*x] = src[3*x+2]
				dst[4*x+1] = src[3*x+1]
				dst[4*x+2] = src[3*x]
				dst[4*x+3] = 0xff
			}
		case vision.PixelFormatGray8:
			for x := 0; x < w; x++ {
				v := src[x]
				dst[4*x], dst[4*x+1], dst[4*x+2], dst[4*x+3] = v, v, v, 0xff
			}
		}
	}
	return img, nil
}
