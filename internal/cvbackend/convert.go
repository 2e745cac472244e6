//go:build opencv

package cvbackend

import (
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

// rgbaToBGR copies img into a 3-channel BGR Mat.
func rgbaToBGR(img image.Image) (gocv.Mat, error) {
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != 4*rgba.Rect.Dx() {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	mat, err := gocv.NewMatFromBytes(rgba.Rect.Dy(), rgba.Rect.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap image: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}

// bgrToRGBA copies a BGR Mat out into an opaque RGBA image.
func bgrToRGBA(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("opencv returned an empty image")
	}
	rgbaMat := gocv.NewMat()
	defer rgbaMat.Close()
	gocv.CvtColor(mat, &rgbaMat, gocv.ColorBGRToRGBA)

	img := image.NewRGBA(image.Rect(0, 0, rgbaMat.Cols(), rgbaMat.Rows()))
	copy(img.Pix, rgbaMat.ToBytes())
	return img, nil
}

// grayToMat copies a gray image into a single-channel Mat.
func grayToMat(g *image.Gray) (gocv.Mat, error) {
	b := g.Bounds()
	pix := g.Pix
	if b.Min != (image.Point{}) || g.Stride != b.Dx() {
		pix = make([]byte, b.Dx()*b.Dy())
		for y := 0; y < b.Dy(); y++ {
			copy(pix[y*b.Dx():(y+1)*b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	}
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC1, pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to wrap gray image: %w", err)
	}
	// NewMatFromBytes shares pix; clone so the Mat owns its memory.
	owned := mat.Clone()
	mat.Close()
	return owned, nil
}

// matToGray copies a single-channel 8-bit Mat out.
func matToGray(mat gocv.Mat) (*image.Gray, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("opencv returned an empty image")
	}
	if mat.Channels() != 1 {
		return nil, fmt.Errorf("expected 1 channel, got %d", mat.Channels())
	}
	img := image.NewGray(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	copy(img.Pix, mat.ToBytes())
	return img, nil
}
