//go:build opencv

package cvbackend

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

var errEmptyImage = errors.New("empty image")

// Backend runs each operation through OpenCV.
type Backend struct{}

var _ vision.Backend = (*Backend)(nil)

// New returns the OpenCV backend.
func New() (vision.Backend, error) {
	return &Backend{}, nil
}

// Name implements vision.Backend.
func (b *Backend) Name() string { return "opencv" }

// Resize implements vision.Backend.
func (b *Backend) Resize(img image.Image, width, height int) (*image.RGBA, error) {
	if empty(img) {
		return nil, errEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	src, err := rgbaToBGR(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
	return bgrToRGBA(dst)
}

// GaussianBlur implements vision.Backend.
func (b *Backend) GaussianBlur(img *image.RGBA, ksize int) (*image.RGBA, error) {
	if empty(img) {
		return nil, errEmptyImage
	}
	if ksize <= 1 {
		return copyRGBA(img)
	}
	k := vision.OddKernel(ksize)

	src, err := rgbaToBGR(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.GaussianBlur(src, &dst, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)
	return bgrToRGBA(dst)
}

// BilateralFilter implements vision.Backend.
func (b *Backend) BilateralFilter(img *image.RGBA, d int, sigmaColor, sigmaSpace float64) (*image.RGBA, error) {
	if empty(img) {
		return nil, errEmptyImage
	}
	if d <= 0 {
		return copyRGBA(img)
	}
	src, err := rgbaToBGR(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	// bilateralFilter does not work in place.
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.BilateralFilter(src, &dst, d, sigmaColor, sigmaSpace)
	return bgrToRGBA(dst)
}

// Grayscale implements vision.Backend.
func (b *Backend) Grayscale(img image.Image) (*image.Gray, error) {
	if empty(img) {
		return nil, errEmptyImage
	}
	src, err := rgbaToBGR(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return matToGray(dst)
}

// EqualizeCLAHE implements vision.Backend.
func (b *Backend) EqualizeCLAHE(gray *image.Gray, clipLimit float64, tile int) (*image.Gray, error) {
	if empty(gray) {
		return nil, errEmptyImage
	}
	if tile <= 0 {
		return nil, fmt.Errorf("invalid CLAHE tile count %d", tile)
	}
	src, err := grayToMat(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	clahe := gocv.NewCLAHEWithParams(clipLimit, image.Point{X: tile, Y: tile})
	defer clahe.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	clahe.Apply(src, &dst)
	return matToGray(dst)
}

// AdaptiveThreshold implements vision.Backend.
func (b *Backend) AdaptiveThreshold(gray *image.Gray, blockSize int, c float64) (*image.Gray, error) {
	if empty(gray) {
		return nil, errEmptyImage
	}
	if blockSize < 3 || blockSize%2 == 0 {
		return nil, fmt.Errorf("adaptive threshold block size must be odd and >= 3, got %d", blockSize)
	}
	src, err := grayToMat(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.AdaptiveThreshold(src, &dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv, blockSize, float32(c))
	return matToGray(dst)
}

// MorphCloseOpen implements vision.Backend.
func (b *Backend) MorphCloseOpen(bin *image.Gray, ksize int) (*image.Gray, error) {
	if empty(bin) {
		return nil, errEmptyImage
	}
	src, err := grayToMat(bin)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if ksize <= 1 {
		return matToGray(src)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: ksize, Y: ksize})
	defer kernel.Close()

	closed := gocv.NewMat()
	defer closed.Close()
	gocv.MorphologyEx(src, &closed, gocv.MorphClose, kernel)

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(closed, &opened, gocv.MorphOpen, kernel)
	return matToGray(opened)
}

// Canny implements vision.Backend.
func (b *Backend) Canny(gray *image.Gray, low, high float64) (*image.Gray, error) {
	if empty(gray) {
		return nil, errEmptyImage
	}
	src, err := grayToMat(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Canny(src, &dst, float32(low), float32(high))
	return matToGray(dst)
}

// FindExternalContours implements vision.Backend.
func (b *Backend) FindExternalContours(bin *image.Gray) ([][]image.Point, error) {
	if empty(bin) {
		return nil, errEmptyImage
	}
	src, err := grayToMat(bin)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()
	return contours.ToPoints(), nil
}

// WarpPerspective implements vision.Backend.
func (b *Backend) WarpPerspective(img image.Image, src [4]vision.Point, width, height int) (*image.RGBA, error) {
	if empty(img) {
		return nil, errEmptyImage
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}
	in, err := rgbaToBGR(img)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	srcPts := make([]gocv.Point2f, 4)
	for i, p := range src {
		srcPts[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	w, h := float32(width), float32(height)
	dstPts := []gocv.Point2f{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}

	srcVec := gocv.NewPoint2fVectorFromPoints(srcPts)
	defer srcVec.Close()
	dstVec := gocv.NewPoint2fVectorFromPoints(dstPts)
	defer dstVec.Close()

	m := gocv.GetPerspectiveTransform2f(srcVec, dstVec)
	defer m.Close()
	if m.Empty() {
		return nil, fmt.Errorf("degenerate quadrilateral")
	}

	out := gocv.NewMat()
	defer out.Close()
	gocv.WarpPerspective(in, &out, m, image.Point{X: width, Y: height})
	return bgrToRGBA(out)
}

// SobelXAbs implements vision.Backend.
func (b *Backend) SobelXAbs(gray *image.Gray) (*image.Gray, error) {
	if empty(gray) {
		return nil, errEmptyImage
	}
	src, err := grayToMat(gray)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	grad := gocv.NewMat()
	defer grad.Close()
	gocv.Sobel(src, &grad, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)

	abs := gocv.NewMat()
	defer abs.Close()
	gocv.ConvertScaleAbs(grad, &abs, 1, 0)
	return matToGray(abs)
}

// HoughLinesP implements vision.Backend.
func (b *Backend) HoughLinesP(edges *image.Gray, p vision.HoughParams) ([]vision.Segment, error) {
	if empty(edges) {
		return nil, errEmptyImage
	}
	if p.Rho <= 0 || p.Theta <= 0 || p.Threshold <= 0 {
		return nil, fmt.Errorf("invalid hough parameters %+v", p)
	}
	src, err := grayToMat(edges)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(src, &lines, float32(p.Rho), float32(p.Theta), p.Threshold,
		float32(p.MinLineLength), float32(p.MaxLineGap))

	segs := make([]vision.Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		if len(v) < 4 {
			continue
		}
		segs = append(segs, vision.Segment{X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])})
	}
	return segs, nil
}

func empty(img image.Image) bool {
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

func copyRGBA(img *image.RGBA) (*image.RGBA, error) {
	m, err := rgbaToBGR(img)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return bgrToRGBA(m)
}
