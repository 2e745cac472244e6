package vision

import "image"

// Segment is a line segment in pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// HoughParams configures probabilistic Hough line detection.
type HoughParams struct {
	Rho           float64
	Theta         float64
	Threshold     int
	MinLineLength float64
	MaxLineGap    float64
}

// Backend is the set of image operations the pipeline needs.
//
// Every method takes and returns standard library image types with bounds
// starting at (0, 0). Implementations must not retain their inputs and must
// not mutate them. Errors are returned for invalid arguments; unexpected
// failures inside a native library may also surface as panics, which the
// pipeline recovers and reports as CodeProcessingError.
type Backend interface {
	// Name identifies the implementation in logs ("purego", "opencv").
	Name() string

	// Resize scales img to exactly width × height with bilinear sampling.
	Resize(img image.Image, width, height int) (*image.RGBA, error)

	// GaussianBlur smooths with an odd ksize × ksize kernel, sigma derived
	// from the kernel size.
	GaussianBlur(img *image.RGBA, ksize int) (*image.RGBA, error)

	// BilateralFilter performs edge-preserving smoothing.
	BilateralFilter(img *image.RGBA, d int, sigmaColor, sigmaSpace float64) (*image.RGBA, error)

	// Grayscale converts to 8-bit luminance (BT.601 weights).
	Grayscale(img image.Image) (*image.Gray, error)

	// EqualizeCLAHE applies contrast-limited adaptive histogram equalisation
	// over a tile × tile grid.
	EqualizeCLAHE(gray *image.Gray, clipLimit float64, tile int) (*image.Gray, error)

	// AdaptiveThreshold binarises with a Gaussian-weighted local mean minus c.
	// Pixels darker than that level become 255 (inverted binary), so dark
	// structure on a lighter surround is foreground. blockSize must be odd
	// and at least 3.
	AdaptiveThreshold(gray *image.Gray, blockSize int, c float64) (*image.Gray, error)

	// MorphCloseOpen runs a morphological close followed by an open with a
	// square ksize × ksize kernel.
	MorphCloseOpen(bin *image.Gray, ksize int) (*image.Gray, error)

	// Canny returns a binary edge map (0 or 255).
	Canny(gray *image.Gray, low, high float64) (*image.Gray, error)

	// FindExternalContours returns the outer boundary of each foreground
	// (non-zero) region of bin. Regions inside another region's hole are
	// not reported.
	FindExternalContours(bin *image.Gray) ([][]image.Point, error)

	// WarpPerspective maps the quadrilateral src (TL, TR, BR, BL) onto a
	// width × height rectangle.
	WarpPerspective(img image.Image, src [4]Point, width, height int) (*image.RGBA, error)

	// SobelXAbs returns |d/dx| of gray with a 3×3 Sobel kernel, saturated to 8 bits.
	SobelXAbs(gray *image.Gray) (*image.Gray, error)

	// HoughLinesP detects line segments in a binary edge map.
	HoughLinesP(edges *image.Gray, p HoughParams) ([]Segment, error)
}
