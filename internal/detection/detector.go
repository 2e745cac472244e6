package detection

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/geometry"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/preprocess"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Detector finds the frame and segments lanes. It is safe for concurrent
// use; SetParams swaps the parameters atomically.
type Detector struct {
	backend vision.Backend

	mu     sync.RWMutex
	params vision.DetectionParams
}

// New creates a Detector. A nil backend selects the pure-Go one.
func New(backend vision.Backend, params vision.DetectionParams) *Detector {
	if backend == nil {
		backend = imaging.NewBackend()
	}
	return &Detector{backend: backend, params: params}
}

// Params returns a copy of the current parameters.
func (d *Detector) Params() vision.DetectionParams {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.params
}

// SetParams validates and replaces the parameters.
func (d *Detector) SetParams(p vision.DetectionParams) error {
	if err := p.Validate(); err != nil {
		return vision.NewError(vision.CodeInvalidInput, "detection params", err)
	}
	d.mu.Lock()
	d.params = p
	d.mu.Unlock()
	return nil
}

type candidate struct {
	quad []vision.Point
	area float64
	box  vision.Rect
}

// DetectFrame finds the soroban frame in the preprocessed binary mask.
// Detected is false when no contour qualifies.
func (d *Detector) DetectFrame(pre *preprocess.Output) vision.FrameDetectionResult {
	if pre == nil || pre.Binary == nil || pre.Binary.Bounds().Empty() {
		return vision.FrameDetectionResult{}
	}
	p := d.Params()

	contours, err := d.backend.FindExternalContours(pre.Binary)
	if err != nil {
		return vision.FrameDetectionResult{}
	}

	b := pre.Binary.Bounds()
	imageArea := float64(b.Dx() * b.Dy())

	cands := findCandidates(contours, imageArea, p)
	if len(cands) == 0 {
		return vision.FrameDetectionResult{}
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.area > best.area {
			best = c
		}
	}

	areaRatio := best.area / imageArea
	aspect := best.box.Width / best.box.Height
	// The 0.5·areaRatio fallback is unreachable while findCandidates drops
	// out-of-range aspects.
	confidence := 0.5 * areaRatio
	if aspect >= p.MinAspectRatio && aspect <= p.MaxAspectRatio {
		confidence = math.Min(1, 5*areaRatio)
	}

	return vision.FrameDetectionResult{
		Detected:    true,
		Corners:     OrderCorners(best.quad),
		BoundingBox: best.box,
		Confidence:  confidence,
	}
}

func findCandidates(contours [][]image.Point, imageArea float64, p vision.DetectionParams) []candidate {
	minArea := imageArea * p.MinFrameAreaRatio
	maxArea := imageArea * p.MaxFrameAreaRatio

	var out []candidate
	for _, contour := range contours {
		pts := geometry.FromImagePoints(contour)
		if area := geometry.ContourArea(pts); area < minArea || area > maxArea {
			continue
		}

		eps := p.ContourApproxEpsilon * geometry.ArcLength(pts, true)
		approx := geometry.ApproxPolyDP(pts, eps, true)
		if len(approx) != 4 || !geometry.IsConvex(approx) {
			continue
		}

		box := geometry.BoundingRect(approx)
		aspect := box.Width / box.Height
		if aspect < p.MinAspectRatio || aspect > p.MaxAspectRatio {
			continue
		}
		out = append(out, candidate{quad: approx, area: geometry.ContourArea(approx), box: box})
	}
	return out
}

// OrderCorners assigns four points to TL, TR, BR, BL by their quadrant
// relative to the centroid. A quadrant with no point falls back to a fixed
// placeholder: (0,0), (100,0), (100,100) or (0,100). Any other point count
// yields the zero Quadrilateral.
func OrderCorners(pts []vision.Point) vision.Quadrilateral {
	if len(pts) != 4 {
		return vision.Quadrilateral{}
	}
	c := geometry.Centroid(pts)

	var tl, tr, br, bl []vision.Point
	for _, pt := range pts {
		switch {
		case pt.X < c.X && pt.Y < c.Y:
			tl = append(tl, pt)
		case pt.X >= c.X && pt.Y < c.Y:
			tr = append(tr, pt)
		case pt.X >= c.X && pt.Y >= c.Y:
			br = append(br, pt)
		default:
			bl = append(bl, pt)
		}
	}

	pick := func(group []vision.Point, def vision.Point) vision.Point {
		if len(group) == 0 {
			return def
		}
		return group[0]
	}
	return vision.Quadrilateral{
		TopLeft:     pick(tl, vision.Pt(0, 0)),
		TopRight:    pick(tr, vision.Pt(100, 0)),
		BottomRight: pick(br, vision.Pt(100, 100)),
		BottomLeft:  pick(bl, vision.Pt(0, 100)),
	}
}

// WarpFrame rectifies the detected frame to width × height. Non-positive
// sizes fall back to the configured rectified size.
func (d *Detector) WarpFrame(img image.Image, frame vision.FrameDetectionResult, width, height int) (*image.RGBA, error) {
	if !frame.Detected {
		return nil, vision.NewError(vision.CodeFrameNotDetected, "warp", nil)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, vision.Errorf(vision.CodeInvalidInput, "warp", "empty image")
	}
	if width <= 0 || height <= 0 {
		p := d.Params()
		width, height = p.RectifiedWidth, p.RectifiedHeight
	}
	out, err := d.backend.WarpPerspective(img, frame.Corners.Points(), width, height)
	if err != nil {
		return nil, vision.NewError(vision.CodeProcessingError, "warp", err)
	}
	return out, nil
}

// DetectLaneCount estimates the number of digit columns from the horizontal
// gradient of the rectified frame.
func (d *Detector) DetectLaneCount(rectified image.Image) (int, error) {
	if rectified == nil || rectified.Bounds().Empty() {
		return 0, vision.Errorf(vision.CodeInvalidInput, "lane count", "empty image")
	}
	p := d.Params()

	gray, err := d.backend.Grayscale(rectified)
	if err != nil {
		return 0, vision.NewError(vision.CodeProcessingError, "lane count", err)
	}
	sobel, err := d.backend.SobelXAbs(gray)
	if err != nil {
		return 0, vision.NewError(vision.CodeProcessingError, "lane count", err)
	}
	return CountLanesFromProjection(columnProjection(sobel), p.MinLaneCount, p.MaxLaneCount), nil
}

// CountLanesFromProjection counts strict local maxima of projection, over a
// window of len/50 columns each side, that exceed a third of the global
// maximum. The lane count is the peak count minus one, clamped to
// [minLanes, maxLanes].
func CountLanesFromProjection(projection []int, minLanes, maxLanes int) int {
	return clampLanes(len(findPeaks(projection))-1, minLanes, maxLanes)
}

func findPeaks(projection []int) []int {
	n := len(projection)
	if n == 0 {
		return nil
	}
	window := max(1, n/50)

	maxVal := projection[0]
	for _, v := range projection[1:] {
		maxVal = max(maxVal, v)
	}
	threshold := maxVal / 3

	var peaks []int
	for i := window; i < n-window; i++ {
		if projection[i] <= threshold {
			continue
		}
		isMax := true
		for j := i - window; j <= i+window; j++ {
			if j != i && projection[j] >= projection[i] {
				isMax = false
				break
			}
		}
		if isMax {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

func clampLanes(n, minLanes, maxLanes int) int {
	if n > maxLanes {
		n = maxLanes
	}
	if n < minLanes {
		n = minLanes
	}
	return n
}

// columnProjection sums each column of g.
func columnProjection(g *image.Gray) []int {
	b := g.Bounds()
	proj := make([]int, b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := g.Pix[g.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			proj[x] += int(row[x])
		}
	}
	return proj
}

func checkLaneCount(laneCount int) error {
	if laneCount <= 0 {
		return fmt.Errorf("lane count must be positive, got %d", laneCount)
	}
	return nil
}
