package detection

import (
	"image"
	"math"
	"sort"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

const (
	// Segments steeper than this count as rods.
	minRodAngleDegrees = 80.0
	// Rod x positions closer than this are merged.
	rodMergeDistance = 10
	// Half-width of the box filter in DetectLaneBoundaries.
	boundarySmoothRadius = 5
)

// DetectVerticalLines returns the sorted x positions of near-vertical Hough
// segments in an edge map. Positions within rodMergeDistance of the last
// kept one are dropped.
func (d *Detector) DetectVerticalLines(edges *image.Gray) ([]int, error) {
	if edges == nil || edges.Bounds().Empty() {
		return nil, vision.Errorf(vision.CodeInvalidInput, "vertical lines", "empty edge map")
	}
	p := d.Params()

	segs, err := d.backend.HoughLinesP(edges, vision.HoughParams{
		Rho:           p.HoughRho,
		Theta:         p.HoughTheta,
		Threshold:     p.HoughThreshold,
		MinLineLength: p.HoughMinLength,
		MaxLineGap:    p.HoughMaxGap,
	})
	if err != nil {
		return nil, vision.NewError(vision.CodeProcessingError, "vertical lines", err)
	}

	var xs []int
	for _, s := range segs {
		dx := math.Abs(float64(s.X2 - s.X1))
		dy := math.Abs(float64(s.Y2 - s.Y1))
		if math.Atan2(dy, dx)*180/math.Pi > minRodAngleDegrees {
			xs = append(xs, (s.X1+s.X2)/2)
		}
	}
	sort.Ints(xs)
	return mergeClose(xs, rodMergeDistance), nil
}

// mergeClose keeps a sorted position only if it is at least dist away from
// the previously kept one.
func mergeClose(sorted []int, dist int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, x := range sorted[1:] {
		if x-out[len(out)-1] >= dist {
			out = append(out, x)
		}
	}
	return out
}

// DetectLaneBoundaries finds dark gaps between lanes: strict local minima
// of the column intensity sum after a box filter of radius 5. Columns
// within the filter radius of either edge are smoothed to zero and never
// report a minimum on their own.
func DetectLaneBoundaries(gray *image.Gray) []int {
	if gray == nil || gray.Bounds().Empty() {
		return nil
	}
	proj := columnProjection(gray)
	n := len(proj)
	r := boundarySmoothRadius

	smoothed := make([]int, n)
	for i := r; i < n-r; i++ {
		sum := 0
		for j := -r; j <= r; j++ {
			sum += proj[i+j]
		}
		smoothed[i] = sum / (2*r + 1)
	}

	var out []int
	for i := 1; i < n-1; i++ {
		if smoothed[i] < smoothed[i-1] && smoothed[i] < smoothed[i+1] {
			out = append(out, i)
		}
	}
	return out
}

// RefineLaneCount cross-checks a projection-based estimate against the
// number of rods found by Hough line detection on the rectified frame.
// Edges are found with Canny at cannyLow/cannyHigh, normally the
// preprocessing thresholds. When line refinement is disabled, or the rod
// count is out of range or within one of the estimate, the estimate is
// returned unchanged.
func (d *Detector) RefineLaneCount(rectified image.Image, estimate int, cannyLow, cannyHigh float64) (int, error) {
	p := d.Params()
	if !p.EnableLineRefinement {
		return estimate, nil
	}
	if rectified == nil || rectified.Bounds().Empty() {
		return estimate, vision.Errorf(vision.CodeInvalidInput, "refine lanes", "empty image")
	}

	gray, err := d.backend.Grayscale(rectified)
	if err != nil {
		return estimate, vision.NewError(vision.CodeProcessingError, "refine lanes", err)
	}
	edges, err := d.backend.Canny(gray, cannyLow, cannyHigh)
	if err != nil {
		return estimate, vision.NewError(vision.CodeProcessingError, "refine lanes", err)
	}
	rods, err := d.DetectVerticalLines(edges)
	if err != nil {
		return estimate, err
	}

	n := len(rods)
	if n < p.MinLaneCount || n > p.MaxLaneCount {
		return estimate, nil
	}
	if diff := n - estimate; diff > 1 || diff < -1 {
		return n, nil
	}
	return estimate, nil
}
