package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// maxHoughPeaks bounds how many accumulator peaks are turned into segments.
const maxHoughPeaks = 200

// HoughLinesP finds line segments in a binary edge map.
//
// Edge pixels vote in a (rho, theta) accumulator. Each local peak with at
// least p.Threshold votes is walked along its line: edge pixels within one
// pixel of the line are projected onto it, runs separated by more than
// p.MaxLineGap are split, and runs at least p.MinLineLength long become
// segments. Pixels claimed by a segment do not contribute to later peaks,
// so a rod is reported once even when neighbouring angles also peak.
func (*Backend) HoughLinesP(edges *image.Gray, p vision.HoughParams) ([]vision.Segment, error) {
	if isEmpty(edges) {
		return nil, ErrEmptyImage
	}
	if p.Rho <= 0 || p.Theta <= 0 {
		return nil, fmt.Errorf("invalid hough resolution rho=%v theta=%v", p.Rho, p.Theta)
	}

	src := normGray(edges)
	width, height := src.Rect.Dx(), src.Rect.Dy()

	type edgePoint struct{ x, y int }
	points := make([]edgePoint, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if src.Pix[y*width+x] != 0 {
				points = append(points, edgePoint{x, y})
			}
		}
	}
	if len(points) == 0 {
		return nil, nil
	}

	numAngles := int(math.Round(math.Pi / p.Theta))
	if numAngles < 1 {
		numAngles = 1
	}
	maxDist := math.Hypot(float64(width), float64(height))
	numRho := int(math.Ceil(2*maxDist/p.Rho)) + 1

	cosT := make([]float64, numAngles)
	sinT := make([]float64, numAngles)
	for t := 0; t < numAngles; t++ {
		angle := float64(t) * p.Theta
		cosT[t] = math.Cos(angle)
		sinT[t] = math.Sin(angle)
	}

	accumulator := make([]int, numRho*numAngles)
	for _, pt := range points {
		for t := 0; t < numAngles; t++ {
			rho := float64(pt.x)*cosT[t] + float64(pt.y)*sinT[t]
			r := int(math.Round((rho + maxDist) / p.Rho))
			accumulator[r*numAngles+t]++
		}
	}

	type peak struct{ r, t, votes int }
	peaks := make([]peak, 0)
	threshold := max(p.Threshold, 1)
	for r := 0; r < numRho; r++ {
		for t := 0; t < numAngles; t++ {
			votes := accumulator[r*numAngles+t]
			if votes < threshold {
				continue
			}
			isMax := true
			for dr := -2; dr <= 2 && isMax; dr++ {
				for dt := -2; dt <= 2 && isMax; dt++ {
					if dr == 0 && dt == 0 {
						continue
					}
					nr := r + dr
					nt := (t + dt + numAngles) % numAngles
					if nr >= 0 && nr < numRho && accumulator[nr*numAngles+nt] > votes {
						isMax = false
					}
				}
			}
			if isMax {
				peaks = append(peaks, peak{r, t, votes})
			}
		}
	}
	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].votes > peaks[j].votes
	})
	if len(peaks) > maxHoughPeaks {
		peaks = peaks[:maxHoughPeaks]
	}

	used := make([]bool, width*height)
	segments := make([]vision.Segment, 0)

	for _, pk := range peaks {
		rho := float64(pk.r)*p.Rho - maxDist
		cosA, sinA := cosT[pk.t], sinT[pk.t]

		// Position along the line, measured from its foot point.
		type onLine struct {
			pos float64
			idx int
		}
		var line []onLine
		for _, pt := range points {
			i := pt.y*width + pt.x
			if used[i] {
				continue
			}
			d := math.Abs(float64(pt.x)*cosA + float64(pt.y)*sinA - rho)
			if d <= 1.0 {
				line = append(line, onLine{pos: -float64(pt.x)*sinA + float64(pt.y)*cosA, idx: i})
			}
		}
		if len(line) < 2 {
			continue
		}
		sort.Slice(line, func(i, j int) bool { return line[i].pos < line[j].pos })

		runStart := 0
		flush := func(end int) {
			first, last := line[runStart], line[end]
			x1, y1 := first.idx%width, first.idx/width
			x2, y2 := last.idx%width, last.idx/width
			if math.Hypot(float64(x2-x1), float64(y2-y1)) < p.MinLineLength {
				return
			}
			for k := runStart; k <= end; k++ {
				used[line[k].idx] = true
			}
			segments = append(segments, vision.Segment{X1: x1, Y1: y1, X2: x2, Y2: y2})
		}
		for k := 1; k < len(line); k++ {
			if line[k].pos-line[k-1].pos > p.MaxLineGap+1 {
				flush(k - 1)
				runStart = k
			}
		}
		flush(len(line) - 1)
	}
	return segments, nil
}
