package detection

import (
	"image"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// ExtractLanes splits the rectified frame into laneCount equal-width strips.
// Remainder columns on the right are not covered. Returns nil when the frame
// is empty or narrower than laneCount pixels.
func (d *Detector) ExtractLanes(rectified image.Image, laneCount int) []vision.LaneInfo {
	if rectified == nil || checkLaneCount(laneCount) != nil {
		return nil
	}
	b := rectified.Bounds()
	laneWidth := b.Dx() / laneCount
	if laneWidth == 0 || b.Dy() == 0 {
		return nil
	}

	lanes := make([]vision.LaneInfo, laneCount)
	for i := range lanes {
		lanes[i] = vision.LaneInfo{
			BoundingBox: vision.Rect{
				X:      float64(i * laneWidth),
				Y:      0,
				Width:  float64(laneWidth),
				Height: float64(b.Dy()),
			},
			DigitIndex: laneCount - 1 - i,
		}
	}
	return lanes
}

// LaneImage copies the strip of rectified covered by lane.
func LaneImage(rectified image.Image, lane vision.LaneInfo) (*image.RGBA, error) {
	r := lane.BoundingBox.ImageRect().Add(rectified.Bounds().Min)
	img, err := imaging.Crop(rectified, r)
	if err != nil {
		return nil, vision.NewError(vision.CodeLaneExtractionFailed, "lane image", err)
	}
	return img, nil
}

// CellRects returns the five cell rectangles of a lane of the given size:
// the upper bead first, then the four lower beads top to bottom. The
// divider band between them is skipped.
func CellRects(width, height int, p vision.DetectionParams) []image.Rectangle {
	total := p.UpperBeadRatio + p.BeadDividerRatio + p.LowerBeadRatio
	if total <= 0 {
		return nil
	}
	upper := height * p.UpperBeadRatio / total
	divider := height * p.BeadDividerRatio / total
	lower := height * p.LowerBeadRatio / total
	band := lower / 4

	rects := make([]image.Rectangle, 0, vision.CellsPerLane)
	rects = append(rects, image.Rect(0, 0, width, upper))
	start := upper + divider
	for i := 0; i < 4; i++ {
		y := start + i*band
		rects = append(rects, image.Rect(0, y, width, y+band))
	}
	return rects
}

// ExtractCells cuts a lane image into its five bead cells. Fails with
// CodeLaneExtractionFailed when the lane is too small for every cell to
// have at least one pixel row.
func (d *Detector) ExtractCells(lane image.Image) ([]image.Image, error) {
	if lane == nil || lane.Bounds().Empty() {
		return nil, vision.Errorf(vision.CodeLaneExtractionFailed, "cells", "empty lane image")
	}
	b := lane.Bounds()
	rects := CellRects(b.Dx(), b.Dy(), d.Params())

	cells := make([]image.Image, 0, len(rects))
	for i, r := range rects {
		if r.Empty() {
			return nil, vision.Errorf(vision.CodeLaneExtractionFailed, "cells",
				"lane %dx%d too small for cell %d", b.Dx(), b.Dy(), i)
		}
		cell, err := imaging.Crop(lane, r.Add(b.Min))
		if err != nil {
			return nil, vision.NewError(vision.CodeLaneExtractionFailed, "cells", err)
		}
		cells = append(cells, cell)
	}
	return cells, nil
}
