package imaging

import (
	"math"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/geometry"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// QuadMetrics describes the shape of a detected frame in the source image.
type QuadMetrics struct {
	TopWidth     float64 `json:"top_width"`
	BottomWidth  float64 `json:"bottom_width"`
	LeftHeight   float64 `json:"left_height"`
	RightHeight  float64 `json:"right_height"`
	AspectRatio  float64 `json:"aspect_ratio"`
	SkewDegrees  float64 `json:"skew_degrees"`  // Angle of the top edge against the horizontal
	Keystone     float64 `json:"keystone"`      // Shorter / longer horizontal edge, 1 = no perspective
	AreaFraction float64 `json:"area_fraction"` // Quad area over image area, 0 when unknown
}

// MeasureQuad reports edge lengths, skew and perspective distortion of q.
// imageArea may be 0, in which case AreaFraction is left at 0.
//
// Values are rounded to 2 decimals (angles to 1) for display.
func MeasureQuad(q vision.Quadrilateral, imageArea float64) QuadMetrics {
	top := distance(q.TopLeft, q.TopRight)
	bottom := distance(q.BottomLeft, q.BottomRight)
	left := distance(q.TopLeft, q.BottomLeft)
	right := distance(q.TopRight, q.BottomRight)

	deltaX := q.TopRight.X - q.TopLeft.X
	deltaY := q.TopRight.Y - q.TopLeft.Y
	angle := math.Atan2(deltaY, deltaX) * 180 / math.Pi

	m := QuadMetrics{
		TopWidth:    round2(top),
		BottomWidth: round2(bottom),
		LeftHeight:  round2(left),
		RightHeight: round2(right),
		SkewDegrees: math.Round(angle*10) / 10,
	}
	if h := (left + right) / 2; h > 0 {
		m.AspectRatio = round2((top + bottom) / 2 / h)
	}
	if long := math.Max(top, bottom); long > 0 {
		m.Keystone = round2(math.Min(top, bottom) / long)
	}
	if imageArea > 0 {
		pts := q.Points()
		m.AreaFraction = math.Round(geometry.ContourArea(pts[:])/imageArea*1000) / 1000
	}
	return m
}

func distance(a, b vision.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
