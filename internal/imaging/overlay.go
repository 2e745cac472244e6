package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/geometry"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// OverlayOptions controls DrawOverlay.
type OverlayOptions struct {
	// FrameColor is a hex colour ("#RRGGBB" or "#RRGGBBAA") for the frame
	// outline. Invalid or empty values fall back to green.
	FrameColor string

	// Thickness of the outline in pixels (default 2).
	Thickness int

	// RectifiedWidth and RectifiedHeight give the coordinate space of the
	// lane boxes. When both are set, lane dividers are projected back onto
	// the frame; otherwise lanes are not drawn.
	RectifiedWidth  int
	RectifiedHeight int

	// Captions are printed top-left, one per line.
	Captions []string
}

// DrawOverlay returns a copy of img with the detected frame outlined, each
// lane divider drawn in its own colour and the captions printed on a dark
// backing box.
func DrawOverlay(img image.Image, frame vision.FrameDetectionResult, lanes []vision.LaneInfo, opts OverlayOptions) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	result := ToRGBA(img)

	frameColor, err := parseHexColor(opts.FrameColor)
	if err != nil {
		frameColor = color.RGBA{0, 255, 0, 255}
	}
	thickness := opts.Thickness
	if thickness <= 0 {
		thickness = 2
	}

	if frame.Detected {
		corners := frame.Corners.Points()
		for i := range corners {
			a, b := corners[i], corners[(i+1)%4]
			drawLine(result, a, b, thickness, frameColor)
		}

		if len(lanes) > 0 && opts.RectifiedWidth > 0 && opts.RectifiedHeight > 0 {
			drawLanes(result, frame, lanes, opts, thickness)
		}
	}

	drawCaptions(result, opts.Captions)
	return result, nil
}

// drawLanes projects each lane's left edge from rectified space back onto
// the source image.
func drawLanes(dst *image.RGBA, frame vision.FrameDetectionResult, lanes []vision.LaneInfo, opts OverlayOptions, thickness int) {
	w, h := float64(opts.RectifiedWidth), float64(opts.RectifiedHeight)
	toRect, err := geometry.PerspectiveTransform(frame.Corners.Points(), geometry.RectCorners(w, h))
	if err != nil {
		return
	}
	toImage, err := toRect.Inverse()
	if err != nil {
		return
	}

	palette := Palette(len(lanes))
	for i, lane := range lanes {
		if lane.BoundingBox.X <= 0 {
			continue
		}
		top := toImage.Apply(vision.Pt(lane.BoundingBox.X, 0))
		bottom := toImage.Apply(vision.Pt(lane.BoundingBox.X, h))
		drawLine(dst, top, bottom, max(thickness-1, 1), palette[i])
	}
}

// drawLine draws a segment with a square brush (Bresenham).
func drawLine(dst *image.RGBA, a, b vision.Point, thickness int, c color.RGBA) {
	x0, y0 := int(a.X+0.5), int(a.Y+0.5)
	x1, y1 := int(b.X+0.5), int(b.Y+0.5)

	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	errAcc := dx + dy
	half := thickness / 2

	for {
		for oy := -half; oy <= thickness-1-half; oy++ {
			for ox := -half; ox <= thickness-1-half; ox++ {
				px, py := x0+ox, y0+oy
				if image.Pt(px, py).In(dst.Rect) {
					dst.SetRGBA(px, py, c)
				}
			}
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			x0 += sx
		}
		if e2 <= dx {
			errAcc += dx
			y0 += sy
		}
	}
}

// drawCaptions prints lines of text with the 7×13 fixed font.
func drawCaptions(dst *image.RGBA, captions []string) {
	if len(captions) == 0 {
		return
	}
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 2

	widest := 0
	for _, s := range captions {
		widest = max(widest, font.MeasureString(face, s).Ceil())
	}
	box := image.Rect(4, 4, 4+widest+8, 4+lineHeight*len(captions)+4)
	draw.Draw(dst, box.Intersect(dst.Rect), image.NewUniform(color.RGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
	}
	for i, s := range captions {
		d.Dot = fixed.P(8, 4+lineHeight*(i+1)-2)
		d.DrawString(s)
	}
}
