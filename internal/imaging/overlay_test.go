package imaging

import (
	"image/color"
	"testing"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

func testFrame() vision.FrameDetectionResult {
	return vision.FrameDetectionResult{
		Detected: true,
		Corners: vision.Quadrilateral{
			TopLeft:     vision.Pt(20, 40),
			TopRight:    vision.Pt(180, 40),
			BottomRight: vision.Pt(180, 90),
			BottomLeft:  vision.Pt(20, 90),
		},
		LaneCount: 4,
	}
}

func TestDrawOverlay_Frame(t *testing.T) {
	img := createInMemoryImage(200, 120, color.White)
	out, err := DrawOverlay(img, testFrame(), nil, OverlayOptions{FrameColor: "#FF0000"})
	if err != nil {
		t.Fatalf("DrawOverlay failed: %v", err)
	}
	if c := out.RGBAAt(100, 40); c != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("top edge pixel = %v, want red", c)
	}
	if c := out.RGBAAt(100, 65); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("interior pixel changed to %v", c)
	}
	if c := img.RGBAAt(100, 40); c.G != 255 {
		t.Error("DrawOverlay modified its input")
	}
}

func TestDrawOverlay_InvalidColorFallsBack(t *testing.T) {
	img := createInMemoryImage(200, 120, color.White)
	out, err := DrawOverlay(img, testFrame(), nil, OverlayOptions{FrameColor: "nope"})
	if err != nil {
		t.Fatalf("DrawOverlay failed: %v", err)
	}
	if c := out.RGBAAt(20, 65); c != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("left edge pixel = %v, want default green", c)
	}
}

func TestDrawOverlay_Lanes(t *testing.T) {
	img := createInMemoryImage(200, 120, color.White)
	lanes := []vision.LaneInfo{
		{BoundingBox: vision.Rect{X: 0, Y: 0, Width: 200, Height: 200}, DigitIndex: 3},
		{BoundingBox: vision.Rect{X: 200, Y: 0, Width: 200, Height: 200}, DigitIndex: 2},
		{BoundingBox: vision.Rect{X: 400, Y: 0, Width: 200, Height: 200}, DigitIndex: 1},
		{BoundingBox: vision.Rect{X: 600, Y: 0, Width: 200, Height: 200}, DigitIndex: 0},
	}
	out, err := DrawOverlay(img, testFrame(), lanes, OverlayOptions{RectifiedWidth: 800, RectifiedHeight: 200})
	if err != nil {
		t.Fatalf("DrawOverlay failed: %v", err)
	}
	// Lane 1 starts a quarter of the way across the frame: x = 20 + 160/4.
	if c := out.RGBAAt(60, 65); c == (color.RGBA{255, 255, 255, 255}) {
		t.Error("lane divider not drawn")
	}
}

func TestDrawOverlay_Captions(t *testing.T) {
	img := createInMemoryImage(200, 120, color.White)
	out, err := DrawOverlay(img, vision.FrameDetectionResult{}, nil, OverlayOptions{
		Captions: []string{"Lanes: 4", "Time: 12ms"},
	})
	if err != nil {
		t.Fatalf("DrawOverlay failed: %v", err)
	}
	if c := out.RGBAAt(6, 6); c.R > 200 {
		t.Errorf("caption backing not drawn: %v", c)
	}
	if c := out.RGBAAt(150, 100); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel outside overlay changed: %v", c)
	}
}

func TestDrawOverlay_NilImage(t *testing.T) {
	if _, err := DrawOverlay(nil, testFrame(), nil, OverlayOptions{}); err == nil {
		t.Error("expected error for nil image")
	}
}
