//go:build opencv

package cvbackend

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/imaging"
	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

func rectImage(w, h int, r image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{20, 20, 20, 255}
			if image.Pt(x, y).In(r) {
				c = color.RGBA{230, 230, 230, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestGrayscaleMatchesPureGo(t *testing.T) {
	cv, err := New()
	if err != nil {
		t.Fatal(err)
	}
	pure := imaging.NewBackend()

	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 15), uint8(y * 30), 90, 255})
		}
	}

	a, err := cv.Grayscale(img)
	if err != nil {
		t.Fatal(err)
	}
	b, err := pure.Grayscale(img)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Pix {
		if d := int(a.Pix[i]) - int(b.Pix[i]); d < -1 || d > 1 {
			t.Fatalf("pixel %d: opencv %d, purego %d", i, a.Pix[i], b.Pix[i])
		}
	}
}

func TestFindExternalContoursAgreesOnNestedShapes(t *testing.T) {
	cv, err := New()
	if err != nil {
		t.Fatal(err)
	}
	pure := imaging.NewBackend()

	fill := func(g *image.Gray, r image.Rectangle, v uint8) {
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				g.SetGray(x, y, color.Gray{v})
			}
		}
	}
	tests := []struct {
		name  string
		build func() *image.Gray
		want  int
	}{
		{
			name: "island in black ring on white",
			build: func() *image.Gray {
				g := image.NewGray(image.Rect(0, 0, 100, 60))
				fill(g, g.Rect, 255)
				fill(g, image.Rect(20, 10, 80, 50), 0)
				fill(g, image.Rect(25, 15, 75, 45), 255)
				return g
			},
			want: 1,
		},
		{
			name: "island in white ring plus outside blob",
			build: func() *image.Gray {
				g := image.NewGray(image.Rect(0, 0, 100, 60))
				fill(g, image.Rect(10, 10, 60, 50), 255)
				fill(g, image.Rect(14, 14, 56, 46), 0)
				fill(g, image.Rect(25, 20, 45, 40), 255)
				fill(g, image.Rect(70, 20, 90, 30), 255)
				return g
			},
			want: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin := tt.build()
			a, err := cv.FindExternalContours(bin)
			if err != nil {
				t.Fatal(err)
			}
			b, err := pure.FindExternalContours(bin)
			if err != nil {
				t.Fatal(err)
			}
			if len(a) != tt.want || len(b) != tt.want {
				t.Fatalf("opencv found %d contours, purego %d, want %d", len(a), len(b), tt.want)
			}
			boxes := map[image.Rectangle]bool{}
			for _, c := range a {
				boxes[bounds(c)] = true
			}
			for _, c := range b {
				if r := bounds(c); !boxes[r] {
					t.Errorf("purego contour %v has no opencv counterpart", r)
				}
			}
		})
	}
}

func TestAdaptiveThresholdPolarityMatchesPureGo(t *testing.T) {
	cv, err := New()
	if err != nil {
		t.Fatal(err)
	}
	pure := imaging.NewBackend()

	gray := image.NewGray(image.Rect(0, 0, 40, 40))
	for i := range gray.Pix {
		gray.Pix[i] = 220
	}
	for x := 0; x < 40; x++ {
		gray.SetGray(x, 20, color.Gray{30})
		gray.SetGray(x, 21, color.Gray{30})
	}

	a, err := cv.AdaptiveThreshold(gray, 11, 2)
	if err != nil {
		t.Fatal(err)
	}
	b, err := pure.AdaptiveThreshold(gray, 11, 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []image.Point{{20, 20}, {20, 21}, {20, 5}, {20, 17}} {
		if a.GrayAt(p.X, p.Y) != b.GrayAt(p.X, p.Y) {
			t.Errorf("%v: opencv %d, purego %d", p, a.GrayAt(p.X, p.Y).Y, b.GrayAt(p.X, p.Y).Y)
		}
	}
	if a.GrayAt(20, 20).Y != 255 {
		t.Error("dark line should be foreground")
	}
}

func bounds(c []image.Point) image.Rectangle {
	r := image.Rectangle{Min: c[0], Max: c[0]}
	for _, p := range c[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}

func TestFindExternalContoursCountsBlobs(t *testing.T) {
	cv, _ := New()
	bin := image.NewGray(image.Rect(0, 0, 60, 40))
	for y := 5; y < 15; y++ {
		for x := 5; x < 20; x++ {
			bin.SetGray(x, y, color.Gray{255})
		}
	}
	for y := 20; y < 35; y++ {
		for x := 30; x < 55; x++ {
			bin.SetGray(x, y, color.Gray{255})
		}
	}
	contours, err := cv.FindExternalContours(bin)
	if err != nil {
		t.Fatal(err)
	}
	if len(contours) != 2 {
		t.Errorf("expected 2 contours, got %d", len(contours))
	}
}

func TestWarpPerspectiveIdentity(t *testing.T) {
	cv, _ := New()
	img := rectImage(100, 50, image.Rect(0, 0, 50, 50))
	src := [4]vision.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 50}, {X: 0, Y: 50}}

	out, err := cv.WarpPerspective(img, src, 100, 50)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Fatalf("unexpected size %v", out.Bounds())
	}
	if c := out.RGBAAt(10, 25); c.R < 200 {
		t.Errorf("left half should stay bright, got %v", c)
	}
	if c := out.RGBAAt(90, 25); c.R > 50 {
		t.Errorf("right half should stay dark, got %v", c)
	}
}

func TestSobelXAbsAndHough(t *testing.T) {
	cv, _ := New()
	gray := image.NewGray(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 40; x < 80; x++ {
			gray.SetGray(x, y, color.Gray{200})
		}
	}
	sx, err := cv.SobelXAbs(gray)
	if err != nil {
		t.Fatal(err)
	}
	if sx.GrayAt(40, 30).Y == 0 || sx.GrayAt(10, 30).Y != 0 {
		t.Errorf("unexpected sobel response: edge %d flat %d", sx.GrayAt(40, 30).Y, sx.GrayAt(10, 30).Y)
	}

	edges, err := cv.Canny(gray, 50, 150)
	if err != nil {
		t.Fatal(err)
	}
	segs, err := cv.HoughLinesP(edges, vision.HoughParams{Rho: 1, Theta: math.Pi / 180, Threshold: 20, MinLineLength: 30, MaxLineGap: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) == 0 {
		t.Fatal("expected at least one segment")
	}
	for _, s := range segs {
		if absInt(s.X1-s.X2) > 2 {
			t.Errorf("expected a vertical segment, got %+v", s)
		}
	}
}

func TestEmptyInputs(t *testing.T) {
	cv, _ := New()
	if _, err := cv.Grayscale(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("expected error for empty image")
	}
	if _, err := cv.AdaptiveThreshold(image.NewGray(image.Rect(0, 0, 10, 10)), 4, 2); err == nil {
		t.Error("expected error for even block size")
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
