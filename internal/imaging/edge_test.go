package imaging

import (
	"image"
	"testing"
)

func TestCanny(t *testing.T) {
	b := NewBackend()

	t.Run("black square", func(t *testing.T) {
		gray, err := b.Grayscale(createEdgeTestImage(90, 90))
		if err != nil {
			t.Fatalf("Grayscale failed: %v", err)
		}
		edges, err := b.Canny(gray, 50, 150)
		if err != nil {
			t.Fatalf("Canny failed: %v", err)
		}
		if edges.Rect.Dx() != 90 || edges.Rect.Dy() != 90 {
			t.Fatalf("dimensions: got %v, want 90x90", edges.Rect)
		}

		// The square spans [30,60) on both axes.
		onBorder := 0
		for y := 30; y < 60; y++ {
			if edges.GrayAt(29, y).Y == 255 || edges.GrayAt(30, y).Y == 255 {
				onBorder++
			}
		}
		if onBorder < 25 {
			t.Errorf("left border mostly missing: %d/30 rows have an edge", onBorder)
		}
		for _, p := range []image.Point{{5, 5}, {45, 45}, {80, 10}} {
			if edges.GrayAt(p.X, p.Y).Y != 0 {
				t.Errorf("unexpected edge at %v", p)
			}
		}
	})

	t.Run("uniform image has no edges", func(t *testing.T) {
		edges, err := b.Canny(createGray(50, 50, 128), 50, 150)
		if err != nil {
			t.Fatalf("Canny failed: %v", err)
		}
		if n := countNonZero(edges); n != 0 {
			t.Errorf("found %d edge pixels in a uniform image", n)
		}
	})

	t.Run("swapped thresholds", func(t *testing.T) {
		gray := createGray(40, 40, 0)
		fillGray(gray, image.Rect(20, 0, 40, 40), 255)
		a, _ := b.Canny(gray, 50, 150)
		c, _ := b.Canny(gray, 150, 50)
		if countNonZero(a) != countNonZero(c) {
			t.Error("threshold order should not matter")
		}
	})

	t.Run("small image", func(t *testing.T) {
		if _, err := b.Canny(createGray(2, 2, 10), 50, 150); err != nil {
			t.Errorf("Canny on 2x2 failed: %v", err)
		}
	})
}

func TestCanny_WeakEdgesNeedStrongNeighbour(t *testing.T) {
	b := NewBackend()
	// A faint step (gradient magnitude 4*40 = 160 on the L1 norm) sits
	// between the thresholds and has no strong edge to attach to.
	gray := createGray(40, 40, 100)
	fillGray(gray, image.Rect(20, 0, 40, 40), 140)

	edges, err := b.Canny(gray, 100, 200)
	if err != nil {
		t.Fatalf("Canny failed: %v", err)
	}
	if n := countNonZero(edges); n != 0 {
		t.Errorf("isolated weak edge kept: %d pixels", n)
	}

	edges, err = b.Canny(gray, 100, 150)
	if err != nil {
		t.Fatalf("Canny failed: %v", err)
	}
	if n := countNonZero(edges); n == 0 {
		t.Error("strong edge was dropped")
	}
}

func TestSobelXAbs(t *testing.T) {
	b := NewBackend()

	t.Run("vertical step", func(t *testing.T) {
		gray := createGray(100, 10, 0)
		fillGray(gray, image.Rect(50, 0, 100, 10), 255)
		out, err := b.SobelXAbs(gray)
		if err != nil {
			t.Fatalf("SobelXAbs failed: %v", err)
		}
		if out.GrayAt(49, 5).Y != 255 || out.GrayAt(50, 5).Y != 255 {
			t.Errorf("step not saturated: %d %d", out.GrayAt(49, 5).Y, out.GrayAt(50, 5).Y)
		}
		if out.GrayAt(10, 5).Y != 0 || out.GrayAt(90, 5).Y != 0 {
			t.Error("flat regions should have zero response")
		}
		if out.GrayAt(0, 5).Y != 0 {
			t.Error("reflected border should have zero response")
		}
	})

	t.Run("horizontal step is invisible", func(t *testing.T) {
		gray := createGray(20, 20, 0)
		fillGray(gray, image.Rect(0, 10, 20, 20), 255)
		out, err := b.SobelXAbs(gray)
		if err != nil {
			t.Fatalf("SobelXAbs failed: %v", err)
		}
		if n := countNonZero(out); n != 0 {
			t.Errorf("horizontal edge produced %d x-gradient pixels", n)
		}
	})
}
