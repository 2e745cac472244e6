package imaging

import (
	"image"
	"testing"
)

func TestFindExternalContours_FilledRectangle(t *testing.T) {
	bin := createGray(40, 30, 0)
	rect := image.Rect(5, 5, 25, 15)
	fillGray(bin, rect, 255)

	contours, err := NewBackend().FindExternalContours(bin)
	if err != nil {
		t.Fatalf("FindExternalContours failed: %v", err)
	}
	if len(contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(contours))
	}
	c := contours[0]
	if c[0] != rect.Min {
		t.Errorf("contour starts at %v, want %v", c[0], rect.Min)
	}

	onBorder := func(p image.Point) bool {
		return p.X == rect.Min.X || p.X == rect.Max.X-1 || p.Y == rect.Min.Y || p.Y == rect.Max.Y-1
	}
	seen := map[image.Point]bool{}
	for _, p := range c {
		if !onBorder(p) || !p.In(rect) {
			t.Fatalf("contour point %v is not on the rectangle border", p)
		}
		seen[p] = true
	}
	perimeter := 2*(rect.Dx()+rect.Dy()) - 4
	if len(seen) != perimeter {
		t.Errorf("contour visits %d border pixels, want %d", len(seen), perimeter)
	}
}

func TestFindExternalContours_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *image.Gray
		want    int
		minLens []int
	}{
		{
			name: "two blobs",
			build: func() *image.Gray {
				g := createGray(30, 30, 0)
				fillGray(g, image.Rect(2, 2, 8, 8), 255)
				fillGray(g, image.Rect(15, 15, 25, 20), 255)
				return g
			},
			want:    2,
			minLens: []int{20, 26},
		},
		{
			name: "single pixel",
			build: func() *image.Gray {
				g := createGray(10, 10, 0)
				g.Pix[3*10+4] = 255
				return g
			},
			want:    1,
			minLens: []int{1},
		},
		{
			name: "one pixel line",
			build: func() *image.Gray {
				g := createGray(10, 10, 0)
				fillGray(g, image.Rect(2, 4, 5, 5), 255)
				return g
			},
			want:    1,
			minLens: []int{4},
		},
		{
			name: "ring reports outer boundary only",
			build: func() *image.Gray {
				g := createGray(30, 30, 0)
				fillGray(g, image.Rect(5, 5, 25, 25), 255)
				fillGray(g, image.Rect(8, 8, 22, 22), 0)
				return g
			},
			want:    1,
			minLens: []int{76},
		},
		{
			name: "island inside ring is not external",
			build: func() *image.Gray {
				g := createGray(30, 30, 0)
				fillGray(g, image.Rect(5, 5, 25, 25), 255)
				fillGray(g, image.Rect(8, 8, 22, 22), 0)
				fillGray(g, image.Rect(12, 12, 18, 18), 255)
				return g
			},
			want:    1,
			minLens: []int{76},
		},
		{
			name: "region touching only a diagonal gap stays nested",
			build: func() *image.Gray {
				// 8-connected ring with a corner step; background cannot
				// leak through the diagonal.
				g := createGray(20, 20, 0)
				fillGray(g, image.Rect(3, 3, 17, 4), 255)
				fillGray(g, image.Rect(3, 16, 17, 17), 255)
				fillGray(g, image.Rect(3, 3, 4, 17), 255)
				fillGray(g, image.Rect(16, 4, 17, 16), 255)
				g.Pix[3*20+16] = 0
				g.Pix[3*20+17] = 255
				fillGray(g, image.Rect(8, 8, 12, 12), 255)
				return g
			},
			want:    1,
			minLens: []int{50},
		},
		{
			name:  "empty mask",
			build: func() *image.Gray { return createGray(10, 10, 0) },
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contours, err := NewBackend().FindExternalContours(tt.build())
			if err != nil {
				t.Fatalf("FindExternalContours failed: %v", err)
			}
			if len(contours) != tt.want {
				t.Fatalf("got %d contours, want %d", len(contours), tt.want)
			}
			for i, c := range contours {
				if len(c) < tt.minLens[i] {
					t.Errorf("contour %d has %d points, want at least %d", i, len(c), tt.minLens[i])
				}
			}
		})
	}
}

func TestFindExternalContours_TouchesImageEdge(t *testing.T) {
	bin := createGray(12, 12, 255)
	contours, err := NewBackend().FindExternalContours(bin)
	if err != nil {
		t.Fatalf("FindExternalContours failed: %v", err)
	}
	if len(contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(contours))
	}
	if len(contours[0]) != 44 {
		t.Errorf("full-frame contour has %d points, want 44", len(contours[0]))
	}
}

func TestFindExternalContours_SkipsNestedRegions(t *testing.T) {
	// White mask, black ring, white island inside the ring.
	bin := createGray(100, 60, 255)
	fillGray(bin, image.Rect(20, 10, 80, 50), 0)
	fillGray(bin, image.Rect(25, 15, 75, 45), 255)

	contours, err := NewBackend().FindExternalContours(bin)
	if err != nil {
		t.Fatalf("FindExternalContours failed: %v", err)
	}
	if len(contours) != 1 {
		t.Fatalf("expected 1 contour, got %d", len(contours))
	}
	if contours[0][0] != (image.Point{}) {
		t.Errorf("contour starts at %v, want the image origin", contours[0][0])
	}
}
