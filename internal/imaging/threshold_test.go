package imaging

import (
	"image"
	"testing"
)

func TestEqualizeCLAHE(t *testing.T) {
	b := NewBackend()

	// Low-contrast horizontal ramp 100..139. Tiles must be large enough
	// that the clip limit (2 × area / 256) leaves room to stretch.
	gray := image.NewGray(image.Rect(0, 0, 320, 160))
	for y := 0; y < 160; y++ {
		for x := 0; x < 320; x++ {
			gray.Pix[y*320+x] = uint8(100 + x/8)
		}
	}

	out, err := b.EqualizeCLAHE(gray, 2.0, 8)
	if err != nil {
		t.Fatalf("EqualizeCLAHE failed: %v", err)
	}
	if out.Rect != gray.Rect {
		t.Fatalf("bounds changed: %v", out.Rect)
	}

	lo, hi := uint8(255), uint8(0)
	for _, v := range out.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if int(hi)-int(lo) <= 39 {
		t.Errorf("contrast not stretched: range %d..%d", lo, hi)
	}

	// The mapping must stay monotonic along a row.
	for x := 1; x < 320; x++ {
		if out.GrayAt(x, 80).Y+2 < out.GrayAt(x-1, 80).Y {
			t.Errorf("ramp inverted at x=%d: %d < %d", x, out.GrayAt(x, 80).Y, out.GrayAt(x-1, 80).Y)
			break
		}
	}
}

func TestEqualizeCLAHE_InvalidTiles(t *testing.T) {
	if _, err := NewBackend().EqualizeCLAHE(createGray(10, 10, 1), 2, 0); err == nil {
		t.Error("expected error for zero tile grid")
	}
}

func TestEqualizeCLAHE_TinyImage(t *testing.T) {
	out, err := NewBackend().EqualizeCLAHE(createGray(3, 2, 50), 2, 8)
	if err != nil {
		t.Fatalf("EqualizeCLAHE failed: %v", err)
	}
	if out.Rect.Dx() != 3 || out.Rect.Dy() != 2 {
		t.Errorf("unexpected size %v", out.Rect)
	}
}

func TestAdaptiveThreshold(t *testing.T) {
	b := NewBackend()

	t.Run("uniform is background", func(t *testing.T) {
		out, err := b.AdaptiveThreshold(createGray(30, 30, 90), 11, 2)
		if err != nil {
			t.Fatalf("AdaptiveThreshold failed: %v", err)
		}
		if n := countNonZero(out); n != 0 {
			t.Errorf("%d of %d pixels set, want none", n, 30*30)
		}
	})

	t.Run("dark line is foreground", func(t *testing.T) {
		gray := createGray(40, 40, 220)
		fillGray(gray, image.Rect(0, 20, 40, 22), 30)
		out, err := b.AdaptiveThreshold(gray, 11, 2)
		if err != nil {
			t.Fatalf("AdaptiveThreshold failed: %v", err)
		}
		if out.GrayAt(20, 20).Y != 255 || out.GrayAt(20, 21).Y != 255 {
			t.Error("dark line should be 255")
		}
		if out.GrayAt(20, 5).Y != 0 {
			t.Error("bright background should be 0")
		}
		if out.GrayAt(20, 17).Y != 0 {
			t.Error("bright side of the edge should be 0")
		}
	})

	t.Run("invalid block size", func(t *testing.T) {
		for _, bs := range []int{0, 1, 4, 10} {
			if _, err := b.AdaptiveThreshold(createGray(10, 10, 1), bs, 2); err == nil {
				t.Errorf("block size %d: expected error", bs)
			}
		}
	})
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(5, 0)
	var sum float64
	for _, v := range k {
		sum += v
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Errorf("kernel sum = %v, want 1", sum)
	}
	if k[0] != k[4] || k[1] != k[3] || k[2] <= k[1] {
		t.Errorf("kernel not symmetric and peaked: %v", k)
	}
}

func TestMorphCloseOpen(t *testing.T) {
	b := NewBackend()

	t.Run("removes specks", func(t *testing.T) {
		bin := createGray(20, 20, 0)
		bin.Pix[10*20+10] = 255
		out, err := b.MorphCloseOpen(bin, 3)
		if err != nil {
			t.Fatalf("MorphCloseOpen failed: %v", err)
		}
		if n := countNonZero(out); n != 0 {
			t.Errorf("speck survived: %d pixels", n)
		}
	})

	t.Run("fills one pixel gaps", func(t *testing.T) {
		bin := createGray(30, 20, 0)
		fillGray(bin, image.Rect(2, 8, 28, 13), 255)
		fillGray(bin, image.Rect(15, 8, 16, 13), 0)
		out, err := b.MorphCloseOpen(bin, 3)
		if err != nil {
			t.Fatalf("MorphCloseOpen failed: %v", err)
		}
		if out.GrayAt(15, 10).Y != 255 {
			t.Error("gap was not closed")
		}
		if out.GrayAt(5, 10).Y != 255 {
			t.Error("bar body was eroded away")
		}
	})

	t.Run("kernel of one copies", func(t *testing.T) {
		bin := createGray(5, 5, 7)
		out, err := b.MorphCloseOpen(bin, 1)
		if err != nil {
			t.Fatalf("MorphCloseOpen failed: %v", err)
		}
		if &out.Pix[0] == &bin.Pix[0] || out.Pix[12] != 7 {
			t.Error("expected an independent copy")
		}
	})
}
