package imaging

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// writeFrame encodes a solid frame with enc into a temp file and returns
// its path.
func writeFrame(t *testing.T, name string, w, h int, c color.Color, enc func(io.Writer, image.Image) error) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := enc(f, createInMemoryImage(w, h, c)); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

func encodePNG(w io.Writer, img image.Image) error { return png.Encode(w, img) }

func TestLoadFile_Formats(t *testing.T) {
	gray := color.RGBA{120, 120, 120, 255}
	tests := []struct {
		name string
		enc  func(io.Writer, image.Image) error
	}{
		{"frame.png", encodePNG},
		{"frame.jpg", func(w io.Writer, img image.Image) error { return jpeg.Encode(w, img, nil) }},
		{"frame.bmp", bmp.Encode},
		{"frame.tiff", func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFrame(t, tt.name, 64, 16, gray, tt.enc)
			img, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile failed: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 16 {
				t.Errorf("size %v, want 64x16", b)
			}
		})
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	path := writeFrame(t, "soroban.png", 100, 40, color.RGBA{200, 200, 200, 255}, encodePNG)

	first, err := cache.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := first.Bounds(); b.Dx() != 100 || b.Dy() != 40 {
		t.Errorf("size %v, want 100x40", b)
	}

	second, err := cache.Load(path)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if first != second {
		t.Error("unchanged file was decoded again")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}
}

func TestImageCache_LoadErrors(t *testing.T) {
	junk := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(junk, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing", filepath.Join(t.TempDir(), "absent.png"), "failed to open image"},
		{"not an image", junk, "failed to decode image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewImageCache()
			_, err := cache.Load(tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want %q", err, tt.want)
			}
			if cache.Len() != 0 {
				t.Error("failed load was cached")
			}
		})
	}
}

func TestImageCache_EvictAndClear(t *testing.T) {
	cache := NewImageCache()
	a := writeFrame(t, "a.png", 8, 8, color.White, encodePNG)
	b := writeFrame(t, "b.png", 8, 8, color.Black, encodePNG)
	for _, p := range []string{a, b} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load(%s): %v", p, err)
		}
	}

	cache.Evict(a)
	cache.Evict("/never/loaded.png")
	if cache.Len() != 1 {
		t.Errorf("after Evict Len = %d, want 1", cache.Len())
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("after Clear Len = %d, want 0", cache.Len())
	}
}

func TestImageCache_ConcurrentLoad(t *testing.T) {
	cache := NewImageCache()
	path := writeFrame(t, "shared.png", 50, 20, color.RGBA{128, 128, 128, 255}, encodePNG)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(path); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Load: %v", err)
	}
}

func TestImageCache_ReloadsChangedFile(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeFrame(t, "frame.png", 40, 20, color.RGBA{10, 20, 30, 255}, encodePNG)

	first, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Overwrite with a different size and push the mtime forward so the
	// change is visible even on coarse-grained filesystems.
	replacement := image.NewRGBA(image.Rect(0, 0, 60, 30))
	f, err := os.Create(imgPath)
	if err != nil {
		t.Fatalf("failed to rewrite image: %v", err)
	}
	if err := png.Encode(f, replacement); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	f.Close()
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(imgPath, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	second, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if first == second {
		t.Fatal("cache returned stale image after file changed")
	}
	if second.Bounds().Dx() != 60 {
		t.Errorf("reloaded width = %d, want 60", second.Bounds().Dx())
	}
}

func TestDecodeBase64(t *testing.T) {
	img := createInMemoryImage(8, 4, color.RGBA{200, 100, 50, 255})
	enc, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"raw", enc.ImageBase64, false},
		{"data url", "data:image/png;base64," + enc.ImageBase64, false},
		{"garbage", "!!!not base64", true},
		{"not an image", "aGVsbG8=", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBase64(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeBase64() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (got.Bounds().Dx() != 8 || got.Bounds().Dy() != 4) {
				t.Errorf("decoded size %v, want 8x4", got.Bounds())
			}
			if err != nil && !strings.Contains(err.Error(), "decode") {
				t.Errorf("unexpected error text %q", err)
			}
		})
	}
}
