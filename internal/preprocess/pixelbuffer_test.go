package preprocess

import (
	"testing"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// nilAddressBuffer locks fine but never exposes its memory.
type nilAddressBuffer struct {
	*vision.MemoryBuffer
}

func (nilAddressBuffer) BaseAddress() []byte { return nil }

func TestConvertPixelBuffer_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format vision.PixelFormat
		pixel  []byte
		want   [4]byte
	}{
		{"BGRA", vision.PixelFormatBGRA, []byte{10, 20, 30, 0}, [4]byte{30, 20, 10, 255}},
		{"RGBA", vision.PixelFormatRGBA, []byte{10, 20, 30, 0}, [4]byte{10, 20, 30, 255}},
		{"BGR", vision.PixelFormatBGR, []byte{10, 20, 30}, [4]byte{30, 20, 10, 255}},
		{"Gray8", vision.PixelFormatGray8, []byte{77}, [4]byte{77, 77, 77, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 3, 2
			data := make([]byte, 0, w*h*len(tt.pixel))
			for i := 0; i < w*h; i++ {
				data = append(data, tt.pixel...)
			}
			buf := vision.NewMemoryBuffer(data, w, h, tt.format)

			img, err := ConvertPixelBuffer(buf)
			if err != nil {
				t.Fatalf("ConvertPixelBuffer failed: %v", err)
			}
			if buf.Locked() {
				t.Error("buffer left locked")
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					c := img.RGBAAt(x, y)
					if got := [4]byte{c.R, c.G, c.B, c.A}; got != tt.want {
						t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, got, tt.want)
					}
				}
			}
		})
	}
}

func TestConvertPixelBuffer_RowPadding(t *testing.T) {
	// 2x2 Gray8 with 3 bytes of padding per row.
	data := []byte{
		1, 2, 0xee, 0xee, 0xee,
		3, 4, 0xee, 0xee, 0xee,
	}
	buf := vision.NewMemoryBuffer(data, 2, 2, vision.PixelFormatGray8)
	buf.Stride = 5

	img, err := ConvertPixelBuffer(buf)
	if err != nil {
		t.Fatalf("ConvertPixelBuffer failed: %v", err)
	}
	want := []uint8{1, 2, 3, 4}
	got := []uint8{img.RGBAAt(0, 0).R, img.RGBAAt(1, 0).R, img.RGBAAt(0, 1).R, img.RGBAAt(1, 1).R}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestConvertPixelBuffer_UnlocksOnError(t *testing.T) {
	tests := []struct {
		name string
		buf  func() (vision.PixelBuffer, *vision.MemoryBuffer)
	}{
		{"unknown format", func() (vision.PixelBuffer, *vision.MemoryBuffer) {
			b := vision.NewMemoryBuffer(make([]byte, 16), 2, 2, vision.PixelFormatUnknown)
			b.Stride = 8
			return b, b
		}},
		{"zero size", func() (vision.PixelBuffer, *vision.MemoryBuffer) {
			b := vision.NewMemoryBuffer(nil, 0, 0, vision.PixelFormatBGRA)
			return b, b
		}},
		{"short data", func() (vision.PixelBuffer, *vision.MemoryBuffer) {
			b := vision.NewMemoryBuffer(make([]byte, 10), 4, 4, vision.PixelFormatBGRA)
			return b, b
		}},
		{"short stride", func() (vision.PixelBuffer, *vision.MemoryBuffer) {
			b := vision.NewMemoryBuffer(make([]byte, 64), 4, 4, vision.PixelFormatBGRA)
			b.Stride = 8
			return b, b
		}},
		{"nil base address", func() (vision.PixelBuffer, *vision.MemoryBuffer) {
			b := vision.NewMemoryBuffer(make([]byte, 16), 2, 2, vision.PixelFormatBGRA)
			return nilAddressBuffer{b}, b
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, mem := tt.buf()
			img, err := ConvertPixelBuffer(buf)
			if img != nil {
				t.Error("expected nil image")
			}
			if vision.CodeOf(err) != vision.CodeInvalidInput {
				t.Errorf("code = %v, want invalid input (err %v)", vision.CodeOf(err), err)
			}
			if mem.Locked() {
				t.Error("buffer left locked")
			}
		})
	}
}

func TestConvertPixelBuffer_Nil(t *testing.T) {
	if _, err := ConvertPixelBuffer(nil); vision.CodeOf(err) != vision.CodeInvalidInput {
		t.Errorf("expected invalid input, got %v", err)
	}
}
