package vision

import (
	"fmt"
	"sync"
)

// PixelFormat identifies the byte layout of a camera frame.
type PixelFormat int32

const (
	PixelFormatUnknown PixelFormat = 0
	PixelFormatBGRA    PixelFormat = 1
	PixelFormatRGBA    PixelFormat = 2
	PixelFormatBGR     PixelFormat = 3
	PixelFormatGray8   PixelFormat = 4
)

// BytesPerPixel returns the pixel stride for the format, 0 if unknown.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatBGRA, PixelFormatRGBA:
		return 4
	case PixelFormatBGR:
		return 3
	case PixelFormatGray8:
		return 1
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA:
		return "BGRA"
	case PixelFormatRGBA:
		return "RGBA"
	case PixelFormatBGR:
		return "BGR"
	case PixelFormatGray8:
		return "Gray8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int32(f))
	}
}

// PixelBuffer is a caller-owned camera frame.
//
// Pixel bytes may only be read between LockReadOnly and UnlockReadOnly.
// BaseAddress returns nil while the buffer is unlocked or when the platform
// could not map it.
type PixelBuffer interface {
	LockReadOnly() error
	UnlockReadOnly()
	Width() int
	Height() int
	BytesPerRow() int
	PixelFormat() PixelFormat
	BaseAddress() []byte
}

// MemoryBuffer is a PixelBuffer over a Go byte slice. It tracks lock state
// so tests can assert that every exit path released the frame.
type MemoryBuffer struct {
	Data   []byte
	W, H   int
	Stride int
	Format PixelFormat

	mu      sync.Mutex
	locked  bool
	lockCnt int
}

// NewMemoryBuffer wraps data with a tightly packed stride.
func NewMemoryBuffer(data []byte, width, height int, format PixelFormat) *MemoryBuffer {
	return &MemoryBuffer{
		Data:   data,
		W:      width,
		H:      height,
		Stride: width * format.BytesPerPixel(),
		Format: format,
	}
}

func (b *MemoryBuffer) LockReadOnly() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return fmt.Errorf("pixel buffer already locked")
	}
	b.locked = true
	b.lockCnt++
	return nil
}

func (b *MemoryBuffer) UnlockReadOnly() {
	b.mu.Lock()
	b.locked = false
	b.mu.Unlock()
}

// Locked reports whether the buffer is currently locked.
func (b *MemoryBuffer) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// LockCount returns how many times the buffer has been locked.
func (b *MemoryBuffer) LockCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lockCnt
}

func (b *MemoryBuffer) Width() int               { return b.W }
func (b *MemoryBuffer) Height() int              { return b.H }
func (b *MemoryBuffer) BytesPerRow() int         { return b.Stride }
func (b *MemoryBuffer) PixelFormat() PixelFormat { return b.Format }

func (b *MemoryBuffer) BaseAddress() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.locked {
		return nil
	}
	return b.Data
}
