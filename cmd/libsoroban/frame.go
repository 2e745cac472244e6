package main

/*
#define SOROBAN_NO_PROTOTYPES
#include "soroban.h"

static inline int32_t soroban_lock_frame(SorobanFrame *f) {
	return f->lock ? f->lock(f->user_data) : 0;
}

static inline void soroban_unlock_frame(SorobanFrame *f) {
	if (f->unlock) f->unlock(f->user_data);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// cFrame exposes a host frame as a vision.PixelBuffer. The host's lock and
// unlock callbacks run around every pixel access.
type cFrame struct {
	f *C.SorobanFrame
}

var _ vision.PixelBuffer = cFrame{}

func (b cFrame) LockReadOnly() error {
	if rc := C.soroban_lock_frame(b.f); rc != 0 {
		return fmt.Errorf("host lock failed with %d", int32(rc))
	}
	return nil
}

func (b cFrame) UnlockReadOnly() { C.soroban_unlock_frame(b.f) }

func (b cFrame) Width() int       { return int(b.f.width) }
func (b cFrame) Height() int      { return int(b.f.height) }
func (b cFrame) BytesPerRow() int { return int(b.f.bytes_per_row) }

func (b cFrame) PixelFormat() vision.PixelFormat {
	return vision.PixelFormat(b.f.pixel_format)
}

// BaseAddress views the host pixels without copying. Valid only while
// locked.
func (b cFrame) BaseAddress() []byte {
	n := int(b.f.bytes_per_row) * int(b.f.height)
	if b.f.data == nil || n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(b.f.data)), n)
}
