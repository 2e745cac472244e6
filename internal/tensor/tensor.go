// Package tensor converts bead cell images into the normalised NCHW float32
// batches the classifier consumes.
package tensor

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"
)

// Channels is the number of colour planes per cell (R, G, B).
const Channels = 3

// Batch is an owned [N, C, H, W] float32 buffer.
type Batch struct {
	Data       []float32
	N, C, H, W int
}

// Len returns the number of float32 values in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Shape returns the dimensions in NCHW order.
func (b *Batch) Shape() []int64 {
	if b == nil {
		return []int64{0, 0, 0, 0}
	}
	return []int64{int64(b.N), int64(b.C), int64(b.H), int64(b.W)}
}

// Cell returns the C×H×W slice for cell i.
func (b *Batch) Cell(i int) []float32 {
	size := b.C * b.H * b.W
	return b.Data[i*size : (i+1)*size]
}

// Release drops the buffer. It is safe to call on a nil Batch and more
// than once.
func (b *Batch) Release() {
	if b == nil {
		return
	}
	b.Data = nil
	b.N, b.C, b.H, b.W = 0, 0, 0, 0
}

// Converter turns images into batches using a TensorConfig.
type Converter struct {
	mu  sync.RWMutex
	cfg vision.TensorConfig
}

// NewConverter creates a Converter.
func NewConverter(cfg vision.TensorConfig) *Converter {
	return &Converter{cfg: cfg}
}

// Config returns a copy of the current configuration.
func (c *Converter) Config() vision.TensorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// SetConfig validates and replaces the configuration.
func (c *Converter) SetConfig(cfg vision.TensorConfig) error {
	if err := cfg.Validate(); err != nil {
		return vision.NewError(vision.CodeInvalidInput, "tensor config", err)
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

// ConvertCell converts a single image into a batch of one.
func (c *Converter) ConvertCell(img image.Image) (*Batch, error) {
	return c.ConvertBatch([]image.Image{img})
}

// ConvertBatch resizes every cell to CellSize×CellSize, normalises it with
// the configured mean and std, and packs the results in input order. Any
// empty cell fails the whole batch with CodeTensorConversionFailed.
func (c *Converter) ConvertBatch(cells []image.Image) (*Batch, error) {
	if len(cells) == 0 {
		return nil, vision.Errorf(vision.CodeTensorConversionFailed, "tensor", "no cells")
	}
	cfg := c.Config()
	if err := cfg.Validate(); err != nil {
		return nil, vision.NewError(vision.CodeTensorConversionFailed, "tensor", err)
	}
	for i, cell := range cells {
		if cell == nil || cell.Bounds().Empty() {
			return nil, vision.Errorf(vision.CodeTensorConversionFailed, "tensor", "cell %d is empty", i)
		}
	}

	size := cfg.CellSize
	b := &Batch{
		Data: make([]float32, len(cells)*Channels*size*size),
		N:    len(cells),
		C:    Channels,
		H:    size,
		W:    size,
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, cell := range cells {
		g.Go(func() error {
			return fillCell(b.Cell(i), cell, cfg)
		})
	}
	if err := g.Wait(); err != nil {
		b.Release()
		return nil, vision.NewError(vision.CodeTensorConversionFailed, "tensor", err)
	}
	return b, nil
}

// fillCell writes one normalised CHW cell into dst.
func fillCell(dst []float32, img image.Image, cfg vision.TensorConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converting cell: %v", r)
		}
	}()

	size := cfg.CellSize
	resized := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(resized, resized.Rect, img, img.Bounds(), draw.Src, nil)

	var scale, offset [Channels]float32
	for ch := 0; ch < Channels; ch++ {
		scale[ch] = 1 / (255 * cfg.Std[ch])
		offset[ch] = cfg.Mean[ch] / cfg.Std[ch]
	}

	plane := size * size
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			for ch := 0; ch < Channels; ch++ {
				dst[ch*plane+i] = float32(row[4*x+ch])*scale[ch] - offset[ch]
			}
		}
	}
	return nil
}
