package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop extracts the region r of img as a new image at the origin.
//
// Returns an error when r is empty or not fully inside the image bounds.
func Crop(img image.Image, r image.Rectangle) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region %v outside image bounds %v", r, bounds)
	}
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region %v: x1 must be < x2, y1 must be < y2", r)
	}
	return ToRGBA(imaging.Crop(img, r)), nil
}

// CropClamped is Crop with r first intersected with the image bounds.
func CropClamped(img image.Image, r image.Rectangle) (*image.RGBA, error) {
	if isEmpty(img) {
		return nil, ErrEmptyImage
	}
	return Crop(img, r.Intersect(img.Bounds()))
}
