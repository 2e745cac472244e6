// Package preprocess turns a camera frame into the images frame detection
// works on: a colour working copy, an equalised gray image, a cleaned
// binary mask and a Canny edge map.
//
// Stages run in a fixed order:
//
//  1. colour normalisation to opaque RGBA
//  2. downscale so the long edge fits TargetLongEdge
//  3. gray-world white balance
//  4. Gaussian blur, then bilateral filter
//  5. grayscale
//  6. CLAHE
//  7. Gaussian adaptive threshold
//  8. morphological close then open
//  9. Canny on the equalised gray image
//
// Stages 3, 4 and 6 are switched by PreprocessingConfig.
package preprocess
