// Package imaging is the pure-Go image backend of the soroban pipeline plus
// the helpers around it: frame loading, cropping, colour statistics, PNG
// encoding and the debug overlay.
//
// # Backend
//
// Backend implements vision.Backend without cgo. Resizing and cropping use
// github.com/disintegration/imaging, colour smoothing uses
// github.com/anthonynsimon/bild, and row loops are spread over CPUs with
// bild's parallel package. The remaining operations (CLAHE, adaptive
// threshold, morphology, Canny, contour tracing, probabilistic Hough,
// perspective warp) follow the OpenCV definitions closely enough that the
// detector tuned against OpenCV behaves the same on either backend.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with X increasing rightward and Y
// increasing downward. Every image returned by this package has bounds
// starting at (0,0), whatever the bounds of its input.
//
// # Thread Safety
//
// Backend is stateless and safe for concurrent use. ImageCache is safe for
// concurrent use.
package imaging
