// Package detection locates the soroban frame in a preprocessed image and
// cuts the rectified frame into lanes and bead cells.
//
// # Frame detection
//
// DetectFrame scans the external contours of the binary mask. A contour is
// a candidate when its area lies inside the configured fraction of the
// image, its Douglas-Peucker approximation is a convex quadrilateral, and the
// bounding box aspect ratio is in range. The largest candidate wins.
//
// # Coordinate system
//
// Corners and bounding boxes are in working-image pixels with the origin at
// the top-left. Lane bounding boxes are in rectified-frame pixels.
//
// # Lanes
//
// The rectified frame is split into equal-width vertical strips. Strip i
// (from the left) holds digit position laneCount-1-i, so the rightmost strip
// is the ones place. Each strip is cut vertically by the bead ratios into
// one upper cell, a skipped divider band, and four lower cells.
package detection
