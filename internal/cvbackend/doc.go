// Package cvbackend implements vision.Backend on OpenCV through gocv.
//
// # Prerequisites
//
// OpenCV 4 and its pkg-config files must be installed, and the package must
// be built with the "opencv" tag:
//
//	go build -tags opencv ./cmd/soroban-mcp
//
// Without the tag New returns ErrUnavailable and callers fall back to the
// pure-Go backend in internal/imaging.
//
// # Memory
//
// Every gocv.Mat is closed before the method that created it returns. Images
// cross the boundary as copies, so results never alias OpenCV memory.
package cvbackend

import "errors"

// ErrUnavailable is returned by New when the binary was built without
// OpenCV support.
var ErrUnavailable = errors.New("opencv backend not compiled in (build with -tags opencv)")
