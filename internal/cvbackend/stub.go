//go:build !opencv

package cvbackend

import "github.com/TaiyoYamada/AbacusKit-sub000/internal/vision"

// New reports that OpenCV support is not compiled in.
func New() (vision.Backend, error) {
	return nil, ErrUnavailable
}
