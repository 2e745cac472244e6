//go:build !opencv

package cvbackend

import (
	"errors"
	"testing"
)

func TestNewWithoutOpenCV(t *testing.T) {
	b, err := New()
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if b != nil {
		t.Error("backend should be nil when unavailable")
	}
}
