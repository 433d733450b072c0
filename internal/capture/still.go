package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// StillImage is a non-live Source that serves the same image on every call.
// It stands in for the camera when none is available.
type StillImage struct {
	mu    sync.Mutex
	image gocv.Mat
	path  string
}

// OpenStillImage loads the image at path.
func OpenStillImage(path string) (*StillImage, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("read still image %s: empty or unsupported", path)
	}
	return &StillImage{image: img, path: path}, nil
}

// NewStillImage wraps a copy of img.
func NewStillImage(img gocv.Mat) *StillImage {
	return &StillImage{image: img.Clone()}
}

// CurrentFrame returns a copy of the image.
func (s *StillImage) CurrentFrame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image.Empty() {
		return Frame{}, ErrSourceUnavailable
	}
	mat := s.image.Clone()
	return newFrame(&mat, true), nil
}

// Live always reports false for a still image.
func (s *StillImage) Live() bool {
	return false
}

// Path returns the file the image was loaded from, if any.
func (s *StillImage) Path() string {
	return s.path
}

// Close releases the image.
func (s *StillImage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image.Close()
}
