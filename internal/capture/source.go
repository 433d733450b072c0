// Package capture provides camera and still-image frame sources using GoCV (OpenCV).
package capture

import (
	"errors"
	"time"

	"gocv.io/x/gocv"
)

// ErrSourceUnavailable is returned when a source has no frame to offer right
// now. Callers should wait and try again.
var ErrSourceUnavailable = errors.New("frame source unavailable")

// Frame is one image handed out by a Source. The receiver owns Image and must
// call Close.
type Frame struct {
	Image     *gocv.Mat // BGR, may be nil for synthetic frames
	Width     int
	Height    int
	Fresh     bool // true when the source produced a new image since the last call
	Timestamp time.Time
}

// Close releases the frame image.
func (f *Frame) Close() error {
	if f.Image == nil {
		return nil
	}
	err := f.Image.Close()
	f.Image = nil
	return err
}

// Source supplies frames to the pose pipeline.
type Source interface {
	// CurrentFrame returns the latest frame or ErrSourceUnavailable.
	CurrentFrame() (Frame, error)
	// Live reports whether frames keep arriving (camera) or the image is
	// fixed (still image).
	Live() bool
	Close() error
}

func newFrame(mat *gocv.Mat, fresh bool) Frame {
	return Frame{
		Image:     mat,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Fresh:     fresh,
		Timestamp: time.Now(),
	}
}
