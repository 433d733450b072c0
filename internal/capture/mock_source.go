package capture

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockFrame describes one frame played back by MockSource.
type MockFrame struct {
	Width  int
	Height int
	Fresh  bool
	Image  *gocv.Mat // optional, cloned on every read
}

// MockSource plays back pre-recorded frames for testing
type MockSource struct {
	frames []MockFrame
	index  int
	loop   bool
	live   bool
	mu     sync.Mutex
	reads  int
}

// NewMockSource creates a live MockSource.
func NewMockSource(frames []MockFrame, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		live:   true,
	}
}

// FreshFrames returns n fresh w x h frames without images.
func FreshFrames(n, w, h int) []MockFrame {
	frames := make([]MockFrame, n)
	for i := range frames {
		frames[i] = MockFrame{Width: w, Height: h, Fresh: true}
	}
	return frames
}

// SetLive switches between live and still-image behaviour.
func (s *MockSource) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// CurrentFrame returns the next recorded frame, or ErrSourceUnavailable once
// playback is exhausted.
func (s *MockSource) CurrentFrame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++

	if s.index >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return Frame{}, ErrSourceUnavailable
		}
		s.index = 0
	}

	mf := s.frames[s.index]
	s.index++

	frame := Frame{
		Width:     mf.Width,
		Height:    mf.Height,
		Fresh:     mf.Fresh,
		Timestamp: time.Now(),
	}
	if mf.Image != nil {
		// Clone the frame so the original isn't modified
		mat := mf.Image.Clone()
		frame.Image = &mat
	}
	return frame, nil
}

// Live reports the configured liveness.
func (s *MockSource) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Reads returns how many times CurrentFrame was called.
func (s *MockSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Reset restarts playback from the beginning
func (s *MockSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}

// Close is a no-op for the mock source.
func (s *MockSource) Close() error {
	return nil
}
