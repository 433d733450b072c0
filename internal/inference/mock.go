package inference

import (
	"context"
	"sync"

	"github.com/ayusman/tala/internal/geom"
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of PoseDetector.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	output DetectorOutput
	err    error
	block  chan struct{}
	calls  int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetOutput sets the output that will be returned by Detect.
func (m *MockDetector) SetOutput(out DetectorOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = out
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Block makes Detect wait until ch is closed or its context is done.
func (m *MockDetector) Block(ch chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = ch
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured output or error.
func (m *MockDetector) Detect(ctx context.Context, input []float32) (DetectorOutput, error) {
	m.mu.Lock()
	m.calls++
	out, err, block := m.output, m.err, m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return DetectorOutput{}, ctx.Err()
		}
	}
	if err != nil {
		return DetectorOutput{}, err
	}
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// MockLandmarker is a test implementation of PoseLandmarker.
type MockLandmarker struct {
	mu        sync.Mutex
	landmarks []float32
	err       error
	calls     int
}

// NewMockLandmarker creates a new MockLandmarker instance.
func NewMockLandmarker() *MockLandmarker {
	return &MockLandmarker{}
}

// SetLandmarks sets the flat landmark array returned by Landmark.
func (m *MockLandmarker) SetLandmarks(v []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.landmarks = v
}

// SetError sets the error that will be returned by Landmark.
func (m *MockLandmarker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Landmark was called.
func (m *MockLandmarker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Landmark returns the pre-configured landmarks or error.
func (m *MockLandmarker) Landmark(ctx context.Context, input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return append([]float32(nil), m.landmarks...), nil
}

// Close is a no-op for the mock landmarker.
func (m *MockLandmarker) Close() error {
	return nil
}

// MockSampler records the transforms it was asked to sample with and returns
// a zero tensor.
type MockSampler struct {
	mu         sync.Mutex
	transforms []geom.Affine
}

// Sample returns size*size*3 zeros. img may be nil.
func (s *MockSampler) Sample(img *gocv.Mat, m geom.Affine, size int) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transforms = append(s.transforms, m)
	return make([]float32, size*size*3), nil
}

// Transforms returns the transforms seen so far.
func (s *MockSampler) Transforms() []geom.Affine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]geom.Affine(nil), s.transforms...)
}
