// Package inference defines the boundary to the pose detector and landmarker
// models and provides gocv-backed and mock implementations.
package inference

import (
	"context"
	"fmt"
)

// Model input resolutions.
const (
	DetectorInputSize   = 224
	LandmarkerInputSize = 256
	BoxValues           = 12 // dx, dy, dw, dh, kp1x, kp1y, kp2x, kp2y, ...
)

// DetectorOutput is the best-scoring anchor selected from the detector heads.
type DetectorOutput struct {
	AnchorIndex int
	Score       float64
	Box         [BoxValues]float32
}

// PoseDetector runs the first stage on an NHWC detector input tensor.
type PoseDetector interface {
	Detect(ctx context.Context, input []float32) (DetectorOutput, error)
	Close() error
}

// PoseLandmarker runs the second stage on an NHWC ROI tensor and returns the
// flat landmark record array.
type PoseLandmarker interface {
	Landmark(ctx context.Context, input []float32) ([]float32, error)
	Close() error
}

// ShapeError reports a model output with an unexpected element count.
type ShapeError struct {
	Output string
	Want   int
	Got    int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("inference: output %q has %d values, want %d", e.Output, e.Got, e.Want)
}
