// Package pose decodes pose detector output into a landmarker region of
// interest and projects landmarker keypoints back into image and world space.
package pose

import (
	"fmt"

	"github.com/ayusman/tala/internal/geom"
)

// Pose landmark indices following the BlazePose 33-point convention.
// See: https://developers.google.com/mediapipe/solutions/vision/pose_landmarker
const (
	Nose            = 0
	LeftEyeInner    = 1
	LeftEye         = 2
	LeftEyeOuter    = 3
	RightEyeInner   = 4
	RightEye        = 5
	RightEyeOuter   = 6
	LeftEar         = 7
	RightEar        = 8
	MouthLeft       = 9
	MouthRight      = 10
	LeftShoulder    = 11
	RightShoulder   = 12
	LeftElbow       = 13
	RightElbow      = 14
	LeftWrist       = 15
	RightWrist      = 16
	LeftPinky       = 17
	RightPinky      = 18
	LeftIndex       = 19
	RightIndex      = 20
	LeftThumb       = 21
	RightThumb      = 22
	LeftHip         = 23
	RightHip        = 24
	LeftKnee        = 25
	RightKnee       = 26
	LeftAnkle       = 27
	RightAnkle      = 28
	LeftHeel        = 29
	RightHeel       = 30
	LeftFootIndex   = 31
	RightFootIndex  = 32
	NumKeypoints    = 33
	ValuesPerPoint  = 5 // x, y, z, visibility, presence
	LandmarkerWidth = NumKeypoints * ValuesPerPoint
)

// VisibilityThreshold gates both the visibility and the presence score.
const VisibilityThreshold = 0.5

// Point3D represents a 3D point in world space.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Keypoint is one projected landmark.
type Keypoint struct {
	Index      int       `json:"index"`
	Active     bool      `json:"active"`
	Visibility float64   `json:"visibility"`
	Presence   float64   `json:"presence"`
	Image      geom.Vec2 `json:"image"` // image space, bottom-left origin
	World      Point3D   `json:"world"`
}

// ShapeError reports an inference output with an unexpected element count.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: expected at least %d values, got %d", e.What, e.Want, e.Got)
}

// visible applies the shared visibility/presence gate.
func visible(visibility, presence float64) bool {
	return visibility > VisibilityThreshold && presence > VisibilityThreshold
}
