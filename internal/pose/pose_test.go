package pose

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/tala/internal/anchors"
	"github.com/ayusman/tala/internal/geom"
	"github.com/ayusman/tala/internal/inference"
)

const epsilon = 1e-6

func near(a, b geom.Vec2) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon
}

func TestDetectorInputTransform(t *testing.T) {
	t.Run("square image mirrors y only", func(t *testing.T) {
		m := DetectorInputTransform(224, 224, 224)
		if got := m.Apply(geom.V(0, 0)); !near(got, geom.V(0, 224)) {
			t.Errorf("tensor origin maps to %v, want top-left (0,224)", got)
		}
		if got := m.Apply(geom.V(224, 224)); !near(got, geom.V(224, 0)) {
			t.Errorf("tensor far corner maps to %v, want (224,0)", got)
		}
	})

	t.Run("landscape image is letterboxed vertically", func(t *testing.T) {
		m := DetectorInputTransform(640, 480, 224)
		// tensor center lands on image center
		if got := m.Apply(geom.V(112, 112)); !near(got, geom.V(320, 240)) {
			t.Errorf("tensor center maps to %v, want (320,240)", got)
		}
		// tensor top row sits 80px above the image top
		if got := m.Apply(geom.V(0, 0)); !near(got, geom.V(0, 560)) {
			t.Errorf("tensor origin maps to %v, want (0,560)", got)
		}
	})
}

func TestDecoder_BelowThreshold(t *testing.T) {
	d := NewDecoder(anchors.Generate(anchors.PoseDetectorOptions()))

	// an out-of-range anchor index proves no lookup happens
	out := inference.DetectorOutput{AnchorIndex: -42, Score: 0.5}
	for i := range out.Box {
		out.Box[i] = 7
	}

	det, err := d.Decode(out, geom.Identity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Active {
		t.Error("expected inactive detection")
	}
	if det.Score != 0.5 {
		t.Errorf("expected score to be reported, got %f", det.Score)
	}

	want := Detection{Score: 0.5}
	if det != want {
		t.Errorf("expected untouched geometry, got %+v", det)
	}
}

func TestDecoder_ThresholdIsInclusive(t *testing.T) {
	d := NewDecoder(anchors.Generate(anchors.PoseDetectorOptions()))
	out := inference.DetectorOutput{AnchorIndex: 0, Score: DefaultScoreThreshold}
	out.Box[6] = 10

	det, err := d.Decode(out, geom.Identity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !det.Active {
		t.Error("expected score equal to threshold to be active")
	}
}

func TestDecoder_NaNScoreInactive(t *testing.T) {
	d := NewDecoder(anchors.Generate(anchors.PoseDetectorOptions()))
	out := inference.DetectorOutput{AnchorIndex: -1, Score: math.NaN()}

	det, err := d.Decode(out, geom.Identity())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if det.Active {
		t.Error("expected NaN score to be inactive")
	}
	if det.ROI != (geom.Affine{}) || det.Radius != 0 {
		t.Errorf("expected untouched geometry, got %+v", det)
	}
}

func TestDecoder_IndexError(t *testing.T) {
	d := NewDecoder(anchors.Generate(anchors.PoseDetectorOptions()))
	out := inference.DetectorOutput{AnchorIndex: anchors.PoseAnchorCount, Score: 0.99}

	_, err := d.Decode(out, geom.Identity())
	var ierr *anchors.IndexError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected IndexError, got %v", err)
	}
}

func TestDecoder_Geometry(t *testing.T) {
	d := NewDecoder(anchors.Generate(anchors.PoseDetectorOptions()))
	m := DetectorInputTransform(224, 224, 224)

	// anchor 0 sits at (4,4) in tensor space
	out := inference.DetectorOutput{
		AnchorIndex: 0,
		Score:       0.9,
		Box:         [12]float32{2, 3, 10, 20, 96, 96, 96, 36},
	}

	det, err := d.Decode(out, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("bounding box", func(t *testing.T) {
		if !near(det.BoxCenter, geom.V(6, 217)) {
			t.Errorf("box center = %v, want (6,217)", det.BoxCenter)
		}
		if !near(det.BoxSize, geom.V(10, 20)) {
			t.Errorf("box size = %v, want (10,20)", det.BoxSize)
		}
	})

	t.Run("keypoints and radius", func(t *testing.T) {
		if !near(det.Keypoint1, geom.V(100, 124)) {
			t.Errorf("kp1 = %v, want (100,124)", det.Keypoint1)
		}
		if !near(det.Keypoint2, geom.V(100, 184)) {
			t.Errorf("kp2 = %v, want (100,184)", det.Keypoint2)
		}
		if math.Abs(det.Radius-75) > epsilon {
			t.Errorf("radius = %f, want 75", det.Radius)
		}
	})

	t.Run("roi centers kp1 and puts kp2 straight above", func(t *testing.T) {
		checkROI(t, det)
	})
}

// checkROI verifies the canonical crop: the landmarker center maps to kp1 and
// the point 0.8*half above it maps to kp2.
func checkROI(t *testing.T, det Detection) {
	t.Helper()
	half := 0.5 * float64(inference.LandmarkerInputSize)

	if got := det.ROI.Apply(geom.V(half, half)); !near(got, det.Keypoint1) {
		t.Errorf("ROI center maps to %v, want kp1 %v", got, det.Keypoint1)
	}
	above := geom.V(half, half-half/ROIScale)
	if got := det.ROI.Apply(above); !near(got, det.Keypoint2) {
		t.Errorf("ROI alignment point maps to %v, want kp2 %v", got, det.Keypoint2)
	}
}

func TestDecoder_ROIIndependentOfOrientation(t *testing.T) {
	d := NewDecoder(anchors.Generate(anchors.PoseDetectorOptions()))
	m := DetectorInputTransform(640, 480, 224)

	for _, angle := range []float64{0, 0.4, math.Pi / 2, 2.5, -1.2, math.Pi} {
		var out inference.DetectorOutput
		out.AnchorIndex = 1000
		out.Score = 0.8
		out.Box[6] = float32(30 * math.Cos(angle))
		out.Box[7] = float32(30 * math.Sin(angle))

		det, err := d.Decode(out, m)
		if err != nil {
			t.Fatalf("angle %f: unexpected error: %v", angle, err)
		}
		checkROI(t, det)
	}
}

func TestProjector_Project(t *testing.T) {
	p := Projector{Width: 640, Height: 480}

	t.Run("short input fails with ShapeError", func(t *testing.T) {
		_, err := p.Project(make([]float32, LandmarkerWidth-1), geom.Identity())
		var serr *ShapeError
		if !errors.As(err, &serr) {
			t.Fatalf("expected ShapeError, got %v", err)
		}
		if serr.Want != LandmarkerWidth || serr.Got != LandmarkerWidth-1 {
			t.Errorf("unexpected shape error fields: %+v", serr)
		}
	})

	t.Run("projects through roi and gates visibility", func(t *testing.T) {
		raw := make([]float32, LandmarkerWidth)
		for i := 0; i < NumKeypoints; i++ {
			rec := raw[i*ValuesPerPoint:]
			rec[0] = float32(i)
			rec[1] = 10
			rec[2] = 48
			rec[3] = 0.9
			rec[4] = 0.9
		}
		// visibility and presence each gate independently; 0.5 is not visible
		raw[LeftWrist*ValuesPerPoint+3] = 0.2
		raw[RightWrist*ValuesPerPoint+4] = 0.4
		raw[Nose*ValuesPerPoint+3] = 0.5

		roi := geom.Translation(geom.V(320, 240))
		kps, err := p.Project(raw, roi)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(kps) != NumKeypoints {
			t.Fatalf("expected %d keypoints, got %d", NumKeypoints, len(kps))
		}

		for i, kp := range kps {
			if kp.Index != i {
				t.Errorf("keypoint %d has index %d", i, kp.Index)
			}
		}

		for _, idx := range []int{LeftWrist, RightWrist, Nose} {
			if kps[idx].Active {
				t.Errorf("keypoint %d should be inactive", idx)
			}
		}
		if !kps[LeftShoulder].Active || !kps[RightShoulder].Active {
			t.Error("shoulders should be active")
		}

		// keypoint 3: image (323, 250) -> world ((3, 10) / 480, 48/480)
		kp := kps[3]
		if !near(kp.Image, geom.V(323, 250)) {
			t.Errorf("image = %v, want (323,250)", kp.Image)
		}
		if math.Abs(kp.World.X-3.0/480) > epsilon || math.Abs(kp.World.Y-10.0/480) > epsilon {
			t.Errorf("world = %+v, want (%f,%f)", kp.World, 3.0/480, 10.0/480)
		}
		if math.Abs(kp.World.Z-0.1) > epsilon {
			t.Errorf("world z = %f, want 0.1", kp.World.Z)
		}
	})

	t.Run("extra values are ignored", func(t *testing.T) {
		kps, err := p.Project(make([]float32, LandmarkerWidth+39), geom.Identity())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(kps) != NumKeypoints {
			t.Errorf("expected %d keypoints, got %d", NumKeypoints, len(kps))
		}
	})
}

func TestProjector_ImageToWorld(t *testing.T) {
	p := Projector{Width: 640, Height: 480}
	if got := p.ImageToWorld(geom.V(320, 240)); !near(got, geom.V(0, 0)) {
		t.Errorf("image center maps to %v, want origin", got)
	}
	if got := p.ImageToWorld(geom.V(640, 480)); !near(got, geom.V(320.0/480, 0.5)) {
		t.Errorf("image corner maps to %v", got)
	}
}
