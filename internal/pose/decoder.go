package pose

import (
	"math"

	"github.com/ayusman/tala/internal/anchors"
	"github.com/ayusman/tala/internal/geom"
	"github.com/ayusman/tala/internal/inference"
)

// Decoding constants of the pose detector.
const (
	// DefaultScoreThreshold is the minimum detector score for an active pose.
	DefaultScoreThreshold = 0.75
	// ROIScale enlarges the keypoint distance into the ROI radius.
	ROIScale = 1.25
)

// Detection is the decoded detector result for one frame. When Active is
// false every geometry field is left at its zero value.
type Detection struct {
	Active    bool
	Score     float64
	BoxCenter geom.Vec2   // image space
	BoxSize   geom.Vec2   // image space, non-negative
	Keypoint1 geom.Vec2   // hip center, origin of the ROI
	Keypoint2 geom.Vec2   // alignment point, fixes ROI scale and rotation
	Radius    float64     // ROI radius in image pixels
	ROI       geom.Affine // landmarker tensor -> image space
}

// Decoder turns detector output into image-space geometry and the ROI
// transform for the landmarker.
type Decoder struct {
	Anchors        *anchors.Table
	ScoreThreshold float64
	DetectorSize   float64 // detector input resolution
	LandmarkerSize float64 // landmarker input resolution
}

// NewDecoder creates a Decoder with the default threshold and model sizes.
func NewDecoder(table *anchors.Table) *Decoder {
	return &Decoder{
		Anchors:        table,
		ScoreThreshold: DefaultScoreThreshold,
		DetectorSize:   inference.DetectorInputSize,
		LandmarkerSize: inference.LandmarkerInputSize,
	}
}

// DetectorInputTransform returns the transform from detector tensor space to
// image space for a width x height image. The image is letterboxed into a
// square of side max(width, height) and the y axis is mirrored because tensor
// rows run top-down while image space has a bottom-left origin.
func DetectorInputTransform(width, height, detectorSize float64) geom.Affine {
	size := math.Max(width, height)
	scale := size / detectorSize
	origin := geom.V(width, height).Add(geom.V(-size, size)).Mul(0.5)
	return geom.Compose(geom.Translation(origin), geom.Scale(geom.V(scale, -scale)))
}

// Decode decodes out using m, the detector input transform of the frame.
// A score below the threshold, or NaN, yields an inactive Detection without
// touching the anchor table.
func (d *Decoder) Decode(out inference.DetectorOutput, m geom.Affine) (Detection, error) {
	if !(out.Score >= d.ScoreThreshold) {
		return Detection{Score: out.Score}, nil
	}

	anchor, err := d.Anchors.Get(out.AnchorIndex)
	if err != nil {
		return Detection{Score: out.Score}, err
	}
	anchorPos := geom.V(anchor.X, anchor.Y).Mul(d.DetectorSize)

	box := out.Box
	at := func(dx, dy float32) geom.Vec2 {
		return m.Apply(anchorPos.Add(geom.V(float64(dx), float64(dy))))
	}

	center := at(box[0], box[1])
	corner := at(box[0]+0.5*box[2], box[1]+0.5*box[3])
	kp1 := at(box[4], box[5])
	kp2 := at(box[6], box[7])

	delta := kp2.Sub(kp1)
	radius := ROIScale * delta.Len()
	theta := math.Atan2(delta.Y, delta.X)

	half := 0.5 * d.LandmarkerSize
	scale := radius / half
	roi := geom.Chain(
		geom.Translation(kp1),
		geom.Scale(geom.V(scale, -scale)),
		geom.Rotation(0.5*math.Pi-theta),
		geom.Translation(geom.V(-half, -half)),
	)

	return Detection{
		Active:    true,
		Score:     out.Score,
		BoxCenter: center,
		BoxSize:   corner.Sub(center).Mul(2).Abs(),
		Keypoint1: kp1,
		Keypoint2: kp2,
		Radius:    radius,
		ROI:       roi,
	}, nil
}
