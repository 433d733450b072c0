package pose

import "github.com/ayusman/tala/internal/geom"

// Projector maps landmarker output through the ROI transform into image
// space and then into the normalized world space used by the preview.
type Projector struct {
	Width  float64 // source image width in pixels
	Height float64 // source image height in pixels
}

// ImageToWorld centers p on the image and divides by the image height, so
// world y spans [-0.5, 0.5].
func (p Projector) ImageToWorld(v geom.Vec2) geom.Vec2 {
	return v.Sub(geom.V(0.5*p.Width, 0.5*p.Height)).Mul(1 / p.Height)
}

// Project converts raw landmarker output, laid out as NumKeypoints records of
// [x, y, z, visibility, presence], into index-aligned keypoints.
func (p Projector) Project(raw []float32, roi geom.Affine) ([]Keypoint, error) {
	if len(raw) < LandmarkerWidth {
		return nil, &ShapeError{What: "landmarker output", Want: LandmarkerWidth, Got: len(raw)}
	}

	keypoints := make([]Keypoint, NumKeypoints)
	for i := 0; i < NumKeypoints; i++ {
		rec := raw[i*ValuesPerPoint : (i+1)*ValuesPerPoint]

		img := roi.Apply(geom.V(float64(rec[0]), float64(rec[1])))
		world := p.ImageToWorld(img)
		visibility := float64(rec[3])
		presence := float64(rec[4])

		keypoints[i] = Keypoint{
			Index:      i,
			Active:     visible(visibility, presence),
			Visibility: visibility,
			Presence:   presence,
			Image:      img,
			World: Point3D{
				X: world.X,
				Y: world.Y,
				Z: float64(rec[2]) / p.Height,
			},
		}
	}

	return keypoints, nil
}
