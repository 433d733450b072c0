package inference

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ayusman/tala/internal/geom"
	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when sampling from a nil or empty image.
var ErrEmptyImage = errors.New("empty image")

// Sampler produces a square NHWC RGB tensor in [0, 1] from a BGR image.
// m maps tensor coordinates (pixels, y down) to image space (pixels, y up).
type Sampler interface {
	Sample(img *gocv.Mat, m geom.Affine, size int) ([]float32, error)
}

// WarpSampler implements Sampler with bilinear gocv.WarpAffine. Pixels that
// fall outside the source image are black.
type WarpSampler struct{}

// NewWarpSampler creates a WarpSampler.
func NewWarpSampler() *WarpSampler {
	return &WarpSampler{}
}

// PixelTransform converts m into a map from tensor pixel indices to source
// pixel indices of an image with the given height, both using pixel centers
// and OpenCV's top-down rows.
func PixelTransform(m geom.Affine, height float64) geom.Affine {
	half := geom.V(0.5, 0.5)
	return geom.Chain(
		geom.Translation(half.Mul(-1)),
		geom.FlipY(height),
		m,
		geom.Translation(half),
	)
}

// Sample warps img into a size x size tensor.
func (s *WarpSampler) Sample(img *gocv.Mat, m geom.Affine, size int) ([]float32, error) {
	if img == nil || img.Empty() {
		return nil, ErrEmptyImage
	}

	// WarpAffine expects the source -> destination map.
	fwd, ok := PixelTransform(m, float64(img.Rows())).Invert()
	if !ok {
		return nil, fmt.Errorf("sample: singular transform %+v", m)
	}

	mat := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	defer mat.Close()
	mat.SetDoubleAt(0, 0, fwd.A)
	mat.SetDoubleAt(0, 1, fwd.B)
	mat.SetDoubleAt(0, 2, fwd.Tx)
	mat.SetDoubleAt(1, 0, fwd.C)
	mat.SetDoubleAt(1, 1, fwd.D)
	mat.SetDoubleAt(1, 2, fwd.Ty)

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpAffineWithParams(*img, &warped, mat, image.Pt(size, size),
		gocv.InterpolationLinear, gocv.BorderConstant, color.RGBA{})

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(warped, &rgb, gocv.ColorBGRToRGB)

	scaled := gocv.NewMat()
	defer scaled.Close()
	rgb.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/255, 0)

	data, err := scaled.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("sample: read tensor: %w", err)
	}
	return append([]float32(nil), data...), nil
}
