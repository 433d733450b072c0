package anchors

import "math"

// SSDOptions describes an SSD anchor layout. Only anchor centers are produced;
// every layout used here has fixed anchor size.
type SSDOptions struct {
	InputWidth     int
	InputHeight    int
	MinScale       float64
	MaxScale       float64
	Strides        []int
	AspectRatios   []float64
	AnchorOffsetX  float64
	AnchorOffsetY  float64
	InterpolatedAR float64 // extra anchor per cell at sqrt(scale*nextScale); 0 disables
}

// PoseDetectorOptions returns the layout of the 224x224 pose detector, which
// yields PoseAnchorCount anchors.
func PoseDetectorOptions() SSDOptions {
	return SSDOptions{
		InputWidth:     224,
		InputHeight:    224,
		MinScale:       0.1484375,
		MaxScale:       0.75,
		Strides:        []int{8, 16, 32, 32, 32},
		AspectRatios:   []float64{1.0},
		AnchorOffsetX:  0.5,
		AnchorOffsetY:  0.5,
		InterpolatedAR: 1.0,
	}
}

// Generate builds the anchor table for opts. Consecutive layers that share a
// stride are merged into one feature map with all their anchors per cell,
// ordered row-major by cell.
func Generate(opts SSDOptions) *Table {
	var anchors []Anchor

	layer := 0
	for layer < len(opts.Strides) {
		perCell := 0
		last := layer
		for last < len(opts.Strides) && opts.Strides[last] == opts.Strides[layer] {
			perCell += len(opts.AspectRatios)
			if opts.InterpolatedAR > 0 {
				perCell++
			}
			last++
		}

		stride := opts.Strides[layer]
		fmW := int(math.Ceil(float64(opts.InputWidth) / float64(stride)))
		fmH := int(math.Ceil(float64(opts.InputHeight) / float64(stride)))

		for y := 0; y < fmH; y++ {
			cy := (float64(y) + opts.AnchorOffsetY) / float64(fmH)
			for x := 0; x < fmW; x++ {
				cx := (float64(x) + opts.AnchorOffsetX) / float64(fmW)
				for k := 0; k < perCell; k++ {
					anchors = append(anchors, Anchor{X: cx, Y: cy})
				}
			}
		}

		layer = last
	}

	return &Table{anchors: anchors}
}
