package inference

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// DNNConfig holds the settings for one ONNX model run through OpenCV DNN.
type DNNConfig struct {
	ModelPath string
	// InputSize is the square input resolution of the model.
	InputSize int
	// Outputs names the output layers to fetch, in order. Empty means the
	// default output.
	Outputs []string
}

// DefaultDetectorConfig returns defaults for the pose detector model.
func DefaultDetectorConfig() DNNConfig {
	return DNNConfig{
		ModelPath: "models/pose_detection.onnx",
		InputSize: DetectorInputSize,
		Outputs:   []string{"Identity", "Identity_1"},
	}
}

// DefaultLandmarkerConfig returns defaults for the pose landmarker model.
func DefaultLandmarkerConfig() DNNConfig {
	return DNNConfig{
		ModelPath: "models/pose_landmark_full.onnx",
		InputSize: LandmarkerInputSize,
		Outputs:   []string{"Identity"},
	}
}

// dnnModel wraps a gocv.Net. OpenCV nets are not safe for concurrent use, so
// every forward pass holds mu.
type dnnModel struct {
	net    gocv.Net
	config DNNConfig
	mu     sync.Mutex
}

func loadModel(cfg DNNConfig) (*dnnModel, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &dnnModel{net: net, config: cfg}, nil
}

// run feeds an NHWC float32 tensor and returns a copy of every requested
// output.
func (m *dnnModel) run(ctx context.Context, input []float32) ([][]float32, error) {
	size := m.config.InputSize
	want := size * size * 3
	if len(input) != want {
		return nil, &ShapeError{Output: "input", Want: want, Got: len(input)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := gocv.NewMatWithSizesFromBytes([]int{1, size, size, 3}, gocv.MatTypeCV32F, float32Bytes(input))
	if err != nil {
		return nil, fmt.Errorf("create input blob: %w", err)
	}
	defer blob.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, "")

	var outputs []gocv.Mat
	if len(m.config.Outputs) == 0 {
		outputs = []gocv.Mat{m.net.Forward("")}
	} else {
		outputs = m.net.ForwardLayers(m.config.Outputs)
	}
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	result := make([][]float32, len(outputs))
	for i := range outputs {
		data, err := outputs[i].DataPtrFloat32()
		if err != nil {
			return nil, fmt.Errorf("read output %d: %w", i, err)
		}
		result[i] = append([]float32(nil), data...)
	}
	return result, nil
}

func (m *dnnModel) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

func float32Bytes(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DNNDetector implements PoseDetector with an ONNX model whose two outputs are
// the box regressors and the score logits of every anchor.
type DNNDetector struct {
	model *dnnModel
}

// NewDNNDetector loads the pose detector model.
func NewDNNDetector(cfg DNNConfig) (*DNNDetector, error) {
	m, err := loadModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("pose detector: %w", err)
	}
	return &DNNDetector{model: m}, nil
}

// Detect runs the detector and selects the best anchor.
func (d *DNNDetector) Detect(ctx context.Context, input []float32) (DetectorOutput, error) {
	outs, err := d.model.run(ctx, input)
	if err != nil {
		return DetectorOutput{}, err
	}
	if len(outs) < 2 {
		return DetectorOutput{}, &ShapeError{Output: "detector outputs", Want: 2, Got: len(outs)}
	}
	return ArgMaxFilter(outs[0], outs[1])
}

// Close releases the model.
func (d *DNNDetector) Close() error {
	return d.model.close()
}

// DNNLandmarker implements PoseLandmarker with an ONNX model whose first
// output is the flat landmark array.
type DNNLandmarker struct {
	model *dnnModel
}

// NewDNNLandmarker loads the pose landmarker model.
func NewDNNLandmarker(cfg DNNConfig) (*DNNLandmarker, error) {
	m, err := loadModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("pose landmarker: %w", err)
	}
	return &DNNLandmarker{model: m}, nil
}

// Landmark runs the landmarker on an ROI tensor.
func (l *DNNLandmarker) Landmark(ctx context.Context, input []float32) ([]float32, error) {
	outs, err := l.model.run(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(outs) == 0 {
		return nil, &ShapeError{Output: "landmarker outputs", Want: 1, Got: 0}
	}
	return outs[0], nil
}

// Close releases the model.
func (l *DNNLandmarker) Close() error {
	return l.model.close()
}
