package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/tala/internal/anchors"
	"github.com/ayusman/tala/internal/capture"
	"github.com/ayusman/tala/internal/geom"
	"github.com/ayusman/tala/internal/gesture"
	"github.com/ayusman/tala/internal/inference"
	"github.com/ayusman/tala/internal/logger"
	"github.com/ayusman/tala/internal/pose"
	"go.uber.org/zap"
)

// Pipeline timing defaults.
const (
	// DefaultIdleInterval is the wait after the source reports no frame.
	DefaultIdleInterval = 10 * time.Millisecond
	// DefaultStillInterval is the pause between frames of a still image.
	DefaultStillInterval = 50 * time.Millisecond
	// MinValidFrameSize is the largest width or height still treated as a
	// placeholder frame while a camera starts up.
	MinValidFrameSize = 16
)

// Options are the per-frame tuning options. They may be changed while the
// pipeline runs.
type Options struct {
	ScoreThreshold      float64
	DetectEveryNthFrame int
	EnableClapDetection bool
	WaitForValidFrame   bool
	IdleInterval        time.Duration
	StillInterval       time.Duration
}

// DefaultOptions returns the default pipeline options.
func DefaultOptions() Options {
	return Options{
		ScoreThreshold:      pose.DefaultScoreThreshold,
		DetectEveryNthFrame: 4,
		EnableClapDetection: true,
		WaitForValidFrame:   true,
		IdleInterval:        DefaultIdleInterval,
		StillInterval:       DefaultStillInterval,
	}
}

// Box is the detector bounding box in world space.
type Box struct {
	Center geom.Vec2 `json:"center"`
	Size   geom.Vec2 `json:"size"`
}

// Circle is the landmarker ROI in world space.
type Circle struct {
	Center geom.Vec2 `json:"center"`
	Radius float64   `json:"radius"`
}

// KeypointResult is one keypoint of a FrameResult.
type KeypointResult struct {
	Index    int          `json:"index"`
	Active   bool         `json:"active"`
	Position pose.Point3D `json:"position"`
}

// FrameResult is everything the pipeline publishes for one processed frame.
type FrameResult struct {
	Seq       uint64             `json:"seq"`
	Timestamp time.Time          `json:"timestamp"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Active    bool               `json:"active"`
	Score     float64            `json:"score"`
	Box       *Box               `json:"box,omitempty"`
	Circle    *Circle            `json:"circle,omitempty"`
	Keypoints []KeypointResult   `json:"keypoints,omitempty"`
	Clap      *gesture.ClapEvent `json:"clap,omitempty"`
}

// PipelineConfig wires a Pipeline to its collaborators.
type PipelineConfig struct {
	Source     capture.Source
	Detector   inference.PoseDetector
	Landmarker inference.PoseLandmarker
	Sampler    inference.Sampler
	Anchors    *anchors.Table
	Clap       *gesture.ClapDetector // nil creates one with default thresholds
	Options    Options
	Publish    func(FrameResult) // called on the pipeline goroutine
	Logger     *zap.Logger
	Metrics    *Metrics
	Clock      func() time.Time
}

// Pipeline drives detect, decode, landmark, project and clap for each
// admitted frame. Step and Run must be called from one goroutine.
type Pipeline struct {
	source     capture.Source
	detector   inference.PoseDetector
	landmarker inference.PoseLandmarker
	sampler    inference.Sampler
	decoder    *pose.Decoder
	clap       *gesture.ClapDetector
	publish    func(FrameResult)
	log        *zap.Logger
	metrics    *Metrics
	clock      func() time.Time

	mu   sync.RWMutex
	opts Options

	validFrames uint64
	seq         uint64
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		source:     cfg.Source,
		detector:   cfg.Detector,
		landmarker: cfg.Landmarker,
		sampler:    cfg.Sampler,
		decoder:    pose.NewDecoder(cfg.Anchors),
		clap:       cfg.Clap,
		publish:    cfg.Publish,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
	}

	if p.clap == nil {
		p.clap = gesture.NewClapDetector(gesture.DefaultClapConfig())
	}
	if p.publish == nil {
		p.publish = func(FrameResult) {}
	}
	if p.log == nil {
		p.log = logger.Log()
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	p.SetOptions(cfg.Options)

	return p
}

// Options returns the current options.
func (p *Pipeline) Options() Options {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opts
}

// SetOptions replaces the options. Zero intervals fall back to defaults and
// DetectEveryNthFrame is at least 1.
func (p *Pipeline) SetOptions(opts Options) {
	if opts.DetectEveryNthFrame < 1 {
		opts.DetectEveryNthFrame = 1
	}
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.StillInterval <= 0 {
		opts.StillInterval = DefaultStillInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
}

// Clap returns the clap detector owned by this pipeline.
func (p *Pipeline) Clap() *gesture.ClapDetector {
	return p.clap
}

// Run processes frames until ctx is cancelled. Per-frame errors are logged
// and the frame is dropped; an unavailable source makes the loop idle.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("pose pipeline started", zap.Bool("live", p.source.Live()))
	defer p.log.Info("pose pipeline stopped")

	for {
		_, _, err := p.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}

		opts := p.Options()
		switch {
		case errors.Is(err, capture.ErrSourceUnavailable):
			p.log.Debug("frame source unavailable", zap.Error(err))
			if !sleep(ctx, opts.IdleInterval) {
				return nil
			}
			continue
		case err != nil:
			p.metrics.IncFrames(OutcomeDropped)
			p.log.Warn("frame dropped", zap.Uint64("seq", p.seq), zap.Error(err))
		}

		// Still sources never block; pace every attempt.
		if !p.source.Live() {
			if !sleep(ctx, opts.StillInterval) {
				return nil
			}
		}
	}
}

// Step reads one frame and, if it is admitted, runs it through the pipeline
// and publishes the result. processed reports whether a result was published.
// A cancelled ctx aborts the in-flight inference; nothing is published and the
// clap state is left untouched.
func (p *Pipeline) Step(ctx context.Context) (result FrameResult, processed bool, err error) {
	if err := ctx.Err(); err != nil {
		return FrameResult{}, false, err
	}

	frame, err := p.source.CurrentFrame()
	if err != nil {
		return FrameResult{}, false, err
	}
	defer frame.Close()

	opts := p.Options()
	if !p.admit(frame, opts) {
		p.metrics.IncFrames(OutcomeSkipped)
		return FrameResult{}, false, nil
	}

	p.seq++
	start := time.Now()

	result, err = p.process(ctx, frame, opts)
	if err != nil {
		return FrameResult{}, false, err
	}

	p.metrics.ObserveFrame(time.Since(start), result.Score)
	if result.Active {
		p.metrics.IncFrames(OutcomeActive)
	} else {
		p.metrics.IncFrames(OutcomeInactive)
	}
	if result.Clap != nil {
		p.metrics.IncClaps()
		p.log.Info("clap",
			zap.String("id", result.Clap.ID),
			zap.Float64("wrist_distance", result.Clap.WristDistance),
			zap.Float64("shoulder_width", result.Clap.ShoulderWidth))
	}

	p.publish(result)
	return result, true, nil
}

// admit applies the frame admission policy. Still sources are always admitted.
// Live frames must be fresh and larger than MinValidFrameSize when
// WaitForValidFrame is set, and only every Nth valid frame is admitted.
func (p *Pipeline) admit(frame capture.Frame, opts Options) bool {
	if !p.source.Live() {
		return true
	}

	if opts.WaitForValidFrame && !validFrame(frame) {
		return false
	}

	p.validFrames++
	return p.validFrames%uint64(opts.DetectEveryNthFrame) == 0
}

func validFrame(f capture.Frame) bool {
	return f.Fresh && f.Width > MinValidFrameSize && f.Height > MinValidFrameSize
}

func (p *Pipeline) process(ctx context.Context, frame capture.Frame, opts Options) (FrameResult, error) {
	w, h := float64(frame.Width), float64(frame.Height)

	res := FrameResult{
		Seq:       p.seq,
		Timestamp: frame.Timestamp,
		Width:     frame.Width,
		Height:    frame.Height,
	}

	m := pose.DetectorInputTransform(w, h, p.decoder.DetectorSize)
	input, err := p.sampler.Sample(frame.Image, m, inference.DetectorInputSize)
	if err != nil {
		return res, fmt.Errorf("sample detector input: %w", err)
	}

	out, err := await(ctx, func() (inference.DetectorOutput, error) {
		return p.detector.Detect(ctx, input)
	})
	if err != nil {
		return res, fmt.Errorf("detect: %w", err)
	}

	p.decoder.ScoreThreshold = opts.ScoreThreshold
	det, err := p.decoder.Decode(out, m)
	if err != nil {
		return res, fmt.Errorf("decode: %w", err)
	}

	res.Active = det.Active
	res.Score = det.Score
	if !det.Active {
		return res, nil
	}

	proj := pose.Projector{Width: w, Height: h}
	res.Box = &Box{
		Center: proj.ImageToWorld(det.BoxCenter),
		Size:   det.BoxSize.Mul(1 / h),
	}
	res.Circle = &Circle{
		Center: proj.ImageToWorld(det.Keypoint1),
		Radius: det.Radius / h,
	}

	roiInput, err := p.sampler.Sample(frame.Image, det.ROI, inference.LandmarkerInputSize)
	if err != nil {
		return res, fmt.Errorf("sample landmarker input: %w", err)
	}

	raw, err := await(ctx, func() ([]float32, error) {
		return p.landmarker.Landmark(ctx, roiInput)
	})
	if err != nil {
		return res, fmt.Errorf("landmark: %w", err)
	}

	keypoints, err := proj.Project(raw, det.ROI)
	if err != nil {
		return res, fmt.Errorf("project: %w", err)
	}

	res.Keypoints = make([]KeypointResult, len(keypoints))
	for i, kp := range keypoints {
		res.Keypoints[i] = KeypointResult{Index: kp.Index, Active: kp.Active, Position: kp.World}
	}

	// A frame cancelled after inference must not touch the clap state.
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if opts.EnableClapDetection {
		if ev, ok := p.clap.Update(keypoints, p.clock()); ok {
			res.Clap = &ev
		}
	}

	return res, nil
}

// await runs fn on its own goroutine and returns its result, or ctx.Err()
// as soon as ctx is done. An abandoned fn finishes in the background and its
// result is discarded.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// sleep waits for d or until ctx is done. It reports false if ctx ended the
// wait.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
