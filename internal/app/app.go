// Package app wires the pose pipeline to its frame source, models, settings
// store and result listeners.
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ayusman/tala/internal/anchors"
	"github.com/ayusman/tala/internal/capture"
	"github.com/ayusman/tala/internal/config"
	"github.com/ayusman/tala/internal/gesture"
	"github.com/ayusman/tala/internal/inference"
	"github.com/ayusman/tala/internal/logger"
	"github.com/ayusman/tala/internal/store"
	"go.uber.org/zap"
)

// Config holds the collaborators of an App.
type Config struct {
	Source     capture.Source
	Detector   inference.PoseDetector
	Landmarker inference.PoseLandmarker
	Sampler    inference.Sampler
	Anchors    *anchors.Table
	Pipeline   config.Pipeline
	Store      *store.Store // optional; persists settings and claps
	Logger     *zap.Logger
	Metrics    *Metrics
	Clock      func() time.Time
}

// Settings are the user-adjustable pipeline options.
type Settings struct {
	ScoreThreshold      float64 `json:"score_threshold"`
	DetectEveryNthFrame int     `json:"detect_every_nth_frame"`
	ClapDistanceFactor  float64 `json:"clap_distance_factor"`
	ClapCooldownSeconds float64 `json:"clap_cooldown_seconds"`
	EnableClapDetection bool    `json:"enable_clap_detection"`
}

// SettingsPatch is a partial Settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	ScoreThreshold      *float64 `json:"score_threshold,omitempty"`
	DetectEveryNthFrame *int     `json:"detect_every_nth_frame,omitempty"`
	ClapDistanceFactor  *float64 `json:"clap_distance_factor,omitempty"`
	ClapCooldownSeconds *float64 `json:"clap_cooldown_seconds,omitempty"`
	EnableClapDetection *bool    `json:"enable_clap_detection,omitempty"`
}

// ErrInvalidSetting is returned for settings that cannot be applied.
var ErrInvalidSetting = errors.New("invalid setting")

// Stats summarises the clap activity since start.
type Stats struct {
	Frames   uint64    `json:"frames"`
	Claps    int       `json:"claps"`
	LastClap time.Time `json:"last_clap"`
}

// App is the main application that runs the pose pipeline and fans results
// out to listeners.
type App struct {
	pipeline   *Pipeline
	store      *store.Store
	log        *zap.Logger
	metrics    *Metrics
	source     capture.Source
	detector   inference.PoseDetector
	landmarker inference.PoseLandmarker

	mu              sync.RWMutex
	resultListeners []func(FrameResult)
	clapListeners   []func(gesture.ClapEvent)
	stats           Stats
}

// New creates an App. Settings persisted in the store override cfg.Pipeline.
func New(cfg Config) (*App, error) {
	if cfg.Source == nil || cfg.Detector == nil || cfg.Landmarker == nil || cfg.Sampler == nil {
		return nil, errors.New("app: source, detector, landmarker and sampler are required")
	}
	if cfg.Anchors == nil {
		return nil, errors.New("app: anchor table is required")
	}

	a := &App{
		store:      cfg.Store,
		log:        cfg.Logger,
		metrics:    cfg.Metrics,
		source:     cfg.Source,
		detector:   cfg.Detector,
		landmarker: cfg.Landmarker,
	}
	if a.log == nil {
		a.log = logger.Log()
	}

	pc := cfg.Pipeline
	pc.Clamp()

	opts := DefaultOptions()
	opts.ScoreThreshold = pc.ScoreThreshold
	opts.DetectEveryNthFrame = pc.DetectEveryNthFrame
	opts.EnableClapDetection = pc.EnableClapDetection
	opts.WaitForValidFrame = pc.WaitForValidFrame

	clap := gesture.NewClapDetector(gesture.ClapConfig{
		DistanceFactor: pc.ClapDistanceFactor,
		Cooldown:       seconds(pc.ClapCooldownSeconds),
	})

	a.pipeline = NewPipeline(PipelineConfig{
		Source:     cfg.Source,
		Detector:   cfg.Detector,
		Landmarker: cfg.Landmarker,
		Sampler:    cfg.Sampler,
		Anchors:    cfg.Anchors,
		Clap:       clap,
		Options:    opts,
		Publish:    a.dispatch,
		Logger:     a.log,
		Metrics:    cfg.Metrics,
		Clock:      cfg.Clock,
	})

	if err := a.loadSettings(); err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return a, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Run runs the pipeline until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.pipeline.Run(ctx)
}

// Pipeline returns the underlying pipeline.
func (a *App) Pipeline() *Pipeline {
	return a.pipeline
}

// Metrics returns the metrics the pipeline reports to, possibly nil.
func (a *App) Metrics() *Metrics {
	return a.metrics
}

// OnResult registers fn to receive every published FrameResult.
func (a *App) OnResult(fn func(FrameResult)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resultListeners = append(a.resultListeners, fn)
}

// OnClap registers fn to receive every clap event.
func (a *App) OnClap(fn func(gesture.ClapEvent)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clapListeners = append(a.clapListeners, fn)
}

// dispatch fans a result out to the listeners. It runs on the pipeline
// goroutine.
func (a *App) dispatch(res FrameResult) {
	a.mu.Lock()
	a.stats.Frames++
	if res.Clap != nil {
		a.stats.Claps++
		a.stats.LastClap = res.Clap.Time
	}
	results := a.resultListeners
	claps := a.clapListeners
	a.mu.Unlock()

	if res.Clap != nil && a.store != nil {
		err := a.store.Claps().Create(&store.Clap{
			ID:            res.Clap.ID,
			OccurredAt:    res.Clap.Time,
			WristDistance: res.Clap.WristDistance,
			ShoulderWidth: res.Clap.ShoulderWidth,
		})
		if err != nil {
			a.log.Warn("failed to record clap", zap.Error(err))
		}
	}

	for _, fn := range results {
		fn(res)
	}
	if res.Clap != nil {
		for _, fn := range claps {
			fn(*res.Clap)
		}
	}
}

// Stats returns the activity counters.
func (a *App) Stats() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

// Settings returns the settings currently in effect.
func (a *App) Settings() Settings {
	opts := a.pipeline.Options()
	clap := a.pipeline.Clap().Config()
	return Settings{
		ScoreThreshold:      opts.ScoreThreshold,
		DetectEveryNthFrame: opts.DetectEveryNthFrame,
		ClapDistanceFactor:  clap.DistanceFactor,
		ClapCooldownSeconds: clap.Cooldown.Seconds(),
		EnableClapDetection: opts.EnableClapDetection,
	}
}

// UpdateSettings applies patch, persists the result and returns the settings
// now in effect. Clap thresholds are clamped to their ranges; a score
// threshold outside [0, 1] or a frame interval below 1 is rejected.
func (a *App) UpdateSettings(patch SettingsPatch) (Settings, error) {
	if v := patch.ScoreThreshold; v != nil && (*v < 0 || *v > 1) {
		return a.Settings(), fmt.Errorf("%w: score_threshold %v out of [0,1]", ErrInvalidSetting, *v)
	}
	if v := patch.DetectEveryNthFrame; v != nil && *v < 1 {
		return a.Settings(), fmt.Errorf("%w: detect_every_nth_frame %d below 1", ErrInvalidSetting, *v)
	}

	a.applyPatch(patch)
	current := a.Settings()

	if a.store != nil {
		if err := a.store.Settings().SetAll(settingsValues(current)); err != nil {
			return current, fmt.Errorf("persist settings: %w", err)
		}
	}

	a.log.Info("settings updated",
		zap.Float64("score_threshold", current.ScoreThreshold),
		zap.Int("detect_every_nth_frame", current.DetectEveryNthFrame),
		zap.Float64("clap_distance_factor", current.ClapDistanceFactor),
		zap.Float64("clap_cooldown_seconds", current.ClapCooldownSeconds),
		zap.Bool("enable_clap_detection", current.EnableClapDetection))

	return current, nil
}

// SetClapEnabled toggles clap detection.
func (a *App) SetClapEnabled(enabled bool) error {
	_, err := a.UpdateSettings(SettingsPatch{EnableClapDetection: &enabled})
	return err
}

func (a *App) applyPatch(patch SettingsPatch) {
	opts := a.pipeline.Options()
	if patch.ScoreThreshold != nil {
		opts.ScoreThreshold = *patch.ScoreThreshold
	}
	if patch.DetectEveryNthFrame != nil {
		opts.DetectEveryNthFrame = *patch.DetectEveryNthFrame
	}
	if patch.EnableClapDetection != nil {
		opts.EnableClapDetection = *patch.EnableClapDetection
	}
	a.pipeline.SetOptions(opts)

	if patch.ClapDistanceFactor != nil {
		a.pipeline.Clap().SetDistanceFactor(*patch.ClapDistanceFactor)
	}
	if patch.ClapCooldownSeconds != nil {
		a.pipeline.Clap().SetCooldown(seconds(*patch.ClapCooldownSeconds))
	}
}

// loadSettings applies the overrides persisted in the store. Malformed or
// out-of-range values are logged and skipped.
func (a *App) loadSettings() error {
	if a.store == nil {
		return nil
	}

	values, err := a.store.Settings().All()
	if err != nil {
		return err
	}

	var patch SettingsPatch
	parseFloat := func(key string, dst **float64) {
		if s, ok := values[key]; ok {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				a.log.Warn("ignoring stored setting", zap.String("key", key), zap.Error(err))
				return
			}
			*dst = &v
		}
	}

	parseFloat(store.SettingScoreThreshold, &patch.ScoreThreshold)
	parseFloat(store.SettingClapDistanceFactor, &patch.ClapDistanceFactor)
	parseFloat(store.SettingClapCooldownSeconds, &patch.ClapCooldownSeconds)

	if s, ok := values[store.SettingDetectEveryNthFrame]; ok {
		if v, err := strconv.Atoi(s); err == nil && v >= 1 {
			patch.DetectEveryNthFrame = &v
		} else {
			a.log.Warn("ignoring stored setting", zap.String("key", store.SettingDetectEveryNthFrame), zap.String("value", s))
		}
	}
	if s, ok := values[store.SettingEnableClapDetection]; ok {
		if v, err := strconv.ParseBool(s); err == nil {
			patch.EnableClapDetection = &v
		} else {
			a.log.Warn("ignoring stored setting", zap.String("key", store.SettingEnableClapDetection), zap.Error(err))
		}
	}
	if v := patch.ScoreThreshold; v != nil && (*v < 0 || *v > 1) {
		a.log.Warn("ignoring stored setting", zap.String("key", store.SettingScoreThreshold), zap.Float64("value", *v))
		patch.ScoreThreshold = nil
	}

	a.applyPatch(patch)
	if len(values) > 0 {
		a.log.Info("applied stored settings", zap.Int("count", len(values)))
	}
	return nil
}

func settingsValues(s Settings) map[string]string {
	return map[string]string{
		store.SettingScoreThreshold:      strconv.FormatFloat(s.ScoreThreshold, 'g', -1, 64),
		store.SettingDetectEveryNthFrame: strconv.Itoa(s.DetectEveryNthFrame),
		store.SettingClapDistanceFactor:  strconv.FormatFloat(s.ClapDistanceFactor, 'g', -1, 64),
		store.SettingClapCooldownSeconds: strconv.FormatFloat(s.ClapCooldownSeconds, 'g', -1, 64),
		store.SettingEnableClapDetection: strconv.FormatBool(s.EnableClapDetection),
	}
}

// Close releases the source and both models.
func (a *App) Close() error {
	var errs []error
	if err := a.source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if err := a.detector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close detector: %w", err))
	}
	if err := a.landmarker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close landmarker: %w", err))
	}
	return errors.Join(errs...)
}
