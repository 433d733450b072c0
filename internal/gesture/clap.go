// Package gesture derives discrete gesture events from tracked pose keypoints.
package gesture

import (
	"sync"
	"time"

	"github.com/ayusman/tala/internal/geom"
	"github.com/ayusman/tala/internal/pose"
	"github.com/google/uuid"
)

// Clap tuning defaults and limits.
const (
	DefaultDistanceFactor = 0.35
	MinDistanceFactor     = 0.1
	MaxDistanceFactor     = 2.0

	DefaultCooldown = 300 * time.Millisecond
	MinCooldown     = 50 * time.Millisecond
	MaxCooldown     = 2 * time.Second

	// MinShoulderWidth guards against a collapsed shoulder span.
	MinShoulderWidth = 1e-4
)

// ClapConfig holds the tunable clap thresholds.
type ClapConfig struct {
	// DistanceFactor is the wrist distance, as a fraction of shoulder width,
	// below which the hands count as together.
	DistanceFactor float64
	// Cooldown is the minimum time between two clap events.
	Cooldown time.Duration
}

// DefaultClapConfig returns a ClapConfig with the default thresholds.
func DefaultClapConfig() ClapConfig {
	return ClapConfig{
		DistanceFactor: DefaultDistanceFactor,
		Cooldown:       DefaultCooldown,
	}
}

// ClapState is the debouncing state carried between frames.
type ClapState struct {
	Armed    bool      `json:"armed"`
	LastClap time.Time `json:"last_clap"` // zero until the first clap
}

// ClapEvent is emitted once per clap.
type ClapEvent struct {
	ID            string    `json:"id"`
	Time          time.Time `json:"time"`
	WristDistance float64   `json:"wrist_distance"`
	ShoulderWidth float64   `json:"shoulder_width"`
}

// ClapDetector turns per-frame wrist and shoulder positions into clap events.
// Update must be called from a single goroutine; the setters may be called
// from any goroutine.
type ClapDetector struct {
	mu     sync.Mutex
	config ClapConfig
	state  ClapState
}

// NewClapDetector creates an armed ClapDetector. Out-of-range config values
// are clamped.
func NewClapDetector(config ClapConfig) *ClapDetector {
	return &ClapDetector{
		config: ClapConfig{
			DistanceFactor: ClampDistanceFactor(config.DistanceFactor),
			Cooldown:       ClampCooldown(config.Cooldown),
		},
		state: ClapState{Armed: true},
	}
}

// ClampDistanceFactor limits v to [MinDistanceFactor, MaxDistanceFactor].
func ClampDistanceFactor(v float64) float64 {
	return min(max(v, MinDistanceFactor), MaxDistanceFactor)
}

// ClampCooldown limits d to [MinCooldown, MaxCooldown].
func ClampCooldown(d time.Duration) time.Duration {
	return min(max(d, MinCooldown), MaxCooldown)
}

// Update feeds one frame of keypoints observed at now. It returns the clap
// event and true when this frame completes a clap.
//
// Rules, in order:
//  1. a missing or inactive wrist or shoulder re-arms the detector
//  2. a degenerate shoulder width is ignored
//  3. hands are together when wristDistance <= shoulderWidth * DistanceFactor
//  4. together, armed and past the cooldown fires and disarms
//  5. apart re-arms
//
// Holding the hands together never fires twice.
func (d *ClapDetector) Update(keypoints []pose.Keypoint, now time.Time) (ClapEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	leftWrist, ok1 := activeAt(keypoints, pose.LeftWrist)
	rightWrist, ok2 := activeAt(keypoints, pose.RightWrist)
	leftShoulder, ok3 := activeAt(keypoints, pose.LeftShoulder)
	rightShoulder, ok4 := activeAt(keypoints, pose.RightShoulder)

	if !ok1 || !ok2 || !ok3 || !ok4 {
		d.state.Armed = true
		return ClapEvent{}, false
	}

	shoulderWidth := geom.Distance(leftShoulder, rightShoulder)
	if shoulderWidth <= MinShoulderWidth {
		return ClapEvent{}, false
	}

	wristDistance := geom.Distance(leftWrist, rightWrist)
	together := wristDistance <= shoulderWidth*d.config.DistanceFactor

	if together && d.state.Armed && now.Sub(d.state.LastClap) >= d.config.Cooldown {
		d.state.LastClap = now
		d.state.Armed = false
		return ClapEvent{
			ID:            uuid.NewString(),
			Time:          now,
			WristDistance: wristDistance,
			ShoulderWidth: shoulderWidth,
		}, true
	}

	if !together {
		d.state.Armed = true
	}

	return ClapEvent{}, false
}

func activeAt(keypoints []pose.Keypoint, idx int) (geom.Vec2, bool) {
	if idx >= len(keypoints) || !keypoints[idx].Active {
		return geom.Vec2{}, false
	}
	return keypoints[idx].Image, true
}

// State returns a snapshot of the debouncing state.
func (d *ClapDetector) State() ClapState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Config returns the current thresholds.
func (d *ClapDetector) Config() ClapConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// SetDistanceFactor sets the clap sensitivity, clamped to its valid range.
// It returns the value actually applied.
func (d *ClapDetector) SetDistanceFactor(v float64) float64 {
	v = ClampDistanceFactor(v)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.DistanceFactor = v
	return v
}

// SetCooldown sets the minimum time between claps, clamped to its valid range.
// It returns the value actually applied.
func (d *ClapDetector) SetCooldown(c time.Duration) time.Duration {
	c = ClampCooldown(c)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Cooldown = c
	return c
}

// Reset re-arms the detector and forgets the last clap.
func (d *ClapDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = ClapState{Armed: true}
}
