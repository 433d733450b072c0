// Package config loads the tala YAML configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Pipeline limits.
const (
	MinDistanceFactor = 0.1
	MaxDistanceFactor = 2.0
	MinCooldown       = 0.05
	MaxCooldown       = 2.0
)

// Config is the root of the configuration file.
type Config struct {
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Store    Store    `yaml:"store"`
	Source   Source   `yaml:"source"`
	Models   Models   `yaml:"models"`
	Pipeline Pipeline `yaml:"pipeline"`
	Hooks    Hooks    `yaml:"hooks"`
	Tray     bool     `yaml:"tray"`
}

// Server configures the HTTP API.
type Server struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"staticDir"`
}

// Logging configures the zap logger.
type Logging struct {
	Development bool   `yaml:"development"`
	Level       string `yaml:"level"`
}

// Store configures the sqlite settings database.
type Store struct {
	// Path of the database file. Empty means ~/.tala/tala.db.
	Path string `yaml:"path"`

	// RetentionDays prunes recorded claps older than this at startup. 0 keeps all.
	RetentionDays int `yaml:"retentionDays"`
}

// Source selects the frame source. StillImage, when set, is used instead of
// the camera, and also as a fallback when the camera cannot be opened.
type Source struct {
	CameraID    int    `yaml:"cameraID"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FPS         int    `yaml:"fps"`
	StillImage  string `yaml:"stillImage"`
	PreferStill bool   `yaml:"preferStill"`
}

// Models locates the model and anchor files.
type Models struct {
	Detector          string   `yaml:"detector"`
	DetectorOutputs   []string `yaml:"detectorOutputs"`
	Landmarker        string   `yaml:"landmarker"`
	LandmarkerOutputs []string `yaml:"landmarkerOutputs"`
	// Anchors is the anchor CSV. Empty means generate the table in process.
	Anchors string `yaml:"anchors"`
}

// Pipeline holds the per-frame tuning options.
type Pipeline struct {
	ScoreThreshold      float64 `yaml:"scoreThreshold"`
	DetectEveryNthFrame int     `yaml:"detectEveryNthFrame"`
	ClapDistanceFactor  float64 `yaml:"clapDistanceFactor"`
	ClapCooldownSeconds float64 `yaml:"clapCooldownSeconds"`
	EnableClapDetection bool    `yaml:"enableClapDetection"`
	WaitForValidFrame   bool    `yaml:"waitForValidFrame"`
}

// Hooks configures the external clap hooks.
type Hooks struct {
	Enabled bool `yaml:"enabled"`

	// Dir holds one subdirectory per hook. Empty means ~/.tala/hooks.
	Dir            string  `yaml:"dir"`
	TimeoutSeconds float64 `yaml:"timeoutSeconds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Logging: Logging{
			Level: "info",
		},
		Source: Source{
			Width:  640,
			Height: 480,
			FPS:    30,
		},
		Models: Models{
			Detector:          "models/pose_detection.onnx",
			DetectorOutputs:   []string{"Identity", "Identity_1"},
			Landmarker:        "models/pose_landmark_full.onnx",
			LandmarkerOutputs: []string{"Identity"},
		},
		Pipeline: DefaultPipeline(),
		Hooks: Hooks{
			Enabled:        true,
			TimeoutSeconds: 5,
		},
	}
}

// DefaultPipeline returns the default pipeline options.
func DefaultPipeline() Pipeline {
	return Pipeline{
		ScoreThreshold:      0.75,
		DetectEveryNthFrame: 4,
		ClapDistanceFactor:  0.35,
		ClapCooldownSeconds: 0.3,
		EnableClapDetection: true,
		WaitForValidFrame:   true,
	}
}

// Load reads the YAML file at path on top of Default. Keys missing from the
// file keep their defaults. Out-of-range values are clamped; the returned
// notes describe each adjustment.
func Load(path string) (Config, []string, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	notes := cfg.Pipeline.Clamp()
	if err := cfg.Validate(); err != nil {
		return cfg, notes, err
	}
	return cfg, notes, nil
}

// LoadOrDefault behaves like Load but returns Default when path does not exist.
func LoadOrDefault(path string) (Config, []string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil, nil
	}
	return Load(path)
}

// Validate reports settings that cannot be repaired by clamping.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	if c.Models.Detector == "" || c.Models.Landmarker == "" {
		return errors.New("config: models.detector and models.landmarker are required")
	}
	return nil
}

// Clamp forces every option into its valid range and returns a note per
// adjusted field.
func (p *Pipeline) Clamp() []string {
	var notes []string

	if math.IsNaN(p.ScoreThreshold) || p.ScoreThreshold < 0 || p.ScoreThreshold > 1 {
		notes = append(notes, fmt.Sprintf("scoreThreshold %v out of [0,1], using 0.75", p.ScoreThreshold))
		p.ScoreThreshold = 0.75
	}
	if p.DetectEveryNthFrame < 1 {
		notes = append(notes, fmt.Sprintf("detectEveryNthFrame %d below 1, using 1", p.DetectEveryNthFrame))
		p.DetectEveryNthFrame = 1
	}
	if math.IsNaN(p.ClapDistanceFactor) {
		notes = append(notes, "clapDistanceFactor is NaN, using 0.35")
		p.ClapDistanceFactor = 0.35
	}
	if v := min(max(p.ClapDistanceFactor, MinDistanceFactor), MaxDistanceFactor); v != p.ClapDistanceFactor {
		notes = append(notes, fmt.Sprintf("clapDistanceFactor %v clamped to %v", p.ClapDistanceFactor, v))
		p.ClapDistanceFactor = v
	}
	if math.IsNaN(p.ClapCooldownSeconds) {
		notes = append(notes, "clapCooldownSeconds is NaN, using 0.3")
		p.ClapCooldownSeconds = 0.3
	}
	if v := min(max(p.ClapCooldownSeconds, MinCooldown), MaxCooldown); v != p.ClapCooldownSeconds {
		notes = append(notes, fmt.Sprintf("clapCooldownSeconds %v clamped to %v", p.ClapCooldownSeconds, v))
		p.ClapCooldownSeconds = v
	}

	return notes
}

// DataDir returns ~/.tala, creating it if needed.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory: %w", err)
	}
	dir := filepath.Join(home, ".tala")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dir, nil
}
