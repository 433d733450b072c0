package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/tala/internal/anchors"
	"github.com/ayusman/tala/internal/app"
	"github.com/ayusman/tala/internal/capture"
	"github.com/ayusman/tala/internal/config"
	"github.com/ayusman/tala/internal/gesture"
	"github.com/ayusman/tala/internal/hook"
	"github.com/ayusman/tala/internal/inference"
	"github.com/ayusman/tala/internal/logger"
	"github.com/ayusman/tala/internal/server"
	"github.com/ayusman/tala/internal/store"
	"github.com/ayusman/tala/internal/tray"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tala: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "tala.yaml", "path to the YAML configuration file")
	addr := flag.String("addr", "", "HTTP listen address, overrides server.addr")
	image := flag.String("image", "", "process a still image instead of the camera")
	flag.Parse()

	cfg, notes, err := config.LoadOrDefault(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *image != "" {
		cfg.Source.StillImage = *image
		cfg.Source.PreferStill = true
	}

	if err := logger.Init(cfg.Logging.Development, cfg.Logging.Level); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Log()

	for _, n := range notes {
		log.Warn("config value adjusted", zap.String("note", n))
	}

	dataDir, err := config.DataDir()
	if err != nil {
		return err
	}

	st, err := openStore(cfg.Store, dataDir, log)
	if err != nil {
		return err
	}
	defer st.Close()

	table, err := loadAnchors(cfg.Models.Anchors)
	if err != nil {
		return err
	}
	log.Info("anchor table ready", zap.Int("anchors", table.Len()), zap.String("file", cfg.Models.Anchors))

	a, err := newApp(cfg, table, st, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Hooks.Enabled {
		d, err := newHookDispatcher(cfg.Hooks, dataDir, log)
		if err != nil {
			return err
		}
		a.OnClap(func(ev gesture.ClapEvent) { d.Notify(ev) })
		g.Go(func() error { return d.Run(ctx) })
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(dataDir)
	}
	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Store:     st,
		Registry:  a.Metrics().Registry,
		Logger:    log,
	})

	g.Go(func() error { return srv.Serve(ctx, cfg.Server.Addr) })
	g.Go(func() error { return a.Run(ctx) })

	if !cfg.Tray {
		return g.Wait()
	}

	// systray needs the main goroutine.
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	t := newTray(a, cfg.Server.Addr, stop, log)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
	stop()

	return <-done
}

func openStore(cfg config.Store, dataDir string, log *zap.Logger) (*store.Store, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(dataDir, "tala.db")
	}

	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)
		n, err := st.Claps().DeleteBefore(cutoff)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("prune claps: %w", err)
		}
		log.Info("pruned clap history", zap.Int64("removed", n), zap.Time("before", cutoff))
	}

	return st, nil
}

// loadAnchors reads the anchor CSV, or generates the table when path is empty.
func loadAnchors(path string) (*anchors.Table, error) {
	if path == "" {
		return anchors.Generate(anchors.PoseDetectorOptions()), nil
	}
	return anchors.LoadFile(path, anchors.PoseAnchorCount)
}

func newApp(cfg config.Config, table *anchors.Table, st *store.Store, log *zap.Logger) (*app.App, error) {
	det, err := inference.NewDNNDetector(inference.DNNConfig{
		ModelPath: cfg.Models.Detector,
		InputSize: inference.DetectorInputSize,
		Outputs:   cfg.Models.DetectorOutputs,
	})
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	lm, err := inference.NewDNNLandmarker(inference.DNNConfig{
		ModelPath: cfg.Models.Landmarker,
		InputSize: inference.LandmarkerInputSize,
		Outputs:   cfg.Models.LandmarkerOutputs,
	})
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load landmarker: %w", err)
	}

	src, err := openSource(cfg.Source, log)
	if err != nil {
		det.Close()
		lm.Close()
		return nil, err
	}

	a, err := app.New(app.Config{
		Source:     src,
		Detector:   det,
		Landmarker: lm,
		Sampler:    inference.NewWarpSampler(),
		Anchors:    table,
		Pipeline:   cfg.Pipeline,
		Store:      st,
		Logger:     log,
		Metrics:    app.NewMetrics(nil),
	})
	if err != nil {
		src.Close()
		det.Close()
		lm.Close()
		return nil, err
	}
	return a, nil
}

// openSource opens the camera, falling back to the configured still image
// when the camera cannot be opened.
func openSource(cfg config.Source, log *zap.Logger) (capture.Source, error) {
	if cfg.PreferStill && cfg.StillImage != "" {
		log.Info("using still image", zap.String("path", cfg.StillImage))
		return capture.OpenStillImage(cfg.StillImage)
	}

	cam := capture.NewCamera(capture.CameraConfig{
		DeviceID: cfg.CameraID,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      cfg.FPS,
	})
	err := cam.Open()
	if err == nil {
		log.Info("camera opened", zap.Int("device", cfg.CameraID), zap.Int("fps", cam.FPS()))
		return cam, nil
	}
	if cfg.StillImage == "" {
		return nil, err
	}

	log.Warn("camera unavailable, falling back to still image",
		zap.Error(err), zap.String("path", cfg.StillImage))
	return capture.OpenStillImage(cfg.StillImage)
}

func newHookDispatcher(cfg config.Hooks, dataDir string, log *zap.Logger) (*hook.Dispatcher, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(dataDir, "hooks")
	}

	m := hook.NewManager(dir)
	if err := m.Discover(); err != nil {
		return nil, fmt.Errorf("discover hooks: %w", err)
	}
	for _, h := range m.List() {
		log.Info("clap hook loaded", zap.String("name", h.Manifest.Name), zap.String("version", h.Manifest.Version))
	}

	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))
	return hook.NewDispatcher(m, hook.NewExecutor(timeout), log, 0), nil
}

func newTray(a *app.App, addr string, quit func(), log *zap.Logger) *tray.Tray {
	t := tray.New(a.Settings().EnableClapDetection)
	t.OnToggle(func(enabled bool) {
		if err := a.SetClapEnabled(enabled); err != nil {
			log.Warn("failed to toggle clap detection", zap.Error(err))
		}
	})
	t.OnSettings(func() {
		if err := openBrowser(settingsURL(addr)); err != nil {
			log.Warn("failed to open settings", zap.Error(err))
		}
	})
	t.OnQuit(quit)
	a.OnClap(func(gesture.ClapEvent) { t.SetStats(a.Stats()) })
	return t
}

// settingsURL turns a listen address into a browsable URL.
func settingsURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		return errors.New("unsupported platform: " + runtime.GOOS)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations: "web",
// "../web", "../../web" and dataDir/web. It returns "" if none exists.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	p := filepath.Join(dataDir, "web")
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return ""
}
