package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name    string
		config  CameraConfig
		wantFPS int
	}{
		{
			name:    "default config",
			config:  DefaultCameraConfig(),
			wantFPS: DefaultFPS,
		},
		{
			name:    "explicit fps",
			config:  CameraConfig{DeviceID: 1, FPS: 15},
			wantFPS: 15,
		},
		{
			name:    "zero fps falls back to default",
			config:  CameraConfig{DeviceID: 2},
			wantFPS: DefaultFPS,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.config)

			if got := cam.FPS(); got != tt.wantFPS {
				t.Errorf("FPS() = %d, want %d", got, tt.wantFPS)
			}
			if cam.IsOpen() {
				t.Error("camera should not be running initially")
			}
			if !cam.Live() {
				t.Error("camera should be a live source")
			}
		})
	}
}

func TestCamera_SetFPS(t *testing.T) {
	cam := NewCamera(DefaultCameraConfig())

	cam.SetFPS(10)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want 10", got)
	}

	cam.SetFPS(0)
	cam.SetFPS(-5)
	if got := cam.FPS(); got != 10 {
		t.Errorf("FPS() = %d, want previous value 10", got)
	}
}

func TestCamera_CurrentFrame_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultCameraConfig())

	_, err := cam.CurrentFrame()
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("expected ErrCameraNotOpen in chain, got %v", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(DefaultCameraConfig())

	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(DefaultCameraConfig())
	if err := cam.Open(); err != nil {
		t.Skipf("skipping test - camera not available: %v", err)
	}

	frame, err := cam.CurrentFrame()
	if err != nil {
		t.Errorf("CurrentFrame() failed: %v", err)
	} else {
		if !frame.Fresh {
			t.Error("camera frames should be fresh")
		}
		if frame.Width == 0 || frame.Height == 0 {
			t.Errorf("unexpected frame size %dx%d", frame.Width, frame.Height)
		}
		frame.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestStillImage(t *testing.T) {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	still := NewStillImage(img)
	defer still.Close()

	if still.Live() {
		t.Error("still image should not be live")
	}

	for i := 0; i < 3; i++ {
		frame, err := still.CurrentFrame()
		if err != nil {
			t.Fatalf("CurrentFrame() error = %v", err)
		}
		if frame.Width != 640 || frame.Height != 480 {
			t.Errorf("frame size = %dx%d, want 640x480", frame.Width, frame.Height)
		}
		if frame.Image == nil || frame.Image.Empty() {
			t.Error("expected a copy of the image")
		}
		frame.Close()
		if frame.Image != nil {
			t.Error("Close should clear the image")
		}
	}
}

func TestOpenStillImage_Missing(t *testing.T) {
	if _, err := OpenStillImage("does/not/exist.png"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMockSource_Playback(t *testing.T) {
	src := NewMockSource(FreshFrames(2, 640, 480), false)

	for i := 0; i < 2; i++ {
		frame, err := src.CurrentFrame()
		if err != nil {
			t.Fatalf("CurrentFrame() %d error = %v", i, err)
		}
		if !frame.Fresh || frame.Width != 640 {
			t.Errorf("unexpected frame %+v", frame)
		}
	}

	// Third read should fail (no loop)
	if _, err := src.CurrentFrame(); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
	if src.Reads() != 3 {
		t.Errorf("expected 3 reads, got %d", src.Reads())
	}
}

func TestMockSource_Loop(t *testing.T) {
	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	src := NewMockSource([]MockFrame{{Width: 64, Height: 48, Fresh: true, Image: &img}}, true)

	for i := 0; i < 5; i++ {
		frame, err := src.CurrentFrame()
		if err != nil {
			t.Fatalf("CurrentFrame() iteration %d error = %v", i, err)
		}
		if frame.Image == nil {
			t.Fatal("expected cloned image")
		}
		frame.Close()
	}
}
