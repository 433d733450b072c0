// Package tray provides the system tray menu for tala.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/tala/internal/app"
	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuClaps    *systray.MenuItem
	menuLastClap *systray.MenuItem
}

// New creates a new Tray. enabled is the initial clap detection state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
	}
}

// OnToggle sets the callback invoked when clap detection is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback invoked when the settings item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback invoked when the quit item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Tala")
	systray.SetTooltip("Tala clap detection")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle clap detection")
	systray.AddSeparator()

	t.menuClaps = systray.AddMenuItem(clapsTitle(0), "Claps since start")
	t.menuClaps.Disable()
	t.menuLastClap = systray.AddMenuItem(lastClapTitle(time.Time{}), "Last detected clap")
	t.menuLastClap.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Tala")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStats updates the clap counters shown in the menu.
func (t *Tray) SetStats(s app.Stats) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuClaps != nil {
		t.menuClaps.SetTitle(clapsTitle(s.Claps))
	}
	if t.menuLastClap != nil {
		t.menuLastClap.SetTitle(lastClapTitle(s.LastClap))
	}
}

// IsEnabled returns the current clap detection state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Clap detection on"
	}
	return "○ Clap detection off"
}

func clapsTitle(n int) string {
	return fmt.Sprintf("Claps: %d", n)
}

func lastClapTitle(at time.Time) string {
	if at.IsZero() {
		return "Last: none"
	}
	return "Last: " + at.Local().Format("15:04:05")
}
