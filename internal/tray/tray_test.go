package tray

import (
	"testing"
	"time"

	"github.com/ayusman/tala/internal/app"
	"github.com/stretchr/testify/assert"
)

func TestTray_Toggle(t *testing.T) {
	tr := New(true)
	assert.True(t, tr.IsEnabled())

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	assert.Equal(t, []bool{false, true}, got)
	assert.True(t, tr.IsEnabled())
}

func TestTray_Settings(t *testing.T) {
	tr := New(false)
	assert.False(t, tr.IsEnabled())

	called := 0
	tr.OnSettings(func() { called++ })
	tr.handleSettings()
	assert.Equal(t, 1, called)
}

func TestTray_SetStatsBeforeReady(t *testing.T) {
	tr := New(true)
	assert.NotPanics(t, func() { tr.SetStats(app.Stats{Claps: 3, LastClap: time.Now()}) })
}

func TestTitles(t *testing.T) {
	assert.Equal(t, "Claps: 12", clapsTitle(12))
	assert.Equal(t, "Last: none", lastClapTitle(time.Time{}))
	assert.Contains(t, lastClapTitle(time.Date(2026, 1, 1, 9, 30, 0, 0, time.Local)), "09:30:00")
	assert.NotEqual(t, toggleTitle(true), toggleTitle(false))
}
