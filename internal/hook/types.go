// Package hook runs external executables in response to clap events.
//
// Each hook lives in its own directory under the hooks directory, next to a
// hook.json manifest. The executable receives one Event as JSON on stdin and
// answers with one Response as JSON on stdout.
package hook

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/tala/internal/gesture"
)

// Event types delivered to hooks.
const (
	EventClap = "clap"
)

// ManifestFile is the manifest name looked up in every hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook's metadata and subscriptions.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`           // empty subscribes to every event
	Config      json.RawMessage `json:"config,omitempty"` // passed through verbatim
}

// Event is the request written to a hook's stdin.
type Event struct {
	Type   string             `json:"type"`
	Clap   *gesture.ClapEvent `json:"clap,omitempty"`
	Config json.RawMessage    `json:"config,omitempty"`
}

// Response is what a hook writes to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether the hook subscribes to eventType.
func (h *Hook) Handles(eventType string) bool {
	return len(h.Manifest.Events) == 0 || slices.Contains(h.Manifest.Events, eventType)
}
