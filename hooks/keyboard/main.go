// Command keyboard is a clap hook for macOS that sends a keystroke via
// AppleScript on every clap, e.g. to advance slides or toggle playback.
//
// hook.json config:
//
//	{"key": " ", "modifiers": ["shift"]}
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ayusman/tala/internal/hook"
)

// keystroke is the hook configuration.
type keystroke struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var ev hook.Event
	if err := json.NewDecoder(os.Stdin).Decode(&ev); err != nil {
		respond(fmt.Errorf("decode event: %w", err))
		return
	}
	if ev.Type != hook.EventClap {
		respond(fmt.Errorf("unsupported event: %s", ev.Type))
		return
	}

	var k keystroke
	if err := json.Unmarshal(ev.Config, &k); err != nil {
		respond(fmt.Errorf("parse config: %w", err))
		return
	}
	if k.Key == "" {
		respond(errors.New("config.key is required"))
		return
	}

	respond(runAppleScript(keystrokeScript(k.Key, k.Modifiers)))
}

func keystrokeScript(key string, modifiers []string) string {
	var mods []string
	for _, m := range modifiers {
		if am, ok := modifierMap[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}

	script := fmt.Sprintf(`tell application "System Events" to keystroke %q`, key)
	if len(mods) > 0 {
		script += " using {" + strings.Join(mods, ", ") + "}"
	}
	return script
}

func respond(err error) {
	resp := hook.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	out, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}
