package main

import "testing"

func TestKeystrokeScript(t *testing.T) {
	tests := []struct {
		key       string
		modifiers []string
		want      string
	}{
		{"a", nil, `tell application "System Events" to keystroke "a"`},
		{" ", []string{"Shift"}, `tell application "System Events" to keystroke " " using {shift down}`},
		{"n", []string{"cmd", "alt", "bogus"}, `tell application "System Events" to keystroke "n" using {command down, option down}`},
	}

	for _, tt := range tests {
		if got := keystrokeScript(tt.key, tt.modifiers); got != tt.want {
			t.Errorf("keystrokeScript(%q, %v) = %q, want %q", tt.key, tt.modifiers, got, tt.want)
		}
	}
}
