package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		level      string
		debugShown bool
	}{
		{"debug", true},
		{"INFO", false},
		{"", false},
		{"nonsense", false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, tt.level)

		log.Debug().Msg("debug line")
		log.Info().Str("component", "test").Msg("info line")

		out := buf.String()
		if strings.Contains(out, "debug line") != tt.debugShown {
			t.Errorf("level %q: debug shown = %v, want %v", tt.level, !tt.debugShown, tt.debugShown)
		}
		if !strings.Contains(out, `"component":"test"`) {
			t.Errorf("level %q: info line missing: %s", tt.level, out)
		}
	}
}
