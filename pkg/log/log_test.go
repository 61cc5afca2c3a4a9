package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskloom/taskloom/pkg/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "warning alias", input: "warning", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "mixed case", input: "DEBUG", want: slog.LevelDebug},
		{name: "unknown falls back to info", input: "verbose", want: slog.LevelInfo},
		{name: "empty falls back to info", input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, log.ParseLevel(tt.input))
		})
	}
}
