package station

import (
	"log/slog"
	"os"
)

// defaultLogger writes text records to the console the way the firmware
// prints to its serial port
func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// NewLogger returns a console logger at level, or a JSON logger when json
// is set
func NewLogger(level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
