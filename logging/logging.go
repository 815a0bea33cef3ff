// Package logging builds the slog logger backed by a size-rotated log file.
package logging

import (
	"io"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const megabyte = 1 << 20

// New returns a logger writing to cfg.File and the sink to close when done.
func New(cfg config.LoggingConfig) (*slog.Logger, io.Closer, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    sizeInMegabytes(cfg.SizeMax),
		MaxBackups: cfg.RotateMax,
	}
	return slog.New(newHandler(sink, cfg.Format, level)), sink, nil
}

func newHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// sizeInMegabytes converts LOG_SIZE_MAX bytes to lumberjack's whole megabytes,
// rounding up, never below one.
func sizeInMegabytes(bytes int64) int {
	if bytes <= 0 {
		return 1
	}
	return int((bytes + megabyte - 1) / megabyte)
}
