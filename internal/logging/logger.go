package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/edlund/gpslinkd/internal/config"
)

// NewLogger creates a structured zerolog.Logger writing to the configured log
// file. The daemon detaches from its terminal, so the file is the only place
// its output remains observable. The returned closer must be called on exit.
func NewLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
	}

	logger := zerolog.New(f).With().
		Timestamp().
		Str("service", "gpslinkd").
		Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level), f, nil
}
