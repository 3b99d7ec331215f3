package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ccollicutt/wiretrace/pkg/config"
	"github.com/ccollicutt/wiretrace/pkg/logging"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// loadConfig loads the configuration file, or the defaults when path is
// empty.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadOrDefault(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the console logger. A non-empty override wins over the
// configured level.
func newLogger(w io.Writer, cfg *config.Config, override string) (zerolog.Logger, error) {
	name := cfg.LogLevel
	if override != "" {
		name = override
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return zerolog.Nop(), err
	}
	return logging.New(w, level), nil
}
