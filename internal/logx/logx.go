// Package logx configures the process-wide subsystem loggers.
package logx

import (
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"
)

// Subsystems used across the host. Each package takes its logger with
// logging.Logger(<name>) so levels can be tuned per subsystem.
var Subsystems = []string{"app", "host", "window", "security", "bridge", "content", "external", "loopback", "wails"}

// Setup configures go-log once at startup. level is a zap level name
// (debug, info, warn, error); format is color, plain or json.
func Setup(level, format string) error {
	name := strings.ToLower(strings.TrimSpace(level))
	lvl, err := logging.LevelFromString(name)
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}

	cfg := logging.Config{
		Format: logging.ColorizedOutput,
		Level:  lvl,
		Stderr: true,
	}
	switch format {
	case "plain":
		cfg.Format = logging.PlaintextOutput
	case "json":
		cfg.Format = logging.JSONOutput
	}
	logging.SetupLogging(cfg)

	for _, sub := range Subsystems {
		if err := logging.SetLogLevel(sub, name); err != nil {
			return fmt.Errorf("log level for %s: %w", sub, err)
		}
	}
	return nil
}
