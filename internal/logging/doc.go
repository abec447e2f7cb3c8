// Package logging provides structured logging with per-module log level
// configuration.
//
// The logging system uses Go's slog package. Output goes to stdout (text or
// json) and, when journald is present, to the systemd journal as well.
//
// Initialize once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"ffmpeg": "warn", // per-module overrides
//		},
//	})
//
// Get a logger for a module:
//
//	logger := logging.GetLogger("runner")
//	logger.Info("Publisher started", "pid", pid)
//
// Relayed child-process output uses its own module logger ("ffmpeg") so its
// verbosity can be tuned independently of the tool's own logs:
//
//	journalctl -t streamcast MODULE=ffmpeg
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//	ffmpeg = "warn"
package logging
