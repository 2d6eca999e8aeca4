// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to stdout when a terminal, pipe, or file is connected
//   - Logs to both when both are available
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Modules: map[string]string{
//			"picoborg": "debug",  // Per-module overrides
//			"api":      "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("picoborg").With("address", addr)
//	logger.Info("Board found")  // Includes address in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal available + stdout available → MultiHandler (both)
//	Journal available only              → JournalHandler
//	Stdout available only               → TextHandler or JSONHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t marvin              # All marvin logs
//	journalctl -t marvin -f           # Follow live
//	journalctl -t marvin --since "5m" # Last 5 minutes
//	journalctl -t marvin -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t marvin MODULE=dispatch
//	journalctl -t marvin MODULE=picoborg PRIORITY=4
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only. Levels are re-applied
// when the config file changes; the format is fixed at startup.
//
// Modules in use: main, config, picoborg, blinkt, robot, dispatch, api,
// led and cli.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	picoborg = "debug"
//	api = "warn"
package logging
