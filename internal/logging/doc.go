// Package logging provides structured logging for intmatrix.
//
// This package wraps a package-global zap logger with convenience functions
// for the logging patterns used by the driver: connection events, raw stream
// deliveries and CGI requests to the device.
//
// # Log Levels
//
//   - Debug: raw deliveries (hex/ascii), classified lines, CGI bodies
//   - Info: connection transitions, model announcements, reconfiguration
//   - Warn: suppressed commands, snapshot decode failures, unreachable device
//   - Error: failures that stop a command
//
// # Configuration
//
// Logging is silent by default. Enable it with the --log-level flag or the
// INTMATRIX_LOG_LEVEL environment variable:
//
//	INTMATRIX_LOG_LEVEL=debug intmatrix monitor -d 192.168.1.50
//
// Programmatically:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.Info("Stream connected", zap.String("host", host))
//	logging.LogRawBytes("Stream delivery", data)
package logging
