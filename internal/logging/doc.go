// Package logging provides a simple leveled logging interface for the
// bandwidth proxy.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// DEBUG=true. LOG_ENABLED=false silences all output.
//
// Request-path components receive a *Logger at construction time and may
// derive scoped loggers with With. The package-level functions write through
// Default and are intended for startup and shutdown code.
package logging
