// Package logging provides a simple leveled logging interface for the
// refboard catalog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Output goes through a logrus logger that
// writes text, or JSON lines with LOG_FORMAT=json. [WithFields] exposes it
// for structured call sites.
package logging
