// Package logging provides structured logging for pseudodevd.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same default fields (service, version) and format.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	registry.SetLogger(logger.With("component", "registry"))
//	logger.Info("device attached", "handle", 0, "identity", "PLFDEV0000")
//
// Never log device buffer contents, the JWT secret or broker credentials.
package logging
