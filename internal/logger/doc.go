// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - an optional rotating JSON log file backed by lumberjack,
//   - level parsing and convenience functions (Infof, ErrorKV, etc.).
//
// Pipeline stages accept a context and extract the logger from it, so every
// record carries the run and package it belongs to.
package logger
