// Package logger wraps zap for the build tool:
//   - a global sugared logger writing a compact console format to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - convenience functions (Info, InfoKV, WarnKV, ErrorKV, ...).
//
// Pipeline steps receive a context and log through it, so every message carries
// the step name it was produced by.
package logger
