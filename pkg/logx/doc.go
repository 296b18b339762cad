// Package logx wraps zerolog behind a small facade so services can take a
// value-type Logger, derive child loggers with fixed fields, and keep
// logging through runtime config reloads without holding references to
// concrete sinks.
package logx
