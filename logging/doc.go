// Package logging provides a tiny abstraction over slog so downstream code can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. New builds a configured JSON or text slog logger; the
// NoOpLogger is the default wherever no logger is supplied.
package logging
