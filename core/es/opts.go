package es

import "log/slog"

type (
	valueOption[T any] struct{ v T }

	// LogOption carries a logger into any component that accepts one.
	LogOption struct{ l *slog.Logger }
)

func WithLog(l *slog.Logger) LogOption { return LogOption{l: l} }
