package logger

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the root logger. Level falls back to info on bad input,
// and pretty console output is used outside production.
func New(level, environment string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if strings.EqualFold(environment, "production") {
		logger = zerolog.New(os.Stdout)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	return logger.Level(lvl).With().Timestamp().Logger()
}

var nop = zerolog.Nop()

// WithContext stores the logger on the context.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &logger)
}

// FromContext returns the context logger, or a disabled logger when
// none is set.
func FromContext(ctx context.Context) *zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return logger
	}
	return &nop
}

// WithOrderID annotates the context logger with an order id.
func WithOrderID(ctx context.Context, orderID uuid.UUID) context.Context {
	logger := FromContext(ctx).With().Str("order_id", orderID.String()).Logger()
	return WithContext(ctx, logger)
}

// WithUserID annotates the context logger with a user id.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	logger := FromContext(ctx).With().Str("user_id", userID.String()).Logger()
	return WithContext(ctx, logger)
}
