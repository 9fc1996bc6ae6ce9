package log

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	ctx := context.Background()

	l1 := Ctx(ctx)
	require.NotNil(t, l1, "Ctx returned nil instead of default logger")
	assert.Equal(t, defaultLogger, l1, "Ctx should return defaultLogger")

	customLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	require.NotEqual(t, defaultLogger, customLogger)

	ctxWithLogger := With(ctx, customLogger)
	l2 := Ctx(ctxWithLogger)
	require.NotNil(t, l2)
	assert.Equal(t, customLogger, l2, "Ctx should return customLogger")
}

func TestWithAttrs(t *testing.T) {
	ctx := WithAttrs(context.Background(), slog.String("quoteID", "abc"))
	l := Ctx(ctx)
	require.NotNil(t, l)
	assert.NotEqual(t, defaultLogger, l, "WithAttrs should derive a new logger")
}

func TestSetDefaultLogLevel(t *testing.T) {
	defer SetDefaultLogLevel(slog.LevelInfo)

	SetDefaultLogLevel(slog.LevelWarn)
	assert.False(t, defaultLogger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, defaultLogger.Enabled(context.Background(), slog.LevelWarn))
}
