package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskd/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}

	for _, tc := range tests {
		level, ok := logger.ParseLevel(tc.in)
		assert.Equal(t, tc.level, level, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
}

func TestSetup_WritesJSONAtConfiguredLevel(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	buf := &logger.TestLogBuffer{}
	l, err := logger.Setup(logger.LoggerConfig{Level: "warn", Output: buf})
	require.NoError(t, err)
	require.NotNil(t, l)

	l.Info("dropped")
	l.Warn("kept", "task_id", "abc")

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "abc", entries[0]["task_id"])
	assert.Same(t, l, slog.Default())
}

func TestSetup_FansOutToExtraHandlers(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	primary := &logger.TestLogBuffer{}
	secondary := &logger.TestLogBuffer{}

	l, err := logger.Setup(logger.LoggerConfig{
		Level:    "debug",
		Output:   primary,
		Handlers: []slog.Handler{slog.NewJSONHandler(secondary, nil)},
	})
	require.NoError(t, err)

	l.With("component", "test").Info("hello")
	l.Debug("debug only reaches primary")

	p, err := primary.GetLogEntries()
	require.NoError(t, err)
	s, err := secondary.GetLogEntries()
	require.NoError(t, err)

	assert.Len(t, p, 2)
	require.Len(t, s, 1)
	assert.Equal(t, "test", s[0]["component"])
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	l, _ := logger.GetTestLogger(t)
	fallback, _ := logger.GetTestLogger(t)

	ctx := logger.WithLogger(context.Background(), l)
	assert.Same(t, l, logger.FromContext(ctx))
	assert.Same(t, l, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.NotNil(t, logger.FromContextOrDefault(context.Background(), nil))
}
