package telemetry_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/phrazzld/taskd/internal/platform/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// syncBuffer guards a bytes.Buffer shared by the exporters.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSetup_RequiresWriter(t *testing.T) {
	_, err := telemetry.Setup(context.Background(), telemetry.Options{ServiceName: "taskd"})
	assert.Error(t, err)
}

func TestSetup_ExportsOnShutdown(t *testing.T) {
	ctx := context.Background()
	out := &syncBuffer{}

	p, err := telemetry.Setup(ctx, telemetry.Options{ServiceName: "taskd-test", Writer: out})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry-test").Start(ctx, "test-span")
	span.End()

	counter, err := otel.Meter("telemetry-test").Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	slog.New(p.LogHandler()).Info("bridged record", "task_id", "abc")

	require.NoError(t, p.Shutdown(ctx))

	exported := out.String()
	assert.Contains(t, exported, "test-span")
	assert.Contains(t, exported, "test.counter")
	assert.Contains(t, exported, "bridged record")
	assert.Contains(t, exported, "taskd-test")

	// A second shutdown is a no-op.
	assert.NoError(t, p.Shutdown(ctx))
}
