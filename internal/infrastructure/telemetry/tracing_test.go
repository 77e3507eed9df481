package telemetry

import (
	"context"
	"testing"

	"agrimatch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), &config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), &config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4318",
		ServiceName: "agrimatch-points-test",
		Insecure:    true,
	})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	// 没有 span 需要导出，shutdown 不会连接 collector
	assert.NoError(t, shutdown(context.Background()))
}
