package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orgmetrics/internal/config"
)

func TestInitTracing_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := initTracing(context.Background(), config.TelemetryConfig{ServiceName: "orgmetrics"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}
