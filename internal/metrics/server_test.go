package metrics

import (
	"context"
	"testing"

	"github.com/goran-ethernal/BlockStreamor/internal/logger"
	"github.com/goran-ethernal/BlockStreamor/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestServer_DisabledDoesNothing(t *testing.T) {
	s := NewServer(&config.MetricsConfig{Enabled: false}, logger.NewNopLogger())

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestServer_BadListenAddressFailsStart(t *testing.T) {
	s := NewServer(&config.MetricsConfig{
		Enabled:       true,
		ListenAddress: "256.256.256.256:1",
		Path:          "/metrics",
	}, logger.NewNopLogger())

	err := s.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to bind metrics server")
}

func TestServer_StartAndStop(t *testing.T) {
	s := NewServer(&config.MetricsConfig{
		Enabled:       true,
		ListenAddress: "127.0.0.1:0",
		Path:          "/metrics",
	}, logger.NewNopLogger())

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))
}
