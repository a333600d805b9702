package gateway

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/config"
)

func freePort(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("%d", 20000+time.Now().Nanosecond()%10000)
}

func TestNewBuildsDepsFromConfig(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	g, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, g.Deps.Store)
	require.NotNil(t, g.Deps.Registry)
	require.NotNil(t, g.Deps.Registrar)
	require.NotNil(t, g.Deps.Chain)
	require.NotNil(t, g.Deps.Node)
}

func TestStartServesAndShutdownStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.BindHost = "127.0.0.1"
	cfg.BindPort = freePort(t)
	g, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Start(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		var getErr error
		resp, getErr = http.Get("http://" + cfg.Addr() + "/v1/ping")
		return getErr == nil
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cancel()
	require.Eventually(t, func() bool {
		select {
		case err := <-done:
			require.NoError(t, err)
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
