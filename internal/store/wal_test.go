package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteDeviceRootAsyncDrains(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	page := &DeviceRootPage{DeviceID: "device-1", Timestamp: time.Now().UnixNano(), Files: map[string]FileHeader{}}
	page.Sign(priv)

	require.NoError(t, s.WriteDeviceRoot(ctx, ds, page, priv.PubKey(), false))

	require.Eventually(t, func() bool {
		_, err := s.ReadDeviceRoot(ctx, ds, "device-1", priv.PubKey())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWALDepthReflectsQueuedEntries(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	page := &DeviceRootPage{DeviceID: "device-1", Timestamp: time.Now().UnixNano(), Files: map[string]FileHeader{}}
	page.Sign(priv)
	require.NoError(t, s.WriteDeviceRoot(ctx, ds, page, priv.PubKey(), false))

	require.Eventually(t, func() bool {
		return s.wal.Depth() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
