package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

func newTestStore(t *testing.T) (*Store, *drivers.Registry) {
	t.Helper()
	reg := drivers.NewRegistry()
	require.NoError(t, reg.Register("disk0", drivers.NewMemoryDriver("disk0"), ""))
	return NewStore(reg, DefaultWriteOptions()), reg
}

func newTestDatastore(t *testing.T) (*Datastore, *cryptoutil.PrivateKey) {
	t.Helper()
	priv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()
	ds := &Datastore{
		ID:        cryptoutil.DatastoreID(pub),
		PubKey:    pub.Hex(),
		Drivers:   []string{"disk0"},
		DeviceIDs: []string{"device-1"},
	}
	return ds, priv
}

func TestCreateAndReadDatastore(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, _ := newTestDatastore(t)

	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	got, err := s.ReadDatastore(ctx, ds.ID)
	require.NoError(t, err)
	require.Equal(t, ds.ID, got.ID)
	require.NotEmpty(t, got.RootUUID)
}

func TestCreateDatastoreRejectsDuplicate(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, _ := newTestDatastore(t)

	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))
	err := s.CreateDatastore(ctx, ds)
	require.Error(t, err)
	require.True(t, gatewayerr.IsConflict(err))
}

func TestWriteAndReadFileRoundTrip(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	payload := []byte("hello world")
	urls, err := s.WriteFile(ctx, ds, "device-1", "greeting.txt", payload)
	require.NoError(t, err)
	require.NotEmpty(t, urls)

	header := &FileHeader{
		Name:           "greeting.txt",
		DataHash:       cryptoutil.Sha256Hex(payload),
		URLs:           urls,
		Timestamp:      time.Now().UnixNano(),
		WriterDeviceID: "device-1",
	}
	header.Sign(priv)
	require.True(t, header.Verify(priv.PubKey()))

	got, err := s.ReadFile(ctx, ds, header)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestWriteDeviceRootSyncAndReadBack(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	page := &DeviceRootPage{
		DeviceID:  "device-1",
		Timestamp: time.Now().UnixNano(),
		Files:     map[string]FileHeader{},
	}
	page.Sign(priv)

	require.NoError(t, s.WriteDeviceRoot(ctx, ds, page, priv.PubKey(), true))

	got, err := s.ReadDeviceRoot(ctx, ds, "device-1", priv.PubKey())
	require.NoError(t, err)
	require.Equal(t, page.DeviceID, got.DeviceID)
}

func TestWriteDeviceRootRejectsBadSignature(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	other, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	page := &DeviceRootPage{DeviceID: "device-1", Timestamp: time.Now().UnixNano(), Files: map[string]FileHeader{}}
	page.Sign(other) // signed by the wrong key

	err = s.WriteDeviceRoot(ctx, ds, page, priv.PubKey(), true)
	require.Error(t, err)
	require.True(t, gatewayerr.Is(err, gatewayerr.InvalidRequest))
}

func TestReadMergedRootAcrossDevices(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	priv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()

	priv2, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	pub2 := priv2.PubKey()

	ds := &Datastore{
		ID:        cryptoutil.DatastoreID(pub),
		PubKey:    pub.Hex(),
		Drivers:   []string{"disk0"},
		DeviceIDs: []string{"device-a", "device-b"},
	}
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	headerA := FileHeader{Name: "a.txt", DataHash: "h1", Timestamp: 100, WriterDeviceID: "device-a"}
	headerA.Sign(priv)
	pageA := &DeviceRootPage{DeviceID: "device-a", Timestamp: 100, Files: map[string]FileHeader{"a.txt": headerA}}
	pageA.Sign(priv)
	require.NoError(t, s.WriteDeviceRoot(ctx, ds, pageA, pub, true))

	pageB := &DeviceRootPage{DeviceID: "device-b", Timestamp: 50, Files: map[string]FileHeader{}}
	pageB.Sign(priv2)
	require.NoError(t, s.WriteDeviceRoot(ctx, ds, pageB, pub2, true))

	merged, err := s.ReadMergedRoot(ctx, ds, DevicePubKeys{"device-a": pub, "device-b": pub2})
	require.NoError(t, err)
	require.Contains(t, merged.Files, "a.txt")
}

func TestDeleteDatastoreRequiresTombstoneCoverage(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	err := s.DeleteDatastore(ctx, ds, nil, nil, []*cryptoutil.PublicKey{priv.PubKey()}, ds.DeviceIDs)
	require.Error(t, err)
	require.True(t, gatewayerr.IsAuthFailed(err))
}

func TestDeleteDatastoreSucceedsWithFullCoverage(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	rootTombs := make([]Tombstone, 0, len(ds.DeviceIDs))
	for _, deviceID := range ds.DeviceIDs {
		text := MakeTombstoneText(DeviceRootFQID(deviceID, ds.ID), time.Now().UnixNano())
		tomb := Tombstone{Text: text}
		tomb.Sign(priv)
		rootTombs = append(rootTombs, tomb)
	}

	err := s.DeleteDatastore(ctx, ds, nil, rootTombs, []*cryptoutil.PublicKey{priv.PubKey()}, ds.DeviceIDs)
	require.NoError(t, err)

	_, err = s.ReadDatastore(ctx, ds.ID)
	require.Error(t, err)
	require.True(t, gatewayerr.IsNotFound(err))
}

func TestDeleteFileAppliesResignedPage(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	pub := priv.PubKey()
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	header := FileHeader{Name: "a.txt", DataHash: "h1", Timestamp: 100, WriterDeviceID: "device-1"}
	header.Sign(priv)
	page := &DeviceRootPage{DeviceID: "device-1", Timestamp: 100, Files: map[string]FileHeader{"a.txt": header}}
	page.Sign(priv)
	require.NoError(t, s.WriteDeviceRoot(ctx, ds, page, pub, true))

	tombText := MakeTombstoneText(FileFQID("device-1", ds.ID, "a.txt"), 200)
	tomb := Tombstone{Text: tombText}
	tomb.Sign(priv)

	resigned := &DeviceRootPage{
		DeviceID:   "device-1",
		Timestamp:  200,
		Files:      map[string]FileHeader{"a.txt": header},
		Tombstones: []Tombstone{tomb},
	}
	resigned.Sign(priv)

	require.NoError(t, s.DeleteFile(ctx, ds, "device-1", pub, tomb, resigned))

	got, err := s.ReadDeviceRoot(ctx, ds, "device-1", pub)
	require.NoError(t, err)
	require.Len(t, got.Tombstones, 1)
	require.Equal(t, tombText, got.Tombstones[0].Text)

	// the stored page's own signature must still verify: the gateway
	// persisted what the client signed rather than mutating it after
	// the fact.
	require.True(t, got.Verify(pub))
}

func TestDeleteFileRejectsTombstoneNotInResignedPage(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	pub := priv.PubKey()
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	page := &DeviceRootPage{DeviceID: "device-1", Timestamp: 100, Files: map[string]FileHeader{}}
	page.Sign(priv)
	require.NoError(t, s.WriteDeviceRoot(ctx, ds, page, pub, true))

	tombText := MakeTombstoneText(FileFQID("device-1", ds.ID, "a.txt"), 200)
	tomb := Tombstone{Text: tombText}
	tomb.Sign(priv)

	// resignedPage doesn't actually include the tombstone being applied
	resigned := &DeviceRootPage{DeviceID: "device-1", Timestamp: 200, Files: map[string]FileHeader{}}
	resigned.Sign(priv)

	err := s.DeleteFile(ctx, ds, "device-1", pub, tomb, resigned)
	require.Error(t, err)
	require.True(t, gatewayerr.Is(err, gatewayerr.InvalidRequest))
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ds, priv := newTestDatastore(t)
	pub := priv.PubKey()
	ctx := context.Background()
	require.NoError(t, s.CreateDatastore(ctx, ds))

	tombText := MakeTombstoneText(FileFQID("device-1", ds.ID, "a.txt"), 200)
	tomb := Tombstone{Text: tombText}
	tomb.Sign(priv)

	resigned := &DeviceRootPage{
		DeviceID:   "device-1",
		Timestamp:  200,
		Files:      map[string]FileHeader{},
		Tombstones: []Tombstone{tomb},
	}
	resigned.Sign(priv)

	require.NoError(t, s.DeleteFile(ctx, ds, "device-1", pub, tomb, resigned))
	require.NoError(t, s.DeleteFile(ctx, ds, "device-1", pub, tomb, resigned))

	got, err := s.ReadDeviceRoot(ctx, ds, "device-1", pub)
	require.NoError(t, err)
	require.Len(t, got.Tombstones, 1)
}
