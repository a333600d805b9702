package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

func signedPage(t *testing.T, deviceID string, timestamp int64, priv *cryptoutil.PrivateKey, files map[string]FileHeader, tombstones []Tombstone) *DeviceRootPage {
	t.Helper()
	page := &DeviceRootPage{DeviceID: deviceID, Timestamp: timestamp, Files: files, Tombstones: tombstones}
	page.Sign(priv)
	return page
}

func signedHeader(t *testing.T, priv *cryptoutil.PrivateKey, name string, timestamp int64, writerDeviceID string) FileHeader {
	t.Helper()
	h := FileHeader{Name: name, DataHash: cryptoutil.Sha256Hex([]byte(name)), Timestamp: timestamp, WriterDeviceID: writerDeviceID}
	h.Sign(priv)
	return h
}

func TestMergeGreaterTimestampWins(t *testing.T) {
	t.Parallel()

	priv1, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	priv2, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	older := signedHeader(t, priv1, "notes.txt", 100, "device1")
	newer := signedHeader(t, priv2, "notes.txt", 200, "device2")

	page1 := signedPage(t, "device1", 100, priv1, map[string]FileHeader{"notes.txt": older}, nil)
	page2 := signedPage(t, "device2", 200, priv2, map[string]FileHeader{"notes.txt": newer}, nil)

	merged, err := MergeRootDirectory([]DevicePage{
		{DeviceID: "device1", Page: page1, PubKey: priv1.PubKey()},
		{DeviceID: "device2", Page: page2, PubKey: priv2.PubKey()},
	})
	require.NoError(t, err)
	require.Contains(t, merged.Files, "notes.txt")
	assert.Equal(t, "device2", merged.Files["notes.txt"].WriterDeviceID)
}

func TestMergeTieBreaksByDeviceID(t *testing.T) {
	t.Parallel()

	privA, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	privB, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	headerA := signedHeader(t, privA, "notes.txt", 100, "alice")
	headerB := signedHeader(t, privB, "notes.txt", 100, "bob")

	pageA := signedPage(t, "alice", 100, privA, map[string]FileHeader{"notes.txt": headerA}, nil)
	pageB := signedPage(t, "bob", 100, privB, map[string]FileHeader{"notes.txt": headerB}, nil)

	merged, err := MergeRootDirectory([]DevicePage{
		{DeviceID: "alice", Page: pageA, PubKey: privA.PubKey()},
		{DeviceID: "bob", Page: pageB, PubKey: privB.PubKey()},
	})
	require.NoError(t, err)
	// "bob" > "alice" lexicographically
	assert.Equal(t, "bob", merged.Files["notes.txt"].WriterDeviceID)
}

func TestMergeTombstoneSuppressesEntry(t *testing.T) {
	t.Parallel()

	priv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	header := signedHeader(t, priv, "notes.txt", 100, "device1")
	fqID := "device1:ds1/notes.txt"
	tomb := Tombstone{Text: MakeTombstoneText(fqID, 150)}
	tomb.Sign(priv)

	page := signedPage(t, "device1", 150, priv, map[string]FileHeader{"notes.txt": header}, []Tombstone{tomb})

	merged, err := MergeRootDirectory([]DevicePage{
		{DeviceID: "device1", Page: page, PubKey: priv.PubKey()},
	})
	require.NoError(t, err)
	assert.NotContains(t, merged.Files, "notes.txt")
}

func TestMergeTombstoneOlderThanHeaderDoesNotSuppress(t *testing.T) {
	t.Parallel()

	priv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	header := signedHeader(t, priv, "notes.txt", 200, "device1")
	fqID := "device1:ds1/notes.txt"
	tomb := Tombstone{Text: MakeTombstoneText(fqID, 100)}
	tomb.Sign(priv)

	page := signedPage(t, "device1", 200, priv, map[string]FileHeader{"notes.txt": header}, []Tombstone{tomb})

	merged, err := MergeRootDirectory([]DevicePage{
		{DeviceID: "device1", Page: page, PubKey: priv.PubKey()},
	})
	require.NoError(t, err)
	assert.Contains(t, merged.Files, "notes.txt")
}

func TestMergeDiscardsInvalidSignatureButKeepsOthers(t *testing.T) {
	t.Parallel()

	priv1, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	priv2, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	good := signedHeader(t, priv2, "good.txt", 100, "device2")
	goodPage := signedPage(t, "device2", 100, priv2, map[string]FileHeader{"good.txt": good}, nil)

	badPage := &DeviceRootPage{DeviceID: "device1", Timestamp: 100, Files: map[string]FileHeader{
		"bad.txt": signedHeader(t, priv1, "bad.txt", 100, "device1"),
	}}
	badPage.Signature = "deadbeef" // signs nothing real; will fail verification under priv1.PubKey()

	merged, err := MergeRootDirectory([]DevicePage{
		{DeviceID: "device1", Page: badPage, PubKey: priv1.PubKey()},
		{DeviceID: "device2", Page: goodPage, PubKey: priv2.PubKey()},
	})
	require.NoError(t, err)
	assert.Contains(t, merged.Files, "good.txt")
	assert.NotContains(t, merged.Files, "bad.txt")
}

func TestMergeAllInvalidReturnsEINVAL(t *testing.T) {
	t.Parallel()

	priv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	badPage := &DeviceRootPage{DeviceID: "device1", Timestamp: 100, Files: map[string]FileHeader{}}
	badPage.Signature = "deadbeef"

	_, err = MergeRootDirectory([]DevicePage{
		{DeviceID: "device1", Page: badPage, PubKey: priv.PubKey()},
	})
	require.Error(t, err)
	assert.Equal(t, gatewayerr.EINVAL, err.(*gatewayerr.Error).Errno)
}

func TestMergeIsDeterministic(t *testing.T) {
	t.Parallel()

	priv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	header := signedHeader(t, priv, "a.txt", 100, "device1")
	page := signedPage(t, "device1", 100, priv, map[string]FileHeader{"a.txt": header}, nil)

	input := []DevicePage{{DeviceID: "device1", Page: page, PubKey: priv.PubKey()}}

	m1, err := MergeRootDirectory(input)
	require.NoError(t, err)
	m2, err := MergeRootDirectory(input)
	require.NoError(t, err)
	assert.Equal(t, m1, m2)
}
