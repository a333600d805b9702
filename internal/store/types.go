// Package store implements the datastore core (spec §4.4): the
// multi-device, content-addressed file store whose merged root directory
// is assembled from per-device signed snapshots.
package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// Datastore is a container owned by exactly one public key (spec §3).
type Datastore struct {
	ID        string   `json:"id"`
	PubKey    string   `json:"pubkey"` // hex-encoded compressed secp256k1 key
	RootUUID  string   `json:"root_uuid"`
	Drivers   []string `json:"drivers"`
	DeviceIDs []string `json:"device_ids"`
}

// PublicKey parses the datastore's owner public key.
func (d *Datastore) PublicKey() (*cryptoutil.PublicKey, error) {
	return cryptoutil.ParsePublicKeyHex(d.PubKey)
}

// Validate checks the id == hash(pubkey) invariant (spec §3, §8).
func (d *Datastore) Validate() error {
	pub, err := d.PublicKey()
	if err != nil {
		return gatewayerr.NewEINVAL("invalid datastore pubkey", err)
	}
	if cryptoutil.DatastoreID(pub) != d.ID {
		return gatewayerr.NewEINVAL("datastore id does not match hash(pubkey)", nil)
	}
	return nil
}

// FileHeader describes one named file's current locator and signature
// (spec §3).
type FileHeader struct {
	Name           string   `json:"name"`
	DataHash       string   `json:"data_hash"`
	URLs           []string `json:"urls"`
	Timestamp      int64    `json:"timestamp"`
	WriterDeviceID string   `json:"writer_device_id"`
	Signature      string   `json:"signature"` // hex-encoded DER signature
}

// signingBytes returns the canonical byte sequence a FileHeader's
// signature covers: every field except the signature itself.
func (h *FileHeader) signingBytes() []byte {
	type signable struct {
		Name           string   `json:"name"`
		DataHash       string   `json:"data_hash"`
		URLs           []string `json:"urls"`
		Timestamp      int64    `json:"timestamp"`
		WriterDeviceID string   `json:"writer_device_id"`
	}
	b, _ := json.Marshal(signable{h.Name, h.DataHash, h.URLs, h.Timestamp, h.WriterDeviceID})
	return b
}

// Sign signs the header with the given private key and sets Signature.
func (h *FileHeader) Sign(priv *cryptoutil.PrivateKey) {
	hash := cryptoutil.Sha256(h.signingBytes())
	h.Signature = fmt.Sprintf("%x", priv.Sign(hash))
}

// Verify checks the header's signature against pub.
func (h *FileHeader) Verify(pub *cryptoutil.PublicKey) bool {
	sig, err := decodeHex(h.Signature)
	if err != nil {
		return false
	}
	hash := cryptoutil.Sha256(h.signingBytes())
	return pub.Verify(hash, sig)
}

// Tombstone is a signed deletion marker (spec §3): the string
// "{fully-qualified-id} {timestamp}" plus a detached signature.
type Tombstone struct {
	Text      string `json:"text"`
	Signature string `json:"signature"`
}

// MakeTombstoneText builds the canonical tombstone text for a
// fully-qualified id and timestamp.
func MakeTombstoneText(fqID string, timestamp int64) string {
	return fmt.Sprintf("%s %d", fqID, timestamp)
}

// ParseTombstoneText splits a tombstone's text back into its
// fully-qualified id and timestamp.
func ParseTombstoneText(text string) (fqID string, timestamp int64, err error) {
	idx := strings.LastIndex(text, " ")
	if idx < 0 {
		return "", 0, gatewayerr.NewEINVAL("malformed tombstone text", nil)
	}
	fqID = text[:idx]
	timestamp, err = strconv.ParseInt(text[idx+1:], 10, 64)
	if err != nil {
		return "", 0, gatewayerr.NewEINVAL("malformed tombstone timestamp", err)
	}
	return fqID, timestamp, nil
}

// Sign signs the tombstone's text with priv.
func (t *Tombstone) Sign(priv *cryptoutil.PrivateKey) {
	hash := cryptoutil.Sha256([]byte(t.Text))
	t.Signature = fmt.Sprintf("%x", priv.Sign(hash))
}

// Verify checks the tombstone's signature against pub. A tombstone is
// authoritative only within the scope of the public key that signed it
// (spec §3).
func (t *Tombstone) Verify(pub *cryptoutil.PublicKey) bool {
	sig, err := decodeHex(t.Signature)
	if err != nil {
		return false
	}
	hash := cryptoutil.Sha256([]byte(t.Text))
	return pub.Verify(hash, sig)
}

// DeviceRootPage is one device's signed, timestamped view of the
// datastore's file listing (spec §3).
type DeviceRootPage struct {
	DeviceID   string                `json:"device_id"`
	Timestamp  int64                 `json:"timestamp"`
	Files      map[string]FileHeader `json:"files"`
	Tombstones []Tombstone           `json:"tombstones"`
	Signature  string                `json:"signature"`
}

// signingBytes returns the canonical byte sequence a DeviceRootPage's
// signature covers, with map keys sorted for determinism.
func (p *DeviceRootPage) signingBytes() []byte {
	names := make([]string, 0, len(p.Files))
	for n := range p.Files {
		names = append(names, n)
	}
	sort.Strings(names)

	type signable struct {
		DeviceID   string      `json:"device_id"`
		Timestamp  int64       `json:"timestamp"`
		FileNames  []string    `json:"file_names"`
		FileHashes []string    `json:"file_hashes"`
		Tombstones []Tombstone `json:"tombstones"`
	}
	hashes := make([]string, len(names))
	for i, n := range names {
		hashes[i] = p.Files[n].DataHash + "/" + strconv.FormatInt(p.Files[n].Timestamp, 10) + "/" + p.Files[n].Signature
	}
	b, _ := json.Marshal(signable{p.DeviceID, p.Timestamp, names, hashes, p.Tombstones})
	return b
}

// Sign signs the device root page with priv.
func (p *DeviceRootPage) Sign(priv *cryptoutil.PrivateKey) {
	hash := cryptoutil.Sha256(p.signingBytes())
	p.Signature = fmt.Sprintf("%x", priv.Sign(hash))
}

// Verify checks the device root page's signature against pub.
func (p *DeviceRootPage) Verify(pub *cryptoutil.PublicKey) bool {
	sig, err := decodeHex(p.Signature)
	if err != nil {
		return false
	}
	hash := cryptoutil.Sha256(p.signingBytes())
	return pub.Verify(hash, sig)
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty signature")
	}
	return hex.DecodeString(s)
}
