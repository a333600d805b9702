package store

import (
	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// MergedRoot is the logical, never-persisted merge of the set of current
// device root pages for a datastore (spec §3, §4.4.4).
type MergedRoot struct {
	Files map[string]FileHeader
}

// DevicePage pairs a device id with its page and the public key that must
// verify its signature.
type DevicePage struct {
	DeviceID string
	Page     *DeviceRootPage // nil if the device has no current page
	PubKey   *cryptoutil.PublicKey
}

// MergeRootDirectory implements the merge algorithm of spec §4.4.4.
//
//  1. Discard any device root whose signature doesn't verify.
//  2. Collect all tombstones, keyed by (name, device_id).
//  3. For each name, pick the header with the greatest timestamp,
//     breaking ties by lexicographic device id.
//  4. Suppress entries covered by a tombstone with timestamp >= header
//     timestamp.
//
// Per spec §4.4.4, device roots whose signatures fail verification are
// simply ignored, UNLESS every device root is invalid, in which case the
// whole listing fails with EINVAL.
func MergeRootDirectory(pages []DevicePage) (*MergedRoot, error) {
	valid := make([]DevicePage, 0, len(pages))
	sawAny := false
	for _, dp := range pages {
		if dp.Page == nil {
			continue
		}
		sawAny = true
		if dp.Page.Verify(dp.PubKey) {
			valid = append(valid, dp)
		}
	}

	if sawAny && len(valid) == 0 {
		return nil, gatewayerr.NewEINVAL("no device root page had a valid signature", nil)
	}

	// tombstones keyed by (name, device_id) -> greatest timestamp seen
	// for that key. A tombstone is authoritative only within the scope
	// of the public key that signed it, so we key on the signing device.
	type tombKey struct {
		name     string
		deviceID string
	}
	tombstones := make(map[tombKey]int64)
	for _, dp := range valid {
		for _, t := range dp.Page.Tombstones {
			if !t.Verify(dp.PubKey) {
				continue
			}
			fqID, ts, err := ParseTombstoneText(t.Text)
			if err != nil {
				continue
			}
			name := fileNameFromFQID(fqID)
			key := tombKey{name: name, deviceID: dp.DeviceID}
			if existing, ok := tombstones[key]; !ok || ts > existing {
				tombstones[key] = ts
			}
		}
	}

	winners := make(map[string]FileHeader)
	for _, dp := range valid {
		for name, header := range dp.Page.Files {
			current, ok := winners[name]
			if !ok || isNewerHeader(header, current) {
				winners[name] = header
			}
		}
	}

	result := make(map[string]FileHeader)
	for name, header := range winners {
		suppressed := false
		for key, ts := range tombstones {
			if key.name == name && ts >= header.Timestamp {
				suppressed = true
				break
			}
		}
		if !suppressed {
			result[name] = header
		}
	}

	return &MergedRoot{Files: result}, nil
}

// isNewerHeader reports whether a should win over b: greater timestamp,
// or equal timestamp with a's writer device id lexicographically greater
// (spec §3 tie-break).
func isNewerHeader(a, b FileHeader) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp > b.Timestamp
	}
	return a.WriterDeviceID > b.WriterDeviceID
}

// fileNameFromFQID extracts the file name component from a
// "{device_id}:{datastore_id}/{file_name}" fully-qualified id. File names
// may themselves contain '/' (posix-style paths), so this splits on the
// first separator, the one that ends the datastore id, rather than the
// last.
func fileNameFromFQID(fqID string) string {
	idx := -1
	for i := 0; i < len(fqID); i++ {
		if fqID[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fqID
	}
	return fqID[idx+1:]
}
