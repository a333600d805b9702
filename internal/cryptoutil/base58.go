package cryptoutil

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

func doubleSha256(data []byte) []byte {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second[:]
}

// Base58CheckEncode encodes payload with the given version byte and a
// 4-byte double-SHA256 checksum, the scheme used for datastore and
// fabric public-key-derived identifiers.
func Base58CheckEncode(version byte, payload []byte) string {
	body := make([]byte, 0, 1+len(payload))
	body = append(body, version)
	body = append(body, payload...)
	checksum := doubleSha256(body)[:4]
	body = append(body, checksum...)
	return base58.Encode(body)
}

// Base58CheckDecode decodes a base58check string, validating its checksum,
// and returns the version byte and payload.
func Base58CheckDecode(s string) (version byte, payload []byte, err error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return 0, nil, err
	}
	if len(raw) < 5 {
		return 0, nil, fmt.Errorf("base58check string too short")
	}
	body := raw[:len(raw)-4]
	checksum := raw[len(raw)-4:]
	expected := doubleSha256(body)[:4]
	for i := range checksum {
		if checksum[i] != expected[i] {
			return 0, nil, fmt.Errorf("invalid base58check checksum")
		}
	}
	return body[0], body[1:], nil
}

// IsBase58Check reports whether s decodes successfully as a base58check
// string, used by the gateway to distinguish a datastore id from an app
// name in the "read datastore record" route (spec §4.4.1).
func IsBase58Check(s string) bool {
	_, _, err := Base58CheckDecode(s)
	return err == nil
}

// DatastoreIDVersion is the version byte used for datastore ids derived
// from an owner public key.
const DatastoreIDVersion = 0x17

// DatastoreID derives a datastore's id deterministically from its owner
// public key: id == hash(pubkey) (spec §3 invariant).
func DatastoreID(pub *PublicKey) string {
	h := Sha256(pub.SerializeCompressed())
	return Base58CheckEncode(DatastoreIDVersion, h[:20])
}
