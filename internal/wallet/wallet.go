// Package wallet gives the gateway a narrow, opaque view onto the
// wallet file on disk (spec §1 Non-goals: the wallet file itself is an
// external collaborator referenced only through this interface). The
// gateway never derives keys or addresses itself; it stores whatever
// the wallet hands it and hands it back on read, the same way
// internal/registrar treats the registrar queue as an opaque FIFO it
// forwards to rather than implements.
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// KeyField names one of the three wallet key slots the HTTP surface
// exposes individually (spec §6 "PUT /v1/wallet/keys/{owner|payment|data}").
type KeyField string

const (
	KeyOwner   KeyField = "owner"
	KeyPayment KeyField = "payment"
	KeyData    KeyField = "data"
)

// Keys holds the wallet's key material exactly as the wallet file
// stores it: opaque strings the gateway never parses as curve points.
type Keys struct {
	OwnerPrivateKey   string `json:"owner_private_key,omitempty"`
	PaymentPrivateKey string `json:"payment_private_key,omitempty"`
	DataPrivateKey    string `json:"data_private_key,omitempty"`
	OwnerAddress      string `json:"owner_address,omitempty"`
	PaymentAddress    string `json:"payment_address,omitempty"`
	DataPubkey        string `json:"data_pubkey,omitempty"`
}

// record is the on-disk shape of the wallet file.
type record struct {
	Password string `json:"password"`
	Keys     Keys   `json:"keys"`
}

// File is a JSON-file-backed Wallet. The gateway config points it at
// the configured wallet path (spec §6 "Persisted state layout"); the
// gateway does not care how the file got there, only that it can read
// and rewrite it under a lock, mirroring the way internal/drivers
// treats a storage backend as opaque bytes in, bytes out.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile opens (without yet reading) the wallet file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) load() (record, error) {
	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return record{}, nil
	}
	if err != nil {
		return record{}, gatewayerr.NewInternalError("read wallet file", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, gatewayerr.NewInternalError("parse wallet file", err)
	}
	return rec, nil
}

func (f *File) save(rec record) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return gatewayerr.NewInternalError("marshal wallet file", err)
	}
	if err := os.WriteFile(f.path, raw, 0o600); err != nil {
		return gatewayerr.NewInternalError("write wallet file", err)
	}
	return nil
}

// Keys returns the wallet's current key material.
func (f *File) Keys() (Keys, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, err := f.load()
	if err != nil {
		return Keys{}, err
	}
	return rec.Keys, nil
}

// SetKeys overwrites the entire key set (spec §6 "PUT /v1/wallet/keys").
func (f *File) SetKeys(keys Keys) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, err := f.load()
	if err != nil {
		return err
	}
	rec.Keys = keys
	return f.save(rec)
}

// SetKeyField overwrites a single named key slot (spec §6 "PUT
// /v1/wallet/keys/{owner|payment|data}").
func (f *File) SetKeyField(field KeyField, privateKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, err := f.load()
	if err != nil {
		return err
	}
	switch field {
	case KeyOwner:
		rec.Keys.OwnerPrivateKey = privateKey
	case KeyPayment:
		rec.Keys.PaymentPrivateKey = privateKey
	case KeyData:
		rec.Keys.DataPrivateKey = privateKey
	default:
		return gatewayerr.NewInvalidRequestError(fmt.Sprintf("unknown wallet key field %q", field), nil)
	}
	return f.save(rec)
}

// SetPassword changes the wallet-file password (spec §6 "PUT
// /v1/wallet/password"), requiring the caller already prove the
// existing password (the HTTP layer has already checked the gateway's
// own master password; this is the wallet file's independent secret).
func (f *File) SetPassword(oldPassword, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, err := f.load()
	if err != nil {
		return err
	}
	if rec.Password != "" && rec.Password != oldPassword {
		return gatewayerr.NewAuthFailedError("incorrect wallet password", nil)
	}
	rec.Password = newPassword
	return f.save(rec)
}

// PaymentAddress returns the wallet's funding address.
func (f *File) PaymentAddress() (string, error) {
	keys, err := f.Keys()
	if err != nil {
		return "", err
	}
	return keys.PaymentAddress, nil
}

// OwnerAddress returns the wallet's name-owning address.
func (f *File) OwnerAddress() (string, error) {
	keys, err := f.Keys()
	if err != nil {
		return "", err
	}
	return keys.OwnerAddress, nil
}

// DataPubkey returns the wallet's data-signing public key.
func (f *File) DataPubkey() (string, error) {
	keys, err := f.Keys()
	if err != nil {
		return "", err
	}
	return keys.DataPubkey, nil
}
