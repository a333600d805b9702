package session

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xeipuuv/gojsonschema"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// MaxAuthRequestBytes rejects tokens larger than this (spec §4.3 step 1).
const MaxAuthRequestBytes = 4096

// currentSchema is the schema for the per-device app_public_keys shape
// (spec §4.3, §9 "Schema validation").
const currentSchema = `{
  "type": "object",
  "required": ["app_domain", "methods", "app_private_key", "app_public_keys", "device_id"],
  "properties": {
    "app_domain": {"type": "string"},
    "methods": {"type": "array", "items": {"type": "string"}},
    "app_private_key": {"type": "string"},
    "app_public_keys": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["device_id", "public_key"],
        "properties": {
          "device_id": {"type": "string"},
          "public_key": {"type": "string"}
        }
      }
    },
    "device_id": {"type": "string"},
    "blockchain_id": {"type": "string"}
  }
}`

// legacySchema permits a single app_public_key instead of the per-device
// list (spec §4.3 step 2, §9 "Legacy auth schema": both shapes are
// preserved and the session is tagged with the one used).
const legacySchema = `{
  "type": "object",
  "required": ["app_domain", "methods", "app_private_key", "app_public_key", "device_id"],
  "properties": {
    "app_domain": {"type": "string"},
    "methods": {"type": "array", "items": {"type": "string"}},
    "app_private_key": {"type": "string"},
    "app_public_key": {"type": "string"},
    "device_id": {"type": "string"},
    "blockchain_id": {"type": "string"}
  }
}`

// authRequestPayload is the authRequest JWT's claim set, current shape.
type authRequestPayload struct {
	AppDomain     string            `json:"app_domain"`
	Methods       []string          `json:"methods"`
	AppPrivateKey string            `json:"app_private_key"`
	AppPublicKeys []DevicePublicKey `json:"app_public_keys"`
	AppPublicKey  string            `json:"app_public_key,omitempty"`
	DeviceID      string            `json:"device_id"`
	BlockchainID  string            `json:"blockchain_id,omitempty"`
}

func validateSchema(raw []byte, schema string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	docLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return gatewayerr.NewInvalidRequestError("schema validation error", err)
	}
	if !result.Valid() {
		return gatewayerr.NewInvalidRequestError("payload does not match schema", nil)
	}
	return nil
}

// BuildSession runs the full session-minting procedure of spec §4.3 over
// a raw authRequest JWT string, returning the signed session token.
func BuildSession(authRequestJWT string, masterKey *cryptoutil.PrivateKey) (string, error) {
	if len(authRequestJWT) > MaxAuthRequestBytes {
		return "", gatewayerr.NewInvalidRequestError("authRequest exceeds maximum size", nil)
	}

	// The authRequest is self-signed: we must read its claims before we
	// know which public key verifies it, so parse unverified first.
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(authRequestJWT, jwt.MapClaims{})
	if err != nil {
		return "", gatewayerr.NewInvalidRequestError("malformed authRequest", err)
	}
	claimsMap, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return "", gatewayerr.NewInvalidRequestError("malformed authRequest claims", nil)
	}
	raw, err := json.Marshal(claimsMap)
	if err != nil {
		return "", gatewayerr.NewInvalidRequestError("malformed authRequest claims", err)
	}

	legacy := false
	if err := validateSchema(raw, currentSchema); err != nil {
		if err2 := validateSchema(raw, legacySchema); err2 != nil {
			return "", gatewayerr.NewInvalidRequestError("authRequest matches neither current nor legacy schema", nil)
		}
		legacy = true
	}

	var payload authRequestPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", gatewayerr.NewInvalidRequestError("malformed authRequest payload", err)
	}

	if legacy && payload.AppPublicKey != "" {
		payload.AppPublicKeys = []DevicePublicKey{{DeviceID: payload.DeviceID, PublicKey: payload.AppPublicKey}}
	}

	appPriv, err := cryptoutil.ParsePrivateKeyHex(strings.TrimPrefix(payload.AppPrivateKey, "0x"))
	if err != nil {
		return "", gatewayerr.NewAuthFailedError("invalid app_private_key", err)
	}
	derivedPub := appPriv.PubKey()

	var listedPub *cryptoutil.PublicKey
	for _, dpk := range payload.AppPublicKeys {
		if dpk.DeviceID == payload.DeviceID {
			pub, err := cryptoutil.ParsePublicKeyHex(dpk.PublicKey)
			if err != nil {
				return "", gatewayerr.NewAuthFailedError("invalid public_key for device_id", err)
			}
			listedPub = pub
			break
		}
	}
	if listedPub == nil {
		return "", gatewayerr.NewAuthFailedError("device_id not present in app_public_keys", nil)
	}
	// Spec §4.3 step 3: the compressed form of the listed key must equal
	// the compressed form of the key derived from app_private_key.
	if !listedPub.Equal(derivedPub) {
		return "", gatewayerr.NewAuthFailedError("app_public_keys entry does not match app_private_key", nil)
	}

	// Spec §4.3 step 4: the request is self-signed; verify the JWT
	// signature using the now-trusted public key.
	_, err = jwt.Parse(authRequestJWT, func(*jwt.Token) (interface{}, error) {
		return listedPub, nil
	}, jwt.WithValidMethods([]string{"ES256K"}))
	if err != nil {
		return "", gatewayerr.NewAuthFailedError("authRequest signature verification failed", err)
	}

	sess := Session{
		BlockchainID:    payload.BlockchainID,
		AppDomain:       payload.AppDomain,
		Methods:         payload.Methods,
		AppPublicKeys:   payload.AppPublicKeys,
		DeviceID:        payload.DeviceID,
		LegacySingleKey: legacy,
	}

	return Mint(sess, masterKey, DefaultTTL)
}
