package core

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	CredentialPayloadFormatJSONV1 = "stored_credential_json"
	CredentialPayloadVersionV1    = 1
)

// CredentialCodec turns stored credential records into bytes for backends
// that persist opaque payloads.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(data StoredData) ([]byte, error)
	Decode(payload []byte) (StoredData, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	Version int            `json:"v"`
	Data    map[string]any `json:"data"`
}

func (JSONCredentialCodec) Encode(data StoredData) ([]byte, error) {
	payload := jsonCredentialPayload{
		Version: CredentialPayloadVersionV1,
		Data:    copyAnyMap(data),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (StoredData, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("core: decode credential payload: %w", err)
	}
	if decoded.Version != CredentialPayloadVersionV1 {
		return nil, fmt.Errorf("core: unsupported credential payload version %d", decoded.Version)
	}
	if decoded.Data == nil {
		return StoredData{}, nil
	}
	return StoredData(decoded.Data), nil
}

// SealCredentials encodes data with codec and, when secrets is set,
// encrypts the result.
func SealCredentials(ctx context.Context, codec CredentialCodec, secrets SecretProvider, data StoredData) ([]byte, error) {
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	payload, err := codec.Encode(data)
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return payload, nil
	}
	return secrets.Encrypt(ctx, payload)
}

// OpenCredentials reverses SealCredentials.
func OpenCredentials(ctx context.Context, codec CredentialCodec, secrets SecretProvider, payload []byte) (StoredData, error) {
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	if secrets != nil {
		plaintext, err := secrets.Decrypt(ctx, payload)
		if err != nil {
			return nil, err
		}
		payload = plaintext
	}
	return codec.Decode(payload)
}
