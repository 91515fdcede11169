package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// defaultClientInfoDecoder decodes the base64url JSON client_info payload.
// It can be replaced through WithClientInfoDecoder when a caller needs a
// different crypto provider.
type defaultClientInfoDecoder struct{}

func (defaultClientInfoDecoder) DecodeClientInfo(raw string) (ClientInfo, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClientInfo{}, fmt.Errorf("core: client_info payload is empty")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		// Some issuers emit standard-alphabet base64.
		decoded, err = base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return ClientInfo{}, fmt.Errorf("core: client_info is not valid base64: %w", err)
		}
	}

	var info ClientInfo
	if err := json.Unmarshal(decoded, &info); err != nil {
		return ClientInfo{}, fmt.Errorf("core: client_info is not valid json: %w", err)
	}
	return info, nil
}

var _ ClientInfoDecoder = defaultClientInfoDecoder{}
