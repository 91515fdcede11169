package core

import (
	"net/url"
	"strings"
)

// responseValidator owns the anti-forgery and server-error checks that gate
// the rest of the pipeline. Validation is pure: no state is written on any
// path.
type responseValidator struct {
	classifier        InteractionRequiredConfig
	clientInfoDecoder ClientInfoDecoder
}

// ValidateAuthorizationCodePayload checks the redirect payload against the
// cached request state. Server-reported errors are classified before the
// state comparison is consumed, but state presence is established first so an
// attacker cannot skip the anti-forgery check by sending an error payload.
func (v responseValidator) ValidateAuthorizationCodePayload(payload AuthorizationCodePayload, cachedState string) error {
	if strings.TrimSpace(payload.State) == "" || strings.TrimSpace(cachedState) == "" {
		return newStateMissingError()
	}

	if payload.Error != "" || payload.ErrorDescription != "" || payload.SubError != "" {
		if v.classifier.RequiresInteraction(payload.Error, payload.SubError) {
			return newInteractionRequiredError(payload.Error, payload.ErrorDescription, payload.SubError)
		}
		return newServerError(TokenResponse{
			Error:            payload.Error,
			ErrorDescription: payload.ErrorDescription,
			SubError:         payload.SubError,
		})
	}

	if decodeURLComponent(payload.State) != decodeURLComponent(cachedState) {
		return newStateMismatchError(payload.State, cachedState)
	}

	if strings.TrimSpace(payload.ClientInfo) != "" && v.clientInfoDecoder != nil {
		if _, err := v.clientInfoDecoder.DecodeClientInfo(payload.ClientInfo); err != nil {
			return newClientInfoDecodeError(err)
		}
	}

	return nil
}

// ValidateTokenResponse inspects a token endpoint response for server errors.
// Success payload structure is the assembler's concern.
func (v responseValidator) ValidateTokenResponse(resp TokenResponse) error {
	if !resp.HasError() {
		return nil
	}
	if v.classifier.RequiresInteraction(resp.Error, resp.SubError) {
		return newInteractionRequiredError(resp.Error, resp.ErrorDescription, resp.SubError)
	}
	return newServerError(resp)
}

// decodeURLComponent best-effort URL-decodes a state value; both sides of the
// comparison go through the same decoding so an undecodable value still
// compares byte-for-byte.
func decodeURLComponent(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}
