package core

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	IdentityErrorStateMissing            = "IDENTITY_STATE_MISSING"
	IdentityErrorStateMismatch           = "IDENTITY_STATE_MISMATCH"
	IdentityErrorNonceMismatch           = "IDENTITY_NONCE_MISMATCH"
	IdentityErrorInvalidCacheEnvironment = "IDENTITY_INVALID_CACHE_ENVIRONMENT"
	IdentityErrorClientInfoEmpty         = "IDENTITY_CLIENT_INFO_EMPTY"
	IdentityErrorClientInfoDecode        = "IDENTITY_CLIENT_INFO_DECODE"
	IdentityErrorResourceParamsRequired  = "IDENTITY_RESOURCE_PARAMS_REQUIRED"
	IdentityErrorPoPSigning              = "IDENTITY_POP_SIGNING_FAILED"
	IdentityErrorInteractionRequired     = "IDENTITY_INTERACTION_REQUIRED"
	IdentityErrorServer                  = "IDENTITY_SERVER_ERROR"
	IdentityErrorStoreWrite              = "IDENTITY_STORE_WRITE_FAILED"
	IdentityErrorAuth                    = "IDENTITY_AUTH_ERROR"
	IdentityErrorBadInput                = "IDENTITY_BAD_INPUT"
	IdentityErrorInternal                = "IDENTITY_INTERNAL_ERROR"
)

func newStateMissingError() *goerrors.Error {
	return goerrors.New(
		"authorization response state or cached request state is missing",
		goerrors.CategoryAuth,
	).WithTextCode(IdentityErrorStateMissing)
}

func newStateMismatchError(responseState, cachedState string) *goerrors.Error {
	return goerrors.New(
		"authorization response state does not match cached request state",
		goerrors.CategoryAuth,
	).WithTextCode(IdentityErrorStateMismatch).
		WithMetadata(map[string]any{
			"response_state": responseState,
			"cached_state":   cachedState,
		})
}

func newNonceMismatchError() *goerrors.Error {
	return goerrors.New(
		"identity token nonce does not match cached nonce",
		goerrors.CategoryAuth,
	).WithTextCode(IdentityErrorNonceMismatch)
}

func newInvalidCacheEnvironmentError(authority Authority) *goerrors.Error {
	return goerrors.New(
		"authority resolved to an empty cache environment",
		goerrors.CategoryBadInput,
	).WithTextCode(IdentityErrorInvalidCacheEnvironment).
		WithMetadata(map[string]any{
			"authority_type": string(authority.Type),
			"authority_host": authority.Host,
		})
}

func newClientInfoEmptyError(authority Authority) *goerrors.Error {
	return goerrors.New(
		"token response is missing client_info required by a directory-backed authority",
		goerrors.CategoryBadInput,
	).WithTextCode(IdentityErrorClientInfoEmpty).
		WithMetadata(map[string]any{
			"authority_type": string(authority.Type),
		})
}

func newClientInfoDecodeError(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "client_info payload could not be decoded").
		WithTextCode(IdentityErrorClientInfoDecode)
}

func newResourceParamsRequiredError() *goerrors.Error {
	return goerrors.New(
		"proof-of-possession tokens require a resource request method and uri",
		goerrors.CategoryBadInput,
	).WithTextCode(IdentityErrorResourceParamsRequired)
}

func newInteractionRequiredError(errCode, description, subError string) *goerrors.Error {
	return goerrors.New(
		"server requires interactive re-authentication",
		goerrors.CategoryAuth,
	).WithTextCode(IdentityErrorInteractionRequired).
		WithMetadata(map[string]any{
			"error":             errCode,
			"error_description": description,
			"suberror":          subError,
		})
}

func newServerError(resp TokenResponse) *goerrors.Error {
	return goerrors.New(
		formatServerErrorMessage(resp),
		goerrors.CategoryExternal,
	).WithTextCode(IdentityErrorServer).
		WithMetadata(map[string]any{
			"error":             resp.Error,
			"error_description": resp.ErrorDescription,
			"suberror":          resp.SubError,
			"error_codes":       append([]int(nil), resp.ErrorCodes...),
			"correlation_id":    resp.CorrelationID,
			"trace_id":          resp.TraceID,
		})
}

func newStoreWriteError(err error) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, "token cache write failed").
		WithTextCode(IdentityErrorStoreWrite)
}

// formatServerErrorMessage preserves every diagnostic field the server
// returned, in the fixed order support triage expects.
func formatServerErrorMessage(resp TokenResponse) string {
	codes := make([]string, 0, len(resp.ErrorCodes))
	for _, code := range resp.ErrorCodes {
		codes = append(codes, fmt.Sprintf("%d", code))
	}
	return fmt.Sprintf(
		"%s - [%s]: %s - Correlation ID: %s - Trace ID: %s",
		strings.Join(codes, ","),
		resp.Timestamp,
		resp.ErrorDescription,
		resp.CorrelationID,
		resp.TraceID,
	)
}

// IsInteractionRequired reports whether an error signals that the caller must
// re-run an interactive flow rather than retry silently.
func IsInteractionRequired(err error) bool {
	return errorHasTextCode(err, IdentityErrorInteractionRequired)
}

// IsServerError reports whether an error carries a generic token or
// authorization endpoint failure.
func IsServerError(err error) bool {
	return errorHasTextCode(err, IdentityErrorServer)
}

func errorHasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

func identityErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIdentityErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "state"), strings.Contains(msg, "nonce"):
		return ensureIdentityErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryAuth, err.Error()),
		)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return ensureIdentityErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryBadInput, err.Error()),
		)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIdentityErrorEnvelope(mapped)
}

func ensureIdentityErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIdentityTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIdentityTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return IdentityErrorAuth
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return IdentityErrorBadInput
	case goerrors.CategoryExternal:
		return IdentityErrorServer
	default:
		return IdentityErrorInternal
	}
}
