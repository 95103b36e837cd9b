package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorRegistrationConflict   = "INTEGRATIONS_REGISTRATION_CONFLICT"
	ErrorUnknownKey             = "INTEGRATIONS_UNKNOWN_KEY"
	ErrorAmbiguousConfiguration = "INTEGRATIONS_AMBIGUOUS_CONFIGURATION"
	ErrorTypeMismatch           = "INTEGRATIONS_TYPE_ERROR"
	ErrorMissingCredentials     = "INTEGRATIONS_MISSING_CREDENTIALS"
	ErrorMissingOAuth2Params    = "INTEGRATIONS_MISSING_OAUTH2_PARAMS"
	ErrorTokenEndpoint          = "INTEGRATIONS_TOKEN_ENDPOINT"
	ErrorStore                  = "INTEGRATIONS_STORE"
	ErrorOAuthStateInvalid      = "INTEGRATIONS_OAUTH_STATE_INVALID"
	ErrorUnsupportedFlow        = "INTEGRATIONS_UNSUPPORTED_FLOW"
	ErrorBadInput               = "INTEGRATIONS_BAD_INPUT"
	ErrorCanceled               = "INTEGRATIONS_CANCELED"
	ErrorRefreshLocked          = "INTEGRATIONS_REFRESH_LOCKED"
	ErrorInternal               = "INTEGRATIONS_INTERNAL_ERROR"
)

// RegistrationConflictError reports two different implementations claiming
// the same service key.
func RegistrationConflictError(key ServiceKey, existing, candidate string) error {
	return newIntegrationError(
		fmt.Sprintf("service key %q is already registered to %s; cannot register %s", key, existing, candidate),
		goerrors.CategoryConflict,
		ErrorRegistrationConflict,
	).WithMetadata(map[string]any{"service_key": string(key)})
}

// UnknownKeyError reports a lookup of an unregistered key. kind names what
// was looked up ("provider", "provider type", "settings loader").
func UnknownKeyError(kind string, key string) error {
	return newIntegrationError(
		fmt.Sprintf("%s %q is not registered", kind, key),
		goerrors.CategoryNotFound,
		ErrorUnknownKey,
	).WithMetadata(map[string]any{"key": key, "kind": kind})
}

func AmbiguousConfigurationError(message string) error {
	return newIntegrationError(message, goerrors.CategoryBadInput, ErrorAmbiguousConfiguration)
}

func TypeError(message string) error {
	return newIntegrationError(message, goerrors.CategoryValidation, ErrorTypeMismatch)
}

// MissingCredentialsError names the container key that could not be resolved.
func MissingCredentialsError(key ContainerKey, reason string) error {
	reason = strings.TrimSpace(reason)
	message := fmt.Sprintf("missing credentials for %q", key)
	if reason != "" {
		message += ": " + reason
	}
	return newIntegrationError(message, goerrors.CategoryAuth, ErrorMissingCredentials).
		WithMetadata(map[string]any{"container_key": string(key)})
}

func MissingOAuth2ParamsError(message string) error {
	return newIntegrationError(message, goerrors.CategoryBadInput, ErrorMissingOAuth2Params)
}

// TokenEndpointError reports a non-success answer from an authorization
// server token endpoint.
func TokenEndpointError(service ServiceKey, status int, code string, description string) error {
	message := fmt.Sprintf("%s token endpoint request failed", service)
	if status > 0 {
		message = fmt.Sprintf("%s: status %d", message, status)
	}
	if code = strings.TrimSpace(code); code != "" {
		message += ": " + code
	}
	if description = strings.TrimSpace(description); description != "" {
		message += ": " + description
	}
	metadata := map[string]any{"service_key": string(service)}
	if status > 0 {
		metadata["status"] = status
	}
	if code != "" {
		metadata["oauth_error"] = code
	}
	return ensureIntegrationErrorEnvelope(
		goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(ErrorTokenEndpoint).
			WithMetadata(metadata),
	)
}

// StoreError wraps a failure of a credential store backend.
func StoreError(err error, operation string, service ServiceKey) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf("credential store %s failed", operation)).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorStore).
		WithMetadata(map[string]any{"operation": operation, "service_key": string(service)})
}

// RefreshLockedError reports a refresh lock held by another caller.
func RefreshLockedError(key string) error {
	return newIntegrationError(fmt.Sprintf("refresh lock already held for %q", key), goerrors.CategoryConflict, ErrorRefreshLocked)
}

func BadInputError(message string) error {
	return newIntegrationError(message, goerrors.CategoryBadInput, ErrorBadInput)
}

// HasTextCode reports whether err, or any error it wraps, carries code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func IsMissingCredentials(err error) bool { return HasTextCode(err, ErrorMissingCredentials) }

func IsRegistrationConflict(err error) bool { return HasTextCode(err, ErrorRegistrationConflict) }

func IsUnknownKey(err error) bool { return HasTextCode(err, ErrorUnknownKey) }

func IsAmbiguousConfiguration(err error) bool { return HasTextCode(err, ErrorAmbiguousConfiguration) }

func IsTypeError(err error) bool { return HasTextCode(err, ErrorTypeMismatch) }

func IsMissingOAuth2Params(err error) bool { return HasTextCode(err, ErrorMissingOAuth2Params) }

func IsTokenEndpointError(err error) bool { return HasTextCode(err, ErrorTokenEndpoint) }

func IsStoreError(err error) bool { return HasTextCode(err, ErrorStore) }

func IsRefreshLocked(err error) bool { return HasTextCode(err, ErrorRefreshLocked) }

func integrationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureIntegrationErrorEnvelope(richErr)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ensureIntegrationErrorEnvelope(
			goerrors.Wrap(err, goerrors.CategoryOperation, "operation canceled").
				WithTextCode(ErrorCanceled),
		)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "oauth state"):
		return newIntegrationError(err.Error(), goerrors.CategoryAuth, ErrorOAuthStateInvalid)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newIntegrationError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureIntegrationErrorEnvelope(mapped)
}

func newIntegrationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureIntegrationErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureIntegrationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = integrationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultIntegrationTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultIntegrationTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return ErrorBadInput
	case goerrors.CategoryValidation:
		return ErrorTypeMismatch
	case goerrors.CategoryNotFound:
		return ErrorUnknownKey
	case goerrors.CategoryAuth:
		return ErrorMissingCredentials
	case goerrors.CategoryConflict:
		return ErrorRegistrationConflict
	case goerrors.CategoryExternal:
		return ErrorTokenEndpoint
	default:
		return ErrorInternal
	}
}

func integrationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
