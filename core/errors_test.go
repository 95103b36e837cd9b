package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestIntegrationErrorMapperAssignsStableCodes(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		textCode string
		category goerrors.Category
	}{
		{
			name:     "canceled",
			err:      fmt.Errorf("wrapped: %w", context.Canceled),
			textCode: ErrorCanceled,
			category: goerrors.CategoryOperation,
		},
		{
			name:     "oauth state",
			err:      stderrors.New("oauth state mismatch"),
			textCode: ErrorOAuthStateInvalid,
			category: goerrors.CategoryAuth,
		},
		{
			name:     "bad input",
			err:      stderrors.New("lock key is required"),
			textCode: ErrorBadInput,
			category: goerrors.CategoryBadInput,
		},
		{
			name:     "already rich",
			err:      MissingCredentialsError(ContainerGitHub, "no token"),
			textCode: ErrorMissingCredentials,
			category: goerrors.CategoryAuth,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := integrationErrorMapper(tc.err)
			if mapped.TextCode != tc.textCode {
				t.Fatalf("expected text code %q, got %q", tc.textCode, mapped.TextCode)
			}
			if mapped.Category != tc.category {
				t.Fatalf("expected category %q, got %q", tc.category, mapped.Category)
			}
			if mapped.Code == 0 {
				t.Fatalf("expected http status code on mapped error")
			}
		})
	}
	if integrationErrorMapper(nil) != nil {
		t.Fatalf("nil maps to nil")
	}
}

func TestErrorConstructorsCarryMetadata(t *testing.T) {
	err := TokenEndpointError(ServiceSlack, http.StatusBadRequest, "invalid_grant", "expired")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors type, got %T", err)
	}
	if richErr.Code != http.StatusBadGateway || richErr.Metadata["oauth_error"] != "invalid_grant" || richErr.Metadata["status"] != http.StatusBadRequest {
		t.Fatalf("unexpected token endpoint error %+v", richErr)
	}
	if !IsTokenEndpointError(err) {
		t.Fatalf("expected token endpoint predicate to match")
	}

	missing := MissingCredentialsError(ContainerGmail, "run the oauth flow")
	if !goerrors.As(missing, &richErr) || richErr.Metadata["container_key"] != "gmail" {
		t.Fatalf("expected container key metadata, got %v", missing)
	}

	cause := stderrors.New("disk full")
	stored := StoreError(cause, "set", ServiceGitHub)
	if !IsStoreError(stored) || !stderrors.Is(stored, cause) {
		t.Fatalf("expected store error wrapping the cause, got %v", stored)
	}
	if StoreError(nil, "set", ServiceGitHub) != nil {
		t.Fatalf("nil cause yields nil")
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("session: %w", TypeError("bad shape"))
	if !IsTypeError(wrapped) {
		t.Fatalf("expected wrapped type error to match")
	}
	if IsMissingCredentials(wrapped) || HasTextCode(nil, ErrorTypeMismatch) {
		t.Fatalf("unexpected predicate match")
	}
	if !IsRegistrationConflict(RegistrationConflictError("github", "a", "b")) {
		t.Fatalf("expected registration conflict predicate")
	}
	if !IsAmbiguousConfiguration(AmbiguousConfigurationError("both")) || !IsMissingOAuth2Params(MissingOAuth2ParamsError("x")) {
		t.Fatalf("expected configuration predicates")
	}
}

func TestWrapStoreErrorClassifiesByErrorChain(t *testing.T) {
	deadline := fmt.Errorf("redis get: %w", context.DeadlineExceeded)
	if got := wrapStoreError(deadline, "get", ServiceGitHub); got != deadline {
		t.Fatalf("expected context errors to pass through, got %v", got)
	}
	canceled := fmt.Errorf("query: %w", context.Canceled)
	if got := wrapStoreError(canceled, "set", ServiceGitHub); got != canceled {
		t.Fatalf("expected cancellation to pass through, got %v", got)
	}

	wordy := stderrors.New("row context column is malformed")
	got := wrapStoreError(wordy, "get", ServiceGitHub)
	if !IsStoreError(got) {
		t.Fatalf("expected a store error for a message mentioning context, got %v", got)
	}
	if !stderrors.Is(got, wordy) {
		t.Fatalf("expected the store error to wrap its cause")
	}
}
