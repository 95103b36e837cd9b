// Package core contains the credential orchestration contracts: the provider
// registry, auth providers and their bindings, user credential tokens, the
// credential store contract, and the manager that resolves per-subject
// sessions. Provider-specific packages depend on core; core never imports them.
package core
