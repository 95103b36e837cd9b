// Package providers holds the shared machinery of the builtin auth providers:
// the OAuth2 flow, env backed settings loaders and the token bindings. Each
// service lives in its own subpackage.
package providers
