// Package credentials resolves what a transport authenticates with: a static
// API key, an ephemeral token minted by the credential bootstrap endpoint,
// or an OAuth bearer token from Google Application Default Credentials.
package credentials

import (
	"context"
	"strings"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

const component = "credentials"

// Placeholder keys that mean "no credential yet".
const (
	PlaceholderDummy   = "dummy-key"
	PlaceholderLoading = "loading"
)

// Credential is a resolved secret.
type Credential struct {
	// Value is the API key or token.
	Value string
	// Bearer marks Value as an OAuth bearer token rather than an API key.
	Bearer bool
}

// Source resolves a credential for one connection attempt.
type Source interface {
	Resolve(ctx context.Context) (Credential, error)
}

// IsUsable reports whether key is a real credential rather than empty or a
// placeholder.
func IsUsable(key string) bool {
	switch strings.TrimSpace(key) {
	case "", PlaceholderDummy, PlaceholderLoading:
		return false
	}
	return true
}

// IsUnset reports whether no key was configured at all. An unset key may be
// fetched from the bootstrap endpoint; a placeholder never is.
func IsUnset(key string) bool {
	return strings.TrimSpace(key) == ""
}

// Static is a fixed API key.
type Static string

// Resolve returns the key, or KindCredentialMissing for a placeholder.
func (s Static) Resolve(context.Context) (Credential, error) {
	if !IsUsable(string(s)) {
		return Credential{}, ErrMissing("resolve")
	}
	return Credential{Value: string(s)}, nil
}

// ErrMissing returns a KindCredentialMissing error for op.
func ErrMissing(op string) error {
	return mserrors.Newf(mserrors.KindCredentialMissing, component, op, "no valid API key configured")
}
