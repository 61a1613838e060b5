package credentials

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// GoogleScopes are requested for Gemini Live bearer tokens.
var GoogleScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/generative-language",
}

// TokenSource yields OAuth bearer credentials. Tokens are cached until they
// are close to expiry.
type TokenSource struct {
	ts oauth2.TokenSource
}

// NewTokenSource wraps ts with token reuse.
func NewTokenSource(ts oauth2.TokenSource) *TokenSource {
	return &TokenSource{ts: oauth2.ReuseTokenSource(nil, ts)}
}

// NewGoogleTokenSource uses Application Default Credentials (gcloud auth,
// service account keys, workload identity).
func NewGoogleTokenSource(ctx context.Context) (*TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, GoogleScopes...)
	if err != nil {
		return nil, mserrors.New(mserrors.KindCredentialMissing, component, "google_token_source",
			fmt.Errorf("failed to create token source: %w", err))
	}
	return NewTokenSource(ts), nil
}

// Resolve returns the current access token.
func (s *TokenSource) Resolve(context.Context) (Credential, error) {
	tok, err := s.ts.Token()
	if err != nil {
		return Credential{}, mserrors.New(mserrors.KindHandshakeFailed, component, "token", err)
	}
	if tok.AccessToken == "" {
		return Credential{}, ErrMissing("token")
	}
	return Credential{Value: tok.AccessToken, Bearer: true}, nil
}
