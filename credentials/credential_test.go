package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

func TestIsUsable(t *testing.T) {
	for _, key := range []string{"", "  ", "dummy-key", "loading"} {
		assert.False(t, IsUsable(key), "%q", key)
	}
	assert.True(t, IsUsable("AIzaSyExample"))
}

func TestStatic_Resolve(t *testing.T) {
	cred, err := Static("sk-test").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Credential{Value: "sk-test"}, cred)

	_, err = Static("loading").Resolve(context.Background())
	assert.True(t, mserrors.IsKind(err, mserrors.KindCredentialMissing))
}

func newBootstrapServer(t *testing.T, handler http.HandlerFunc) (*BootstrapClient, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewBootstrapClient(srv.URL+"/", WithBootstrapHTTPClient(srv.Client())), &hits
}

func TestBootstrapClient_FetchAPIKey(t *testing.T) {
	client, hits := newBootstrapServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, APIKeyPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"apiKey":"AIzaSyExample"}`))
	})

	key, err := client.FetchAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AIzaSyExample", key)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBootstrapClient_FetchEphemeralKey(t *testing.T) {
	client, _ := newBootstrapServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, EphemeralKeyPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sk-real", body["apiKey"])

		_, _ = w.Write([]byte(`{"client_secret":{"value":"ek_123","expires_at":1700000000}}`))
	})

	token, err := client.FetchEphemeralKey(context.Background(), "sk-real")
	require.NoError(t, err)
	assert.Equal(t, "ek_123", token)
}

func TestBootstrapClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   int
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, code: 500},
		{name: "forbidden", status: http.StatusForbidden, body: ``, code: 403},
		{name: "missing field", status: http.StatusOK, body: `{"client_secret":{}}`},
		{name: "missing object", status: http.StatusOK, body: `{}`},
		{name: "malformed", status: http.StatusOK, body: `not json`, code: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, hits := newBootstrapServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.FetchEphemeralKey(context.Background(), "sk-real")
			require.Error(t, err)
			assert.True(t, mserrors.IsKind(err, mserrors.KindHandshakeFailed))
			assert.Equal(t, int32(1), hits.Load(), "no retry")

			var e *mserrors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.code, e.StatusCode)
		})
	}
}

func TestBootstrapClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewBootstrapClient(url).FetchAPIKey(context.Background())
	require.Error(t, err)
	assert.True(t, mserrors.IsKind(err, mserrors.KindHandshakeFailed))
}

func TestIsUnset(t *testing.T) {
	assert.True(t, IsUnset(""))
	assert.True(t, IsUnset("  "))
	assert.False(t, IsUnset(PlaceholderDummy))
	assert.False(t, IsUnset("sk-real"))
}

func TestEphemeralSource_PlaceholderSkipsNetwork(t *testing.T) {
	client, hits := newBootstrapServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"client_secret":{"value":"ek_123"}}`))
	})

	for _, key := range []string{"", "dummy-key", "loading"} {
		_, err := EphemeralSource{Client: client, Key: Static(key)}.Resolve(context.Background())
		assert.True(t, mserrors.IsKind(err, mserrors.KindCredentialMissing))
	}
	_, err := EphemeralSource{Client: client}.Resolve(context.Background())
	assert.True(t, mserrors.IsKind(err, mserrors.KindCredentialMissing))
	assert.Zero(t, hits.Load())

	cred, err := EphemeralSource{Client: client, Key: Static("sk-real")}.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ek_123", cred.Value)
	assert.False(t, cred.Bearer)
}

func TestEphemeralSource_FetchesKeyFromEndpoint(t *testing.T) {
	gotKey := make(chan string, 1)
	client, hits := newBootstrapServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case APIKeyPath:
			_, _ = w.Write([]byte(`{"apiKey":"sk-fetched"}`))
		case EphemeralKeyPath:
			var body struct {
				APIKey string `json:"apiKey"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotKey <- body.APIKey
			_, _ = w.Write([]byte(`{"client_secret":{"value":"ek_456"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	src := EphemeralSource{Client: client, Key: EndpointSource{Client: client}}
	cred, err := src.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ek_456", cred.Value)
	assert.Equal(t, "sk-fetched", <-gotKey)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEndpointSource_Resolve(t *testing.T) {
	client, _ := newBootstrapServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"apiKey":"dummy-key"}`))
	})
	_, err := EndpointSource{Client: client}.Resolve(context.Background())
	assert.True(t, mserrors.IsKind(err, mserrors.KindCredentialMissing))
}

type countingTokenSource struct {
	calls atomic.Int32
	err   error
}

func (s *countingTokenSource) Token() (*oauth2.Token, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &oauth2.Token{AccessToken: "ya29.token", Expiry: time.Now().Add(time.Hour)}, nil
}

func TestTokenSource_CachesValidTokens(t *testing.T) {
	inner := &countingTokenSource{}
	ts := NewTokenSource(inner)

	for i := 0; i < 3; i++ {
		cred, err := ts.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Credential{Value: "ya29.token", Bearer: true}, cred)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestTokenSource_Error(t *testing.T) {
	ts := NewTokenSource(&countingTokenSource{err: errors.New("refresh failed")})
	_, err := ts.Resolve(context.Background())
	assert.True(t, mserrors.IsKind(err, mserrors.KindHandshakeFailed))
}
