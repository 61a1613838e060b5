package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/logger"
)

// Bootstrap endpoint paths.
const (
	APIKeyPath       = "/api/ai"
	EphemeralKeyPath = "/api/openai-session"
)

const (
	defaultBootstrapTimeout = 10 * time.Second
	maxBootstrapBody        = 1 << 20
)

// BootstrapClient talks to the credential bootstrap endpoint that hands out
// the provider API key and mints OpenAI ephemeral session keys. Failures are
// returned as KindHandshakeFailed; nothing is retried.
type BootstrapClient struct {
	baseURL string
	client  *http.Client
}

// BootstrapOption configures a BootstrapClient.
type BootstrapOption func(*BootstrapClient)

// WithBootstrapHTTPClient replaces the default instrumented HTTP client.
func WithBootstrapHTTPClient(c *http.Client) BootstrapOption {
	return func(b *BootstrapClient) {
		b.client = c
	}
}

// NewBootstrapClient creates a client for the endpoint at baseURL.
func NewBootstrapClient(baseURL string, opts ...BootstrapOption) *BootstrapClient {
	b := &BootstrapClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   defaultBootstrapTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type apiKeyResponse struct {
	APIKey string `json:"apiKey"`
}

type ephemeralKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type ephemeralKeyResponse struct {
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at,omitempty"`
	} `json:"client_secret"`
}

// FetchAPIKey retrieves the provider API key.
func (b *BootstrapClient) FetchAPIKey(ctx context.Context) (string, error) {
	var out apiKeyResponse
	if err := b.do(ctx, http.MethodGet, APIKeyPath, nil, &out, "fetch_api_key"); err != nil {
		return "", err
	}
	if out.APIKey == "" {
		return "", mserrors.Newf(mserrors.KindHandshakeFailed, component, "fetch_api_key",
			"response missing apiKey")
	}
	return out.APIKey, nil
}

// FetchEphemeralKey exchanges apiKey for a short-lived OpenAI session key.
func (b *BootstrapClient) FetchEphemeralKey(ctx context.Context, apiKey string) (string, error) {
	var out ephemeralKeyResponse
	if err := b.do(ctx, http.MethodPost, EphemeralKeyPath, ephemeralKeyRequest{APIKey: apiKey}, &out,
		"fetch_ephemeral_key"); err != nil {
		return "", err
	}
	if out.ClientSecret == nil || out.ClientSecret.Value == "" {
		return "", mserrors.Newf(mserrors.KindHandshakeFailed, component, "fetch_ephemeral_key",
			"response missing client_secret.value")
	}
	return out.ClientSecret.Value, nil
}

func (b *BootstrapClient) do(ctx context.Context, method, path string, in, out any, op string) error {
	u, err := url.JoinPath(b.baseURL, path)
	if err != nil {
		return mserrors.New(mserrors.KindHandshakeFailed, component, op, err)
	}

	var body io.Reader
	headers := map[string]string{"Accept": "application/json"}
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return mserrors.New(mserrors.KindHandshakeFailed, component, op, err)
		}
		body = bytes.NewReader(data)
		headers["Content-Type"] = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return mserrors.New(mserrors.KindHandshakeFailed, component, op, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.APIRequest(component, method, u, headers, in)
	resp, err := b.client.Do(req)
	if err != nil {
		logger.APIResponse(component, 0, "", err)
		return mserrors.New(mserrors.KindHandshakeFailed, component, op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBootstrapBody))
	if err != nil {
		return mserrors.New(mserrors.KindHandshakeFailed, component, op, err).WithStatusCode(resp.StatusCode)
	}
	logger.APIResponse(component, resp.StatusCode, string(data), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mserrors.Newf(mserrors.KindHandshakeFailed, component, op,
			"bootstrap endpoint returned %s", resp.Status).WithStatusCode(resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return mserrors.New(mserrors.KindHandshakeFailed, component, op,
			fmt.Errorf("failed to decode response: %w", err)).WithStatusCode(resp.StatusCode)
	}
	return nil
}

// EphemeralSource mints a fresh OpenAI ephemeral key per Resolve. Key
// supplies the API key that is exchanged for the token.
type EphemeralSource struct {
	Client *BootstrapClient
	Key    Source
}

// Resolve resolves the API key, then asks the endpoint for a token. A Static
// placeholder key fails before any request is made.
func (s EphemeralSource) Resolve(ctx context.Context) (Credential, error) {
	if s.Key == nil {
		return Credential{}, ErrMissing("resolve")
	}
	key, err := s.Key.Resolve(ctx)
	if err != nil {
		return Credential{}, err
	}
	token, err := s.Client.FetchEphemeralKey(ctx, key.Value)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Value: token}, nil
}

// EndpointSource fetches the API key from the endpoint per Resolve.
type EndpointSource struct {
	Client *BootstrapClient
}

// Resolve fetches the key. A placeholder key from the endpoint is treated as
// missing.
func (s EndpointSource) Resolve(ctx context.Context) (Credential, error) {
	key, err := s.Client.FetchAPIKey(ctx)
	if err != nil {
		return Credential{}, err
	}
	if !IsUsable(key) {
		return Credential{}, ErrMissing("resolve")
	}
	return Credential{Value: key}, nil
}
