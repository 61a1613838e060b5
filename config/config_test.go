package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/transport"
)

const fullManifest = `apiVersion: mediasession.altairalabs.ai/v1alpha1
kind: SessionConfig
metadata:
  name: kiosk
  labels:
    env: demo
spec:
  minClientVersion: ">= 0.1.0"
  handshakeTimeout: 5s
  session:
    provider: openai
    model: gpt-4o-realtime-preview-2025-06-03
    voice: alloy
    instructions: Be brief.
    codec: pcma
    pushToTalk: true
    eventLog: true
    vad:
      threshold: 0.8
      silenceDurationMs: 400
      prefixPaddingMs: 200
  credentials:
    apiKey: sk-inline
    bootstrapURL: https://example.test
  audio:
    input: none
    output: "null"
  video:
    enabled: true
    interval: 1500ms
    width: 320
    height: 240
  logging:
    defaultLevel: debug
    format: json
    modules:
      - name: transport
        level: warn
  metrics:
    enabled: true
  tracing:
    enabled: true
    endpoint: localhost:4318
    insecure: true
`

func TestParse_FullManifest(t *testing.T) {
	cfg, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	assert.Equal(t, APIVersion, cfg.APIVersion)
	assert.Equal(t, KindSessionConfig, cfg.Kind)
	assert.Equal(t, "kiosk", cfg.Metadata.Name)
	assert.Equal(t, "demo", cfg.Metadata.Labels["env"])

	spec := cfg.Spec
	assert.Equal(t, 5*time.Second, spec.HandshakeTimeout)
	assert.Equal(t, 1500*time.Millisecond, spec.Video.Interval)
	assert.Equal(t, DeviceNone, spec.Audio.Input)
	assert.Equal(t, DeviceNull, spec.Audio.Output)
	assert.Equal(t, DefaultMetricsAddr, spec.Metrics.ListenAddr)
	assert.Equal(t, DefaultMetricsPath, spec.Metrics.Path)
	assert.Equal(t, DefaultServiceName, spec.Tracing.ServiceName)

	sc := spec.SessionConfig()
	assert.Equal(t, transport.ProviderOpenAI, sc.Provider)
	assert.Equal(t, "sk-inline", sc.APIKey)
	assert.Equal(t, "pcma", sc.Codec)
	assert.True(t, sc.PushToTalk)
	assert.True(t, sc.EventLog)
	require.NotNil(t, sc.VAD)
	assert.Equal(t, transport.VADConfig{Threshold: 0.8, SilenceDurationMs: 400, PrefixPaddingMs: 200}, *sc.VAD)

	lc := spec.LoggerConfig()
	require.NotNil(t, lc)
	assert.Equal(t, "json", lc.Format)
	require.Len(t, lc.Modules, 1)
	assert.Equal(t, "transport", lc.Modules[0].Name)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\nspec: {}\n"))
	require.NoError(t, err)

	sc := cfg.Spec.SessionConfig()
	assert.Equal(t, transport.ProviderGemini, sc.Provider)
	assert.Equal(t, "pcmu", sc.Codec)
	assert.Nil(t, sc.VAD)
	assert.Equal(t, 10*time.Second, cfg.Spec.HandshakeTimeout)
	assert.Equal(t, DeviceDefault, cfg.Spec.Audio.Input)
	assert.Nil(t, cfg.Spec.LoggerConfig())
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"wrong kind", "apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: Arena\nspec: {}\n"},
		{"wrong version", "apiVersion: v2\nkind: SessionConfig\nspec: {}\n"},
		{"missing spec", "apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\n"},
		{"unknown provider", "apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\nspec:\n  session:\n    provider: azure\n"},
		{"unknown codec", "apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\nspec:\n  session:\n    codec: g722\n"},
		{"bad duration", "apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\nspec:\n  handshakeTimeout: soon\n"},
		{"unknown field", "apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\nspec:\n  retries: 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			require.Error(t, err)
			assert.True(t, mserrors.IsKind(err, mserrors.KindConfigurationConflict))
			assert.Contains(t, err.Error(), "does not match schema")
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("spec: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidateWithSchema_ReportsFields(t *testing.T) {
	result, err := ValidateWithSchema([]byte("apiVersion: mediasession.altairalabs.ai/v1alpha1\nkind: SessionConfig\nspec:\n  video:\n    fps: 0\n"))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "spec.video.fps", result.Errors[0].Field)
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("MEDIASESSION_TEST_KEY", "from-env")

	assert.Equal(t, "from-env", CredentialsSpec{APIKey: "inline", APIKeyEnv: "MEDIASESSION_TEST_KEY"}.ResolveAPIKey())
	assert.Equal(t, "inline", CredentialsSpec{APIKey: "inline", APIKeyEnv: "MEDIASESSION_UNSET_KEY"}.ResolveAPIKey())
	assert.Empty(t, CredentialsSpec{}.ResolveAPIKey())
}

func TestCheckClientVersion(t *testing.T) {
	assert.NoError(t, CheckClientVersion(""))
	// Test binaries report the dev version, which satisfies every constraint.
	assert.NoError(t, CheckClientVersion(">= 99.0.0"))

	err := CheckClientVersion("not a constraint")
	require.Error(t, err)
	assert.True(t, mserrors.IsKind(err, mserrors.KindConfigurationConflict))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullManifest), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "kiosk", cfg.Metadata.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSchema_Embedded(t *testing.T) {
	assert.Contains(t, Schema(), `"const": "SessionConfig"`)
}
