// Package config loads SessionConfig manifests: K8s-style YAML documents
// that describe a media session, its devices and its observability wiring.
package config

import (
	"os"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/session"
	"github.com/AltairaLabs/mediasession/transport"
)

const (
	// APIVersion is the manifest API version.
	APIVersion = "mediasession.altairalabs.ai/v1alpha1"

	// KindSessionConfig is the only supported manifest kind.
	KindSessionConfig = "SessionConfig"
)

// Device selectors.
const (
	DeviceDefault = "default"
	DeviceNone    = "none"
	DeviceNull    = "null"
)

// Observability defaults.
const (
	DefaultMetricsAddr = ":9464"
	DefaultMetricsPath = "/metrics"
	DefaultServiceName = "mediasession"
	DefaultSampleRatio = 1.0
)

// SessionConfig is a SessionConfig manifest.
type SessionConfig struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   metav1.ObjectMeta `yaml:"metadata,omitempty"`
	Spec       Spec              `yaml:"spec"`
}

// Spec is the body of a SessionConfig.
type Spec struct {
	// MinClientVersion is a semver constraint the running build must satisfy.
	MinClientVersion string        `yaml:"minClientVersion,omitempty"`
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout,omitempty"`

	Session     SessionSpec     `yaml:"session,omitempty"`
	Credentials CredentialsSpec `yaml:"credentials,omitempty"`
	Audio       AudioSpec       `yaml:"audio,omitempty"`
	Video       VideoSpec       `yaml:"video,omitempty"`
	Logging     *LoggingSpec    `yaml:"logging,omitempty"`
	Metrics     MetricsSpec     `yaml:"metrics,omitempty"`
	Tracing     TracingSpec     `yaml:"tracing,omitempty"`
}

// SessionSpec mirrors session.Config.
type SessionSpec struct {
	Provider     string   `yaml:"provider,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Voice        string   `yaml:"voice,omitempty"`
	Instructions string   `yaml:"instructions,omitempty"`
	Codec        string   `yaml:"codec,omitempty"`
	PushToTalk   bool     `yaml:"pushToTalk,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	EventLog     bool     `yaml:"eventLog,omitempty"`
	VAD          *VADSpec `yaml:"vad,omitempty"`
}

// VADSpec tunes server turn detection.
type VADSpec struct {
	Threshold         float64 `yaml:"threshold,omitempty"`
	SilenceDurationMs int     `yaml:"silenceDurationMs,omitempty"`
	PrefixPaddingMs   int     `yaml:"prefixPaddingMs,omitempty"`
}

// CredentialsSpec says where the provider credential comes from. APIKeyEnv
// wins over APIKey; BootstrapURL and GoogleADC are consulted at connect time.
type CredentialsSpec struct {
	APIKey       string `yaml:"apiKey,omitempty"`
	APIKeyEnv    string `yaml:"apiKeyEnv,omitempty"`
	BootstrapURL string `yaml:"bootstrapURL,omitempty"`
	GoogleADC    bool   `yaml:"googleADC,omitempty"`
}

// AudioSpec selects the microphone ("default" or "none") and the speaker
// ("default" or "null").
type AudioSpec struct {
	Input  string `yaml:"input,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// VideoSpec configures the ffmpeg webcam.
type VideoSpec struct {
	Enabled     bool          `yaml:"enabled,omitempty"`
	Interval    time.Duration `yaml:"interval,omitempty"`
	DeviceIndex int           `yaml:"deviceIndex,omitempty"`
	Width       int           `yaml:"width,omitempty"`
	Height      int           `yaml:"height,omitempty"`
	FPS         int           `yaml:"fps,omitempty"`
}

// LoggingSpec is the manifest form of logger.LoggingConfigSpec.
type LoggingSpec struct {
	DefaultLevel string              `yaml:"defaultLevel,omitempty"`
	Format       string              `yaml:"format,omitempty"`
	CommonFields map[string]string   `yaml:"commonFields,omitempty"`
	Modules      []ModuleLoggingSpec `yaml:"modules,omitempty"`
}

// ModuleLoggingSpec sets the level of one logger component.
type ModuleLoggingSpec struct {
	Name  string `yaml:"name"`
	Level string `yaml:"level"`
}

// MetricsSpec configures the Prometheus exporter.
type MetricsSpec struct {
	Enabled    bool   `yaml:"enabled,omitempty"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
	Path       string `yaml:"path,omitempty"`
}

// TracingSpec configures the OTLP trace exporter.
type TracingSpec struct {
	Enabled     bool    `yaml:"enabled,omitempty"`
	Endpoint    string  `yaml:"endpoint,omitempty"`
	Insecure    bool    `yaml:"insecure,omitempty"`
	ServiceName string  `yaml:"serviceName,omitempty"`
	SampleRatio float64 `yaml:"sampleRatio,omitempty"`
}

// ApplyDefaults fills unset fields.
func (s *Spec) ApplyDefaults() {
	def := session.DefaultConfig()
	if s.Session.Provider == "" {
		s.Session.Provider = def.Provider
	}
	if s.Session.Codec == "" {
		s.Session.Codec = def.Codec
	}
	if s.HandshakeTimeout <= 0 {
		s.HandshakeTimeout = session.DefaultHandshakeTimeout
	}
	if s.Audio.Input == "" {
		s.Audio.Input = DeviceDefault
	}
	if s.Audio.Output == "" {
		s.Audio.Output = DeviceDefault
	}
	if s.Metrics.ListenAddr == "" {
		s.Metrics.ListenAddr = DefaultMetricsAddr
	}
	if s.Metrics.Path == "" {
		s.Metrics.Path = DefaultMetricsPath
	}
	if s.Tracing.ServiceName == "" {
		s.Tracing.ServiceName = DefaultServiceName
	}
	if s.Tracing.SampleRatio == 0 {
		s.Tracing.SampleRatio = DefaultSampleRatio
	}
}

// ResolveAPIKey returns the configured key, reading APIKeyEnv when set.
func (c CredentialsSpec) ResolveAPIKey() string {
	if c.APIKeyEnv != "" {
		if v := os.Getenv(c.APIKeyEnv); v != "" {
			return v
		}
	}
	return c.APIKey
}

// SessionConfig converts the spec to a session.Config.
func (s *Spec) SessionConfig() session.Config {
	cfg := session.Config{
		Provider:     s.Session.Provider,
		APIKey:       s.Credentials.ResolveAPIKey(),
		Model:        s.Session.Model,
		Voice:        s.Session.Voice,
		Instructions: s.Session.Instructions,
		Codec:        s.Session.Codec,
		PushToTalk:   s.Session.PushToTalk,
		Endpoint:     s.Session.Endpoint,
		EventLog:     s.Session.EventLog,
	}
	if v := s.Session.VAD; v != nil {
		cfg.VAD = &transport.VADConfig{
			Threshold:         v.Threshold,
			SilenceDurationMs: v.SilenceDurationMs,
			PrefixPaddingMs:   v.PrefixPaddingMs,
		}
	}
	return cfg
}

// LoggerConfig converts the logging section for logger.Configure. It returns
// nil when the manifest has none.
func (s *Spec) LoggerConfig() *logger.LoggingConfigSpec {
	if s.Logging == nil {
		return nil
	}
	out := &logger.LoggingConfigSpec{
		DefaultLevel: s.Logging.DefaultLevel,
		Format:       s.Logging.Format,
		CommonFields: s.Logging.CommonFields,
	}
	for _, m := range s.Logging.Modules {
		out.Modules = append(out.Modules, logger.ModuleLoggingSpec{Name: m.Name, Level: m.Level})
	}
	return out
}
