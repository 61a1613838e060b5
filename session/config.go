package session

import (
	"fmt"

	"github.com/AltairaLabs/mediasession/audio"
	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/transport"
)

// Config is the caller configuration for a session. It takes effect on the
// next Connect.
type Config struct {
	// Provider is transport.ProviderGemini (default) or transport.ProviderOpenAI.
	Provider string

	// APIKey is the provider key. Empty, "dummy-key" and "loading" count as
	// no credential.
	APIKey string

	Model        string
	Voice        string
	Instructions string

	// Codec is the WebRTC audio codec: "pcmu" (default), "pcma" or "opus".
	Codec string

	// PushToTalk disables server turn detection. Fixed for a session.
	PushToTalk bool

	// VAD tunes server turn detection when PushToTalk is off.
	VAD *transport.VADConfig

	// Endpoint overrides the provider URL.
	Endpoint string

	// EventLog publishes ProtocolEvent for every provider control message.
	EventLog bool
}

// DefaultConfig returns the configuration used by a new Controller.
func DefaultConfig() Config {
	return Config{Provider: transport.ProviderGemini, Codec: audio.CodecPCMU}
}

// ConfigUpdate is a partial Config. Nil fields are left unchanged.
type ConfigUpdate struct {
	Provider     *string
	APIKey       *string
	Model        *string
	Voice        *string
	Instructions *string
	Codec        *string
	PushToTalk   *bool
	VAD          *transport.VADConfig
	Endpoint     *string
	EventLog     *bool
}

// Ptr returns a pointer to v, for building a ConfigUpdate.
func Ptr[T any](v T) *T {
	return &v
}

// Update returns a ConfigUpdate that sets every field of c.
func (c Config) Update() ConfigUpdate {
	u := ConfigUpdate{
		Provider:     Ptr(c.Provider),
		APIKey:       Ptr(c.APIKey),
		Model:        Ptr(c.Model),
		Voice:        Ptr(c.Voice),
		Instructions: Ptr(c.Instructions),
		Codec:        Ptr(c.Codec),
		PushToTalk:   Ptr(c.PushToTalk),
		Endpoint:     Ptr(c.Endpoint),
		EventLog:     Ptr(c.EventLog),
	}
	if c.VAD != nil {
		vad := *c.VAD
		u.VAD = &vad
	}
	return u
}

// apply returns cfg with u applied.
func (u ConfigUpdate) apply(cfg Config) Config {
	set(&cfg.Provider, u.Provider)
	set(&cfg.APIKey, u.APIKey)
	set(&cfg.Model, u.Model)
	set(&cfg.Voice, u.Voice)
	set(&cfg.Instructions, u.Instructions)
	set(&cfg.Codec, u.Codec)
	set(&cfg.PushToTalk, u.PushToTalk)
	set(&cfg.Endpoint, u.Endpoint)
	set(&cfg.EventLog, u.EventLog)
	if u.VAD != nil {
		vad := *u.VAD
		cfg.VAD = &vad
	}
	return cfg
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// validate checks field values.
func (c Config) validate() error {
	switch c.Provider {
	case transport.ProviderGemini, transport.ProviderOpenAI:
	default:
		return mserrors.Newf(mserrors.KindConfigurationConflict, component, "set_config",
			"unsupported provider %q", c.Provider)
	}
	if !audio.ValidCodec(c.Codec) {
		return mserrors.Newf(mserrors.KindConfigurationConflict, component, "set_config",
			"unsupported codec %q", c.Codec)
	}
	return nil
}

// conflicts returns an error naming the first session-immutable field that
// differs between active and next.
func conflicts(active, next Config) error {
	switch {
	case active.Codec != next.Codec:
		return immutable("codec", active.Codec, next.Codec)
	case active.PushToTalk != next.PushToTalk:
		return immutable("push-to-talk", active.PushToTalk, next.PushToTalk)
	}
	return nil
}

func immutable(field string, from, to any) error {
	return mserrors.New(mserrors.KindConfigurationConflict, component, "set_config",
		fmt.Errorf("%s cannot change while connected (%v -> %v)", field, from, to))
}

// transportOptions maps the config onto transport options.
func (c Config) transportOptions() transport.Options {
	var vad *transport.VADConfig
	if c.VAD != nil {
		v := *c.VAD
		vad = &v
	}
	return transport.Options{
		Model:        c.Model,
		Voice:        c.Voice,
		Instructions: c.Instructions,
		Codec:        c.Codec,
		PushToTalk:   c.PushToTalk,
		VAD:          vad,
		Endpoint:     c.Endpoint,
		EventLog:     c.EventLog,
	}
}
