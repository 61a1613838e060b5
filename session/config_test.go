package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AltairaLabs/mediasession/transport"
)

func TestConfigUpdate_Apply(t *testing.T) {
	base := DefaultConfig()
	vad := &transport.VADConfig{Threshold: 0.5, SilenceDurationMs: 700}

	got := ConfigUpdate{Model: Ptr("gemini-2.5-flash"), VAD: vad, EventLog: Ptr(true)}.apply(base)
	assert.Equal(t, "gemini-2.5-flash", got.Model)
	assert.True(t, got.EventLog)
	assert.Equal(t, base.Codec, got.Codec)
	assert.Equal(t, *vad, *got.VAD)

	vad.Threshold = 0.1
	assert.Equal(t, 0.5, got.VAD.Threshold, "the update is copied")
}

func TestConflicts(t *testing.T) {
	active := DefaultConfig()

	next := active
	next.Model = "other"
	next.Provider = transport.ProviderOpenAI
	assert.NoError(t, conflicts(active, next))

	next = active
	next.Codec = "opus"
	assert.ErrorContains(t, conflicts(active, next), "codec")

	next = active
	next.PushToTalk = true
	assert.ErrorContains(t, conflicts(active, next), "push-to-talk")
}

func TestTransportOptions(t *testing.T) {
	cfg := Config{
		Provider:     transport.ProviderOpenAI,
		Model:        "gpt-realtime",
		Voice:        "alloy",
		Instructions: "be brief",
		Codec:        "pcma",
		PushToTalk:   true,
		VAD:          &transport.VADConfig{Threshold: 0.7},
		Endpoint:     "https://example.test/v1/realtime",
		EventLog:     true,
	}
	opts := cfg.transportOptions()
	assert.Equal(t, "gpt-realtime", opts.Model)
	assert.Equal(t, "alloy", opts.Voice)
	assert.Equal(t, "be brief", opts.Instructions)
	assert.Equal(t, "pcma", opts.Codec)
	assert.True(t, opts.PushToTalk)
	assert.True(t, opts.EventLog)
	assert.Equal(t, "https://example.test/v1/realtime", opts.Endpoint)
	assert.NotSame(t, cfg.VAD, opts.VAD)
	assert.Equal(t, 0.7, opts.VAD.Threshold)
}

func TestConfig_UpdateRoundTrip(t *testing.T) {
	cfg := Config{
		Provider:   transport.ProviderOpenAI,
		APIKey:     "sk-test",
		Model:      "gpt-4o-realtime-preview-2025-06-03",
		Codec:      "pcma",
		PushToTalk: true,
		VAD:        &transport.VADConfig{Threshold: 0.7},
	}
	assert.Equal(t, cfg, cfg.Update().apply(DefaultConfig()))

	u := cfg.Update()
	u.VAD.Threshold = 0.2
	assert.Equal(t, 0.7, cfg.VAD.Threshold)
}
