// Package transport defines the contract shared by the realtime provider
// transports and the outbound queue they use to keep Send non-blocking.
//
// Two variants exist: a discrete-message WebSocket transport (transport/gemini)
// and a continuous-media WebRTC transport (transport/openai). Both publish
// inbound events to exactly one events.Publisher.
package transport

import (
	"context"
	"errors"

	"github.com/AltairaLabs/mediasession/events"
	"github.com/AltairaLabs/mediasession/media"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Transport kinds, used for logging and metrics labels.
const (
	KindWebSocket = "websocket"
	KindWebRTC    = "webrtc"
)

// Errors returned by transports.
var (
	ErrNotConnected  = errors.New("transport is not connected")
	ErrClosed        = errors.New("transport is closed")
	ErrNotPushToTalk = errors.New("push-to-talk is not enabled for this session")
)

// Transport carries media to a provider and publishes what comes back.
type Transport interface {
	// Connect performs the handshake. It returns once the provider has
	// confirmed the session or the handshake failed.
	Connect(ctx context.Context) error

	// Send queues a chunk without blocking. Chunks are dropped and logged
	// when the transport is not connected or the queue is full.
	Send(chunk media.Chunk)

	// SendText sends a user text turn.
	SendText(text string) error

	// Interrupt cancels the in-flight model response, where supported.
	Interrupt() error

	// Close releases the connection. It is safe before Connect and idempotent.
	Close() error

	// Connected reports whether the handshake completed and Close has not
	// been called.
	Connected() bool

	// Provider returns the provider name.
	Provider() string

	// Kind returns the transport kind.
	Kind() string
}

// TurnController is implemented by transports that support push-to-talk.
type TurnController interface {
	// StartTurn marks the start of user speech.
	StartTurn() error
	// EndTurn marks the end of user speech and requests a response.
	EndTurn() error
}

// VADConfig tunes server-side voice activity detection.
type VADConfig struct {
	Threshold         float64
	SilenceDurationMs int
	PrefixPaddingMs   int
}

// Options are the per-session parameters shared by all transports.
type Options struct {
	// SessionID stamps every published event.
	SessionID string

	// Credential is the provider API key or ephemeral token.
	Credential string

	// BearerAuth sends Credential as an OAuth bearer token instead of an
	// API key header, where the provider distinguishes the two.
	BearerAuth bool

	// Model, Voice and Instructions configure the provider session.
	// Empty values use provider defaults.
	Model        string
	Voice        string
	Instructions string

	// Codec selects the WebRTC audio codec ("opus", "pcmu", "pcma").
	Codec string

	// PushToTalk disables server turn detection in favour of explicit
	// StartTurn/EndTurn calls. Fixed for the session.
	PushToTalk bool

	// VAD overrides the server turn detection parameters.
	VAD *VADConfig

	// Endpoint overrides the provider URL.
	Endpoint string

	// EventLog publishes a ProtocolEvent for every control message exchanged
	// with the provider.
	EventLog bool

	// QueueSize bounds the outbound chunk queue. Defaults to DefaultQueueSize.
	QueueSize int

	// Publisher receives every inbound event.
	Publisher events.Publisher
}

// Publish stamps data with the session ID and publishes it.
func (o *Options) Publish(data events.Data) {
	if o.Publisher == nil {
		return
	}
	o.Publisher.Publish(events.New(o.SessionID, data))
}
