package events

import (
	"time"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// EventType identifies the type of event published on the bus.
type EventType string

const (
	// EventConnectionOpened marks a transport reaching the connected state.
	EventConnectionOpened EventType = "connection.opened"
	// EventConnectionClosed marks a transport closing for any reason.
	EventConnectionClosed EventType = "connection.closed"
	// EventContentDelta carries a streamed text fragment from the model.
	EventContentDelta EventType = "content.delta"
	// EventAudioChunk carries a streamed PCM16 audio fragment from the model.
	EventAudioChunk EventType = "audio.chunk"
	// EventInterrupted marks the user barging in over model output.
	EventInterrupted EventType = "turn.interrupted"
	// EventTurnComplete marks the end of a model turn.
	EventTurnComplete EventType = "turn.complete"
	// EventTranscriptUpdate carries input or output speech transcription.
	EventTranscriptUpdate EventType = "transcript.update"
	// EventError carries a classified failure.
	EventError EventType = "error"

	// EventStatusChanged marks a session state transition.
	EventStatusChanged EventType = "session.status_changed"
	// EventSpeechActivity marks a speaker starting or stopping.
	EventSpeechActivity EventType = "speech.activity"
	// EventVolume carries a normalized input or output level.
	EventVolume EventType = "audio.volume"
	// EventProtocol records a raw client or server protocol message.
	EventProtocol EventType = "protocol.event"
)

// Data is the payload of an Event. Each payload type reports its EventType.
type Data interface {
	EventType() EventType
}

// Event is a single item delivered to listeners.
type Event struct {
	Type      EventType
	Timestamp time.Time
	SessionID string
	Data      Data
}

// New creates an event for data stamped with the current time.
func New(sessionID string, data Data) *Event {
	return &Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		SessionID: sessionID,
		Data:      data,
	}
}

// Status is the lifecycle state of a session.
type Status string

// Session states.
const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Role identifies who produced speech or text.
type Role string

// Speaker roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Direction identifies which side of the connection a protocol message or
// volume reading belongs to.
type Direction string

// Directions.
const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// ConnectionOpened is published once a transport handshake succeeds.
type ConnectionOpened struct {
	Provider  string
	Transport string
}

// ConnectionClosed is published when a transport closes.
type ConnectionClosed struct {
	Reason string
	Code   int
}

// ContentDelta is a fragment of model output that is not audio. Text parts
// set Text; other inline parts set MIMEType and Data.
type ContentDelta struct {
	Text     string
	MIMEType string
	Data     []byte
}

// AudioChunk is a fragment of PCM16 LE mono model audio.
type AudioChunk struct {
	Data       []byte
	MIMEType   string
	SampleRate int
}

// Interrupted is published when the user barges in. Playback flushes on it.
type Interrupted struct{}

// TurnComplete is published at the end of a model turn.
type TurnComplete struct{}

// TranscriptUpdate carries speech transcription text.
type TranscriptUpdate struct {
	Role    Role
	Text    string
	IsFinal bool
}

// Error is the uniform failure payload.
type Error struct {
	Message string
	Kind    mserrors.Kind
	Err     error
}

// StatusChanged is published on every session state transition.
type StatusChanged struct {
	From Status
	To   Status
}

// SpeechActivity reports a speaker starting or stopping.
type SpeechActivity struct {
	Role   Role
	Active bool
}

// Volume is a normalized 0..1 level reading.
type Volume struct {
	Direction Direction
	Level     float64
}

// ProtocolEvent records a protocol message exchanged with the provider.
type ProtocolEvent struct {
	Direction Direction
	Name      string
	Payload   string
}

func (ConnectionOpened) EventType() EventType { return EventConnectionOpened }
func (ConnectionClosed) EventType() EventType { return EventConnectionClosed }
func (ContentDelta) EventType() EventType     { return EventContentDelta }
func (AudioChunk) EventType() EventType       { return EventAudioChunk }
func (Interrupted) EventType() EventType      { return EventInterrupted }
func (TurnComplete) EventType() EventType     { return EventTurnComplete }
func (TranscriptUpdate) EventType() EventType { return EventTranscriptUpdate }
func (Error) EventType() EventType            { return EventError }
func (StatusChanged) EventType() EventType    { return EventStatusChanged }
func (SpeechActivity) EventType() EventType   { return EventSpeechActivity }
func (Volume) EventType() EventType           { return EventVolume }
func (ProtocolEvent) EventType() EventType    { return EventProtocol }

// ErrorFrom builds an Error payload from err, taking the kind from its chain.
// fallback is used when err carries no kind.
func ErrorFrom(err error, fallback mserrors.Kind) Error {
	kind := mserrors.KindOf(err)
	if kind == mserrors.KindUnknown {
		kind = fallback
	}
	msg := ""
	if e, ok := err.(*mserrors.Error); ok { //nolint:errorlint // top-level message only
		msg = e.Message()
	} else if err != nil {
		msg = err.Error()
	}
	return Error{Message: msg, Kind: kind, Err: err}
}
