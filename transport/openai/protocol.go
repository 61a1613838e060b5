package openai

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/AltairaLabs/mediasession/audio"
	"github.com/AltairaLabs/mediasession/transport"
)

// Realtime API constants
const (
	// DefaultEndpoint accepts the SDP offer for a WebRTC session.
	DefaultEndpoint = "https://api.openai.com/v1/realtime"

	// DataChannelLabel is the channel carrying JSON client and server events.
	DataChannelLabel = "oai-events"

	DefaultModel              = "gpt-4o-realtime-preview-2025-06-03"
	DefaultVoice              = "alloy"
	DefaultTranscriptionModel = "gpt-4o-mini-transcribe"

	// Default turn detection values
	defaultVADThreshold      = 0.9
	defaultPrefixPaddingMs   = 300
	defaultSilenceDurationMs = 500

	// pcm16 audio on the data channel is 24kHz mono.
	pcm16SampleRate = audio.SampleRate24kHz
)

// Audio formats understood by session.update.
const (
	AudioFormatPCM16    = "pcm16"
	AudioFormatG711ULaw = "g711_ulaw"
	AudioFormatG711ALaw = "g711_alaw"
)

// AudioFormatForCodec maps a WebRTC codec to the session audio format.
// Opus media is exchanged as pcm16 on the API side.
func AudioFormatForCodec(codec string) string {
	switch codec {
	case audio.CodecPCMU:
		return AudioFormatG711ULaw
	case audio.CodecPCMA:
		return AudioFormatG711ALaw
	default:
		return AudioFormatPCM16
	}
}

// Client Events - sent from client to server

// ClientEvent is the base structure for all client events.
type ClientEvent struct {
	EventID string `json:"event_id,omitempty"`
	Type    string `json:"type"`
}

func newClientEvent(eventType string) ClientEvent {
	return ClientEvent{EventID: "evt_" + uuid.NewString(), Type: eventType}
}

// SessionUpdateEvent updates session configuration.
type SessionUpdateEvent struct {
	ClientEvent
	Session SessionConfig `json:"session"`
}

// SessionConfig is the session configuration sent in session.update.
// TurnDetection has no omitempty: null disables server VAD, while omitting
// it keeps the server default.
type SessionConfig struct {
	Modalities              []string             `json:"modalities,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitempty"`
	TurnDetection           *TurnDetectionConfig `json:"turn_detection"`
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	Model string `json:"model"`
}

// TurnDetectionConfig configures server-side VAD.
type TurnDetectionConfig struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold,omitempty"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitempty"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitempty"`
	CreateResponse    bool    `json:"create_response"`
}

// ConversationItemCreateEvent adds an item to the conversation.
type ConversationItemCreateEvent struct {
	ClientEvent
	Item ConversationItem `json:"item"`
}

// ConversationItem represents an item in the conversation.
type ConversationItem struct {
	ID      string                `json:"id,omitempty"`
	Type    string                `json:"type"` // "message"
	Role    string                `json:"role,omitempty"`
	Content []ConversationContent `json:"content,omitempty"`
}

// ConversationContent represents content within a conversation item.
type ConversationContent struct {
	Type       string `json:"type"` // "input_text", "text", "audio"
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// buildSessionConfig derives session.update from the transport options.
func buildSessionConfig(opts *transport.Options, codec string) SessionConfig {
	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	format := AudioFormatForCodec(codec)
	cfg := SessionConfig{
		Instructions:            opts.Instructions,
		Voice:                   voice,
		InputAudioFormat:        format,
		OutputAudioFormat:       format,
		InputAudioTranscription: &TranscriptionConfig{Model: DefaultTranscriptionModel},
	}
	if !opts.PushToTalk {
		cfg.TurnDetection = buildTurnDetection(opts.VAD)
	}
	return cfg
}

// buildTurnDetection applies overrides on top of the server_vad defaults.
func buildTurnDetection(vad *transport.VADConfig) *TurnDetectionConfig {
	td := &TurnDetectionConfig{
		Type:              "server_vad",
		Threshold:         defaultVADThreshold,
		PrefixPaddingMs:   defaultPrefixPaddingMs,
		SilenceDurationMs: defaultSilenceDurationMs,
		CreateResponse:    true,
	}
	if vad == nil {
		return td
	}
	if vad.Threshold > 0 {
		td.Threshold = vad.Threshold
	}
	if vad.PrefixPaddingMs > 0 {
		td.PrefixPaddingMs = vad.PrefixPaddingMs
	}
	if vad.SilenceDurationMs > 0 {
		td.SilenceDurationMs = vad.SilenceDurationMs
	}
	return td
}

func sessionUpdate(cfg SessionConfig) SessionUpdateEvent {
	return SessionUpdateEvent{ClientEvent: newClientEvent("session.update"), Session: cfg}
}

func userTextItem(text string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		ClientEvent: newClientEvent("conversation.item.create"),
		Item: ConversationItem{
			Type:    "message",
			Role:    "user",
			Content: []ConversationContent{{Type: "input_text", Text: text}},
		},
	}
}

// Server Events - received from server

// ServerEvent is the base structure for all server events.
type ServerEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// ErrorEvent indicates an error occurred.
type ErrorEvent struct {
	ServerEvent
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// SessionCreatedEvent is sent when the session is established.
type SessionCreatedEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionUpdatedEvent confirms a session update.
type SessionUpdatedEvent struct {
	ServerEvent
	Session SessionInfo `json:"session"`
}

// SessionInfo contains the session details the client cares about.
type SessionInfo struct {
	ID                string               `json:"id"`
	Model             string               `json:"model"`
	Voice             string               `json:"voice"`
	InputAudioFormat  string               `json:"input_audio_format"`
	OutputAudioFormat string               `json:"output_audio_format"`
	TurnDetection     *TurnDetectionConfig `json:"turn_detection"`
}

// InputAudioBufferSpeechStartedEvent indicates speech was detected.
type InputAudioBufferSpeechStartedEvent struct {
	ServerEvent
	AudioStartMs int    `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

// InputAudioBufferSpeechStoppedEvent indicates speech ended.
type InputAudioBufferSpeechStoppedEvent struct {
	ServerEvent
	AudioEndMs int    `json:"audio_end_ms"`
	ItemID     string `json:"item_id"`
}

// ConversationItemInputAudioTranscriptionCompletedEvent provides transcription.
type ConversationItemInputAudioTranscriptionCompletedEvent struct {
	ServerEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

// ConversationItemInputAudioTranscriptionFailedEvent indicates transcription failed.
type ConversationItemInputAudioTranscriptionFailedEvent struct {
	ServerEvent
	ItemID string      `json:"item_id"`
	Error  ErrorDetail `json:"error"`
}

// ResponseDoneEvent indicates a response completed.
type ResponseDoneEvent struct {
	ServerEvent
	Response ResponseInfo `json:"response"`
}

// ResponseInfo contains response details.
type ResponseInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ResponseDeltaEvent is text, audio or transcript streaming output.
type ResponseDeltaEvent struct {
	ServerEvent
	ResponseID   string `json:"response_id"`
	ItemID       string `json:"item_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
}

// ResponseAudioTranscriptDoneEvent indicates transcript completed.
type ResponseAudioTranscriptDoneEvent struct {
	ServerEvent
	ResponseID string `json:"response_id"`
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
}

// ParseServerEvent parses a raw JSON message into the appropriate event type.
func ParseServerEvent(data []byte) (any, error) {
	var base ServerEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case "error":
		var e ErrorEvent
		return &e, json.Unmarshal(data, &e)
	case "session.created":
		var e SessionCreatedEvent
		return &e, json.Unmarshal(data, &e)
	case "session.updated":
		var e SessionUpdatedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.speech_started":
		var e InputAudioBufferSpeechStartedEvent
		return &e, json.Unmarshal(data, &e)
	case "input_audio_buffer.speech_stopped":
		var e InputAudioBufferSpeechStoppedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.input_audio_transcription.completed":
		var e ConversationItemInputAudioTranscriptionCompletedEvent
		return &e, json.Unmarshal(data, &e)
	case "conversation.item.input_audio_transcription.failed":
		var e ConversationItemInputAudioTranscriptionFailedEvent
		return &e, json.Unmarshal(data, &e)
	case "response.done":
		var e ResponseDoneEvent
		return &e, json.Unmarshal(data, &e)
	case "response.text.delta", "response.audio.delta", "response.audio_transcript.delta":
		var e ResponseDeltaEvent
		return &e, json.Unmarshal(data, &e)
	case "response.audio_transcript.done":
		var e ResponseAudioTranscriptDoneEvent
		return &e, json.Unmarshal(data, &e)
	default:
		return &base, nil
	}
}

// truncateLargeFields shortens base64 payloads for the event log.
func truncateLargeFields(v any) {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"delta", "audio"} {
			if s, ok := val[key].(string); ok && len(s) > 100 {
				val[key] = fmt.Sprintf("[%d bytes base64]", len(s))
			}
		}
		for _, child := range val {
			truncateLargeFields(child)
		}
	case []any:
		for _, item := range val {
			truncateLargeFields(item)
		}
	}
}

func summarize(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	truncateLargeFields(v)
	out, _ := json.Marshal(v)
	return string(out)
}
