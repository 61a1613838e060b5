package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AltairaLabs/mediasession/media"
	"github.com/AltairaLabs/mediasession/transport"
)

// Defaults for the Live API session.
const (
	DefaultModel           = "models/gemini-2.0-flash-exp"
	DefaultVoice           = "Puck"
	DefaultCandidateCount  = 1
	DefaultMaxOutputTokens = 1000

	ModalityAudio = "AUDIO"
	ModalityText  = "TEXT"
)

// Activity detection sensitivities. Thresholds at or above sensitivityCutoff
// map to a low start sensitivity.
const (
	startSensitivityLow  = "START_SENSITIVITY_LOW"
	startSensitivityHigh = "START_SENSITIVITY_HIGH"
	endSensitivityLow    = "END_SENSITIVITY_LOW"
	endSensitivityHigh   = "END_SENSITIVITY_HIGH"

	sensitivityCutoff = 0.5
)

// ServerMessage is one message from the Live API (BidiGenerateContentServerMessage).
type ServerMessage struct {
	SetupComplete *SetupComplete `json:"setupComplete,omitempty"`
	ServerContent *ServerContent `json:"serverContent,omitempty"`
	GoAway        *GoAway        `json:"goAway,omitempty"`
	UsageMetadata *UsageMetadata `json:"usageMetadata,omitempty"`
}

// SetupComplete confirms the setup message (empty object per docs).
type SetupComplete struct{}

// GoAway warns that the server will close the connection soon.
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// UsageMetadata contains token usage information.
type UsageMetadata struct {
	PromptTokenCount   int `json:"promptTokenCount,omitempty"`
	ResponseTokenCount int `json:"responseTokenCount,omitempty"`
	TotalTokenCount    int `json:"totalTokenCount,omitempty"`
}

// ServerContent is incremental model output (BidiGenerateContentServerContent).
type ServerContent struct {
	ModelTurn           *ModelTurn     `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	GenerationComplete  bool           `json:"generationComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`  // User speech
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"` // Model speech
}

// Transcription is a piece of speech transcription.
type Transcription struct {
	Text     string `json:"text,omitempty"`
	Finished bool   `json:"finished,omitempty"`
}

// ModelTurn is a model response turn.
type ModelTurn struct {
	Parts []Part `json:"parts,omitempty"`
}

// Part is a content part, text or inline data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"` // camelCase!
}

// InlineData is inline media.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"` // camelCase!
	Data     string `json:"data,omitempty"`     // Base64 encoded
}

// name returns the top-level key of the message for the event log.
func (m *ServerMessage) name() string {
	switch {
	case m.SetupComplete != nil:
		return "setupComplete"
	case m.ServerContent != nil:
		return "serverContent"
	case m.GoAway != nil:
		return "goAway"
	case m.UsageMetadata != nil:
		return "usageMetadata"
	default:
		return "unknown"
	}
}

// getModelPath ensures model is in the form models/{model}.
func getModelPath(model string) string {
	if model == "" {
		return DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		return "models/" + model
	}
	return model
}

// buildSetupMessage constructs the first message of a Live API session.
func buildSetupMessage(opts *transport.Options, modality string) map[string]any {
	generationConfig := map[string]any{
		"candidateCount":     DefaultCandidateCount,
		"maxOutputTokens":    DefaultMaxOutputTokens,
		"responseModalities": []string{modality},
	}

	setupContent := map[string]any{
		"model":            getModelPath(opts.Model),
		"generationConfig": generationConfig,
	}

	if modality == ModalityAudio {
		voice := opts.Voice
		if voice == "" {
			voice = DefaultVoice
		}
		generationConfig["speechConfig"] = map[string]any{
			"voiceConfig": map[string]any{
				"prebuiltVoiceConfig": map[string]any{
					"voiceName": voice,
				},
			},
		}
		setupContent["outputAudioTranscription"] = map[string]any{}
		setupContent["inputAudioTranscription"] = map[string]any{}
	}

	if vad := buildVADConfigMap(opts); len(vad) > 0 {
		setupContent["realtimeInputConfig"] = map[string]any{
			"automaticActivityDetection": vad,
		}
	}

	if opts.Instructions != "" {
		setupContent["systemInstruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": opts.Instructions},
			},
		}
	}

	return map[string]any{"setup": setupContent}
}

// buildVADConfigMap maps turn detection options to automaticActivityDetection.
// Push-to-talk disables automatic detection.
func buildVADConfigMap(opts *transport.Options) map[string]any {
	vad := map[string]any{}
	if opts.PushToTalk {
		vad["disabled"] = true
		return vad
	}
	if opts.VAD == nil {
		return vad
	}
	if opts.VAD.PrefixPaddingMs > 0 {
		vad["prefixPaddingMs"] = opts.VAD.PrefixPaddingMs
	}
	if opts.VAD.SilenceDurationMs > 0 {
		vad["silenceDurationMs"] = opts.VAD.SilenceDurationMs
	}
	if t := opts.VAD.Threshold; t > 0 {
		vad["startOfSpeechSensitivity"], vad["endOfSpeechSensitivity"] = vadSensitivity(t)
	}
	return vad
}

// vadSensitivity maps a detection threshold in (0, 1] to Gemini's two-level
// sensitivities. A high threshold needs louder speech to start a turn and
// ends it more readily.
func vadSensitivity(threshold float64) (start, end string) {
	if threshold >= sensitivityCutoff {
		return startSensitivityLow, endSensitivityHigh
	}
	return startSensitivityHigh, endSensitivityLow
}

// buildMediaMessage wraps one outbound chunk as realtime input.
func buildMediaMessage(chunk media.Chunk) map[string]any {
	return map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"mime_type": chunk.MIMEType,
					"data":      chunk.Base64(),
				},
			},
		},
	}
}

// buildTextMessage builds a user text turn.
func buildTextMessage(text string, turnComplete bool) map[string]any {
	return map[string]any{
		"client_content": map[string]any{
			"turns": []map[string]any{
				{
					"role":  "user",
					"parts": []any{map[string]any{"text": text}},
				},
			},
			"turn_complete": turnComplete,
		},
	}
}

// buildActivityMessage builds an activityStart or activityEnd signal.
func buildActivityMessage(kind string) map[string]any {
	return map[string]any{
		"realtime_input": map[string]any{
			kind: map[string]any{},
		},
	}
}

// truncateInlineData recursively truncates large data fields for logging.
func truncateInlineData(v any) {
	switch val := v.(type) {
	case map[string]any:
		if data, ok := val["data"].(string); ok && len(data) > 100 {
			val["data"] = fmt.Sprintf("[%d bytes base64]", len(data))
		}
		for _, child := range val {
			truncateInlineData(child)
		}
	case []any:
		for _, item := range val {
			truncateInlineData(item)
		}
	}
}

// summarize renders a raw JSON message with inline data truncated.
func summarize(raw []byte) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	truncateInlineData(v)
	out, _ := json.Marshal(v)
	return string(out)
}
