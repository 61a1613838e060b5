package logger

import (
	"context"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// Context keys for common logging fields. Values stored under these keys are
// extracted by ContextHandler and added to every record logged with the context.
const (
	// ContextKeySessionID identifies the media session.
	ContextKeySessionID contextKey = "session_id"

	// ContextKeyProvider identifies the realtime provider ("gemini", "openai").
	ContextKeyProvider contextKey = "provider"

	// ContextKeyModel identifies the model in use.
	ContextKeyModel contextKey = "model"

	// ContextKeyTransport identifies the transport variant ("websocket", "webrtc").
	ContextKeyTransport contextKey = "transport"

	// ContextKeyRequestID identifies an individual HTTP request.
	ContextKeyRequestID contextKey = "request_id"
)

var allContextKeys = []contextKey{
	ContextKeySessionID,
	ContextKeyProvider,
	ContextKeyModel,
	ContextKeyTransport,
	ContextKeyRequestID,
}

// WithSessionID returns a new context with the session ID set.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// WithProvider returns a new context with the provider name set.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ContextKeyProvider, provider)
}

// WithModel returns a new context with the model name set.
func WithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, ContextKeyModel, model)
}

// WithTransport returns a new context with the transport variant set.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, ContextKeyTransport, transport)
}

// WithRequestID returns a new context with the request ID set.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// LoggingFields holds all standard logging context fields.
type LoggingFields struct {
	SessionID string
	Provider  string
	Model     string
	Transport string
	RequestID string
}

// WithLoggingContext returns a new context with every non-empty field set.
func WithLoggingContext(ctx context.Context, fields *LoggingFields) context.Context {
	if fields == nil {
		return ctx
	}
	if fields.SessionID != "" {
		ctx = WithSessionID(ctx, fields.SessionID)
	}
	if fields.Provider != "" {
		ctx = WithProvider(ctx, fields.Provider)
	}
	if fields.Model != "" {
		ctx = WithModel(ctx, fields.Model)
	}
	if fields.Transport != "" {
		ctx = WithTransport(ctx, fields.Transport)
	}
	if fields.RequestID != "" {
		ctx = WithRequestID(ctx, fields.RequestID)
	}
	return ctx
}

// ExtractLoggingFields extracts all logging fields from a context.
func ExtractLoggingFields(ctx context.Context) LoggingFields {
	str := func(k contextKey) string {
		s, _ := ctx.Value(k).(string)
		return s
	}
	return LoggingFields{
		SessionID: str(ContextKeySessionID),
		Provider:  str(ContextKeyProvider),
		Model:     str(ContextKeyModel),
		Transport: str(ContextKeyTransport),
		RequestID: str(ContextKeyRequestID),
	}
}
