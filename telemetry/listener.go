package telemetry

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AltairaLabs/mediasession/events"
)

// Span names.
const (
	SpanSession   = "mediasession.session"
	SpanHandshake = "mediasession.handshake"
	SpanTurn      = "mediasession.turn"
)

type sessionSpans struct {
	root      trace.Span
	ctx       context.Context //nolint:containedctx // parents child spans
	handshake trace.Span
	turn      trace.Span
	chunks    int
}

// SessionListener converts session events into spans: one root span per
// session from connecting to disconnected, a handshake child span, and a
// child span per model turn. Register it with Bus.SubscribeAll.
type SessionListener struct {
	tracer trace.Tracer
	parent context.Context //nolint:containedctx // parents root spans

	mu       sync.Mutex
	sessions map[string]*sessionSpans
}

var _ events.Listener = (*SessionListener)(nil)

// NewSessionListener creates a listener. Root spans are parented under the
// span in parent, if any.
func NewSessionListener(parent context.Context, tracer trace.Tracer) *SessionListener {
	if parent == nil {
		parent = context.Background()
	}
	return &SessionListener{
		tracer:   tracer,
		parent:   parent,
		sessions: make(map[string]*sessionSpans),
	}
}

// OnEvent handles a single session event.
func (l *SessionListener) OnEvent(e *events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch d := e.Data.(type) {
	case events.StatusChanged:
		l.onStatus(e, d)
	case events.ConnectionOpened:
		if s := l.sessions[e.SessionID]; s != nil {
			s.root.SetAttributes(
				attribute.String("session.provider", d.Provider),
				attribute.String("session.transport", d.Transport),
			)
			s.root.AddEvent("connection.opened", trace.WithTimestamp(e.Timestamp))
		}
	case events.ConnectionClosed:
		if s := l.sessions[e.SessionID]; s != nil {
			s.root.AddEvent("connection.closed", trace.WithTimestamp(e.Timestamp), trace.WithAttributes(
				attribute.String("close.reason", d.Reason),
				attribute.Int("close.code", d.Code),
			))
		}
	case events.Error:
		l.onError(e, d)
	case events.AudioChunk, events.ContentDelta:
		l.onOutput(e)
	case events.TurnComplete:
		l.endTurn(e, false)
	case events.Interrupted:
		l.endTurn(e, true)
	default:
	}
}

func (l *SessionListener) onStatus(e *events.Event, d events.StatusChanged) {
	switch d.To {
	case events.StatusConnecting:
		ctx, root := l.tracer.Start(l.parent, SpanSession,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithTimestamp(e.Timestamp),
			trace.WithAttributes(attribute.String("session.id", e.SessionID)),
		)
		_, hs := l.tracer.Start(ctx, SpanHandshake, trace.WithTimestamp(e.Timestamp))
		l.sessions[e.SessionID] = &sessionSpans{root: root, ctx: ctx, handshake: hs}
	case events.StatusConnected:
		if s := l.sessions[e.SessionID]; s != nil && s.handshake != nil {
			s.handshake.SetStatus(codes.Ok, "")
			s.handshake.End(trace.WithTimestamp(e.Timestamp))
			s.handshake = nil
		}
	case events.StatusDisconnected:
		s := l.sessions[e.SessionID]
		if s == nil {
			return
		}
		delete(l.sessions, e.SessionID)
		end := trace.WithTimestamp(e.Timestamp)
		if s.handshake != nil {
			s.handshake.SetStatus(codes.Error, "handshake did not complete")
			s.handshake.End(end)
		}
		if s.turn != nil {
			s.turn.SetAttributes(attribute.Bool("turn.completed", false))
			s.turn.End(end)
		}
		s.root.End(end)
	}
}

func (l *SessionListener) onError(e *events.Event, d events.Error) {
	s := l.sessions[e.SessionID]
	if s == nil {
		return
	}
	span := s.root
	if s.handshake != nil {
		span = s.handshake
	}
	err := d.Err
	if err == nil {
		err = errors.New(d.Message)
	}
	span.RecordError(err, trace.WithTimestamp(e.Timestamp),
		trace.WithAttributes(attribute.String("error.kind", d.Kind.String())))
	if d.Kind.Fatal() {
		s.root.SetStatus(codes.Error, d.Message)
	}
}

func (l *SessionListener) onOutput(e *events.Event) {
	s := l.sessions[e.SessionID]
	if s == nil {
		return
	}
	if s.turn == nil {
		_, s.turn = l.tracer.Start(s.ctx, SpanTurn, trace.WithTimestamp(e.Timestamp))
		s.chunks = 0
	}
	s.chunks++
}

func (l *SessionListener) endTurn(e *events.Event, interrupted bool) {
	s := l.sessions[e.SessionID]
	if s == nil || s.turn == nil {
		return
	}
	s.turn.SetAttributes(
		attribute.Bool("turn.completed", !interrupted),
		attribute.Bool("turn.interrupted", interrupted),
		attribute.Int("turn.chunks", s.chunks),
	)
	s.turn.End(trace.WithTimestamp(e.Timestamp))
	s.turn = nil
}
