// Package gemini implements the discrete-message transport for the Gemini
// Live API. Every outbound chunk is one realtime_input message; every inbound
// message yields zero or more events in part order.
//
// The Live API does not accept TEXT and AUDIO response modalities together.
// Choose one with WithResponseModality; AUDIO responses still carry output
// transcription as TranscriptUpdate events.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/AltairaLabs/mediasession/audio"
	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/events"
	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/media"
	"github.com/AltairaLabs/mediasession/transport"
	"github.com/AltairaLabs/mediasession/transport/internal/wsconn"
)

// DefaultURL is the Live API BidiGenerateContent endpoint.
const DefaultURL = "wss://generativelanguage.googleapis.com/ws/" +
	"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Session setup constants
const (
	DefaultSetupTimeout      = 10 * time.Second
	DefaultHeartbeatInterval = 30 * time.Second

	defaultOutputSampleRate = audio.SampleRate24kHz
)

const component = "gemini"

type state int

const (
	stateIdle state = iota
	stateConnecting
	stateConnected
	stateClosed
)

// Option customizes a Transport.
type Option func(*Transport)

// WithResponseModality selects ModalityAudio (default) or ModalityText.
func WithResponseModality(modality string) Option {
	return func(t *Transport) {
		if modality != "" {
			t.modality = modality
		}
	}
}

// WithSetupTimeout bounds the wait for setupComplete.
func WithSetupTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.setupTimeout = d
		}
	}
}

// WithHeartbeatInterval sets the ping interval. Zero or negative disables pings.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(t *Transport) {
		t.heartbeat = d
	}
}

// Transport is a single-use Gemini Live connection.
type Transport struct {
	opts         transport.Options
	url          string
	modality     string
	setupTimeout time.Duration
	heartbeat    time.Duration
	log          *slog.Logger
	queue        *transport.Queue

	mu              sync.Mutex
	state           state
	conn            *wsconn.Conn
	cancelHeartbeat context.CancelFunc
	activityStarted bool

	closeOnce sync.Once
}

var (
	_ transport.Transport      = (*Transport)(nil)
	_ transport.TurnController = (*Transport)(nil)
)

// New creates a Transport. Call Connect to open the session.
func New(opts transport.Options, options ...Option) *Transport {
	t := &Transport{
		opts:         opts,
		url:          opts.Endpoint,
		modality:     ModalityAudio,
		setupTimeout: DefaultSetupTimeout,
		heartbeat:    DefaultHeartbeatInterval,
		log:          logger.Component("transport.gemini").With("session_id", opts.SessionID),
	}
	if t.url == "" {
		t.url = DefaultURL
	}
	for _, o := range options {
		o(t)
	}
	t.queue = transport.NewQueue(opts.QueueSize, t.writeChunk, t.onWriteError)
	return t
}

// Provider returns "gemini".
func (t *Transport) Provider() string { return transport.ProviderGemini }

// Kind returns "websocket".
func (t *Transport) Kind() string { return transport.KindWebSocket }

// Connected reports whether setup completed and the transport is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateConnected
}

// Connect dials the endpoint, sends the setup message and waits for
// setupComplete. Any failure before setupComplete is a KindHandshakeFailed
// error and leaves the transport closed.
func (t *Transport) Connect(ctx context.Context) error {
	if t.opts.Credential == "" {
		return mserrors.Newf(mserrors.KindCredentialMissing, component, "connect", "no API key configured")
	}

	headers := http.Header{}
	if t.opts.BearerAuth {
		headers.Set("Authorization", "Bearer "+t.opts.Credential)
	} else {
		headers.Set("x-goog-api-key", t.opts.Credential)
	}
	conn := wsconn.New(wsconn.Config{
		URL:     t.url,
		Headers: headers,
		Logger:  t.log,
	})

	t.mu.Lock()
	switch t.state {
	case stateClosed:
		t.mu.Unlock()
		return transport.ErrClosed
	case stateConnecting, stateConnected:
		t.mu.Unlock()
		return errors.New("gemini transport already connected")
	}
	t.state = stateConnecting
	t.conn = conn
	t.mu.Unlock()

	t.log.Debug("connecting", "url", t.url, "model", getModelPath(t.opts.Model), "modality", t.modality)

	if err := t.handshake(ctx, conn); err != nil {
		t.shutdown("handshake failed", 0)
		return mserrors.Wrap(err, mserrors.KindHandshakeFailed, component, "connect")
	}

	t.mu.Lock()
	if t.state != stateConnecting {
		t.mu.Unlock()
		return mserrors.New(mserrors.KindHandshakeFailed, component, "connect", transport.ErrClosed)
	}
	t.state = stateConnected
	hbCtx, cancel := context.WithCancel(context.Background())
	t.cancelHeartbeat = cancel
	t.mu.Unlock()

	conn.StartHeartbeat(hbCtx, t.heartbeat)
	t.queue.Start()
	go t.readLoop(conn)

	t.log.Info("session established", "model", getModelPath(t.opts.Model))
	t.opts.Publish(events.ConnectionOpened{Provider: t.Provider(), Transport: t.Kind()})
	return nil
}

// handshake sends the setup message and waits for confirmation.
func (t *Transport) handshake(ctx context.Context, conn *wsconn.Conn) error {
	if err := conn.Connect(ctx); err != nil {
		return err
	}

	setupMsg := buildSetupMessage(&t.opts, t.modality)
	if err := conn.Send(setupMsg); err != nil {
		return fmt.Errorf("failed to send setup message: %w", err)
	}
	t.logOutbound("setup", setupMsg)

	setupCtx, cancel := context.WithTimeout(ctx, t.setupTimeout)
	defer cancel()

	raw, err := conn.ReadMessage(setupCtx)
	if err != nil {
		return fmt.Errorf("failed to receive setup response: %w", err)
	}
	t.logInbound("setupComplete", raw)

	var resp ServerMessage
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("invalid setup response: %w", err)
	}
	if resp.SetupComplete == nil {
		return errors.New("invalid setup response: setupComplete not received")
	}
	return nil
}

// Send queues chunk as realtime input. With push-to-talk, audio outside a
// StartTurn/EndTurn window is dropped.
func (t *Transport) Send(chunk media.Chunk) {
	t.mu.Lock()
	connected := t.state == stateConnected
	gated := t.opts.PushToTalk && !t.activityStarted && chunk.IsAudio()
	t.mu.Unlock()

	switch {
	case !connected:
		t.queue.Drop("not connected")
	case gated:
		t.queue.Drop("push-to-talk inactive")
	default:
		t.queue.Push(chunk)
	}
}

func (t *Transport) writeChunk(chunk media.Chunk) error {
	conn := t.currentConn()
	if conn == nil {
		return transport.ErrNotConnected
	}
	return conn.Send(buildMediaMessage(chunk))
}

func (t *Transport) onWriteError(err error) {
	if !t.Connected() {
		return
	}
	t.log.Error("failed to send realtime input", "error", err)
	t.opts.Publish(events.ErrorFrom(
		mserrors.New(mserrors.KindTransportError, component, "send", err), mserrors.KindTransportError))
	t.shutdown("write failed", 0)
}

// SendText sends a complete user turn.
func (t *Transport) SendText(text string) error {
	return t.sendControl("client_content", buildTextMessage(text, true))
}

// Interrupt is a no-op: the Live API has no response cancel message and
// interrupts generation itself when it detects user speech.
func (t *Transport) Interrupt() error {
	if !t.Connected() {
		return transport.ErrNotConnected
	}
	return nil
}

// StartTurn sends activityStart. It is a no-op while a turn is open.
func (t *Transport) StartTurn() error {
	if !t.opts.PushToTalk {
		return transport.ErrNotPushToTalk
	}
	t.mu.Lock()
	if t.activityStarted {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.sendControl("activityStart", buildActivityMessage("activityStart")); err != nil {
		return err
	}
	t.mu.Lock()
	t.activityStarted = true
	t.mu.Unlock()
	return nil
}

// EndTurn queues activityEnd behind the audio already sent, which prompts the
// model to respond. It is a no-op when no turn is open.
func (t *Transport) EndTurn() error {
	if !t.opts.PushToTalk {
		return transport.ErrNotPushToTalk
	}
	if !t.Connected() {
		return transport.ErrNotConnected
	}
	t.mu.Lock()
	if !t.activityStarted {
		t.mu.Unlock()
		return nil
	}
	t.activityStarted = false
	t.mu.Unlock()

	msg := buildActivityMessage("activityEnd")
	if !t.queue.PushFunc(func() error { return t.sendControl("activityEnd", msg) }) {
		return mserrors.Newf(mserrors.KindTransportError, component, "activityEnd", "outbound queue full")
	}
	return nil
}

func (t *Transport) sendControl(name string, msg map[string]any) error {
	if !t.Connected() {
		return transport.ErrNotConnected
	}
	conn := t.currentConn()
	if conn == nil {
		return transport.ErrNotConnected
	}
	if err := conn.Send(msg); err != nil {
		return mserrors.New(mserrors.KindTransportError, component, name, err)
	}
	t.logOutbound(name, msg)
	return nil
}

// Close releases the connection. It never waits for the read loop, so it is
// safe to call from an event listener.
func (t *Transport) Close() error {
	t.shutdown("client closed", wsCloseNormal)
	return nil
}

const wsCloseNormal = 1000

func (t *Transport) shutdown(reason string, code int) {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return
	}
	wasConnected := t.state == stateConnected
	t.state = stateClosed
	conn := t.conn
	cancel := t.cancelHeartbeat
	t.mu.Unlock()

	t.queue.Stop()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}

	if wasConnected {
		t.closeOnce.Do(func() {
			t.log.Info("session closed", "reason", reason, "code", code, "dropped_chunks", t.queue.Dropped())
			t.opts.Publish(events.ConnectionClosed{Reason: reason, Code: code})
		})
	}
}

func (t *Transport) currentConn() *wsconn.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateClosed
}

func (t *Transport) readLoop(conn *wsconn.Conn) {
	info, err := conn.ReadLoop(t.handleMessage)
	if t.isClosed() {
		return
	}

	reason, code := "connection closed", 0
	if info != nil {
		code = info.Code
		if info.Reason != "" {
			reason = info.Reason
		}
	}
	if err != nil {
		kind := mserrors.KindTransportError
		if info != nil {
			// The server closed with an error code, typically an invalid request.
			kind = mserrors.KindProviderError
		}
		t.log.Error("receive failed", "error", err, "code", code)
		t.opts.Publish(events.ErrorFrom(mserrors.New(kind, component, "receive", err), kind))
	}
	t.shutdown(reason, code)
}

// handleMessage converts one server message into events.
func (t *Transport) handleMessage(raw []byte) {
	var msg ServerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.log.Warn("failed to parse server message", "error", err)
		return
	}
	t.logInbound(msg.name(), raw)

	if msg.GoAway != nil {
		t.log.Warn("server will close the session", "time_left", msg.GoAway.TimeLeft)
	}
	if msg.ServerContent != nil {
		t.processServerContent(msg.ServerContent)
	}
}

func (t *Transport) processServerContent(content *ServerContent) {
	if content.Interrupted {
		t.opts.Publish(events.Interrupted{})
	}
	if tr := content.InputTranscription; tr != nil && (tr.Text != "" || tr.Finished) {
		t.opts.Publish(events.TranscriptUpdate{Role: events.RoleUser, Text: tr.Text, IsFinal: tr.Finished})
	}
	if tr := content.OutputTranscription; tr != nil && (tr.Text != "" || tr.Finished) {
		t.opts.Publish(events.TranscriptUpdate{Role: events.RoleAssistant, Text: tr.Text, IsFinal: tr.Finished})
	}
	if content.ModelTurn != nil {
		for i := range content.ModelTurn.Parts {
			t.processPart(&content.ModelTurn.Parts[i])
		}
	}
	if content.TurnComplete {
		t.opts.Publish(events.TurnComplete{})
	}
}

// processPart publishes one event per part: audio/pcm inline data is audio,
// text and every other inline type is content.
func (t *Transport) processPart(part *Part) {
	if part.InlineData != nil {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			t.log.Warn("failed to decode inline data", "mime_type", part.InlineData.MimeType, "error", err)
			return
		}
		mime := part.InlineData.MimeType
		if audio.IsPCMMIMEType(mime) {
			t.opts.Publish(events.AudioChunk{
				Data:       data,
				MIMEType:   mime,
				SampleRate: audio.ParseRate(mime, defaultOutputSampleRate),
			})
			return
		}
		t.opts.Publish(events.ContentDelta{MIMEType: mime, Data: data})
		return
	}
	if part.Text != "" {
		t.opts.Publish(events.ContentDelta{Text: part.Text})
	}
}

func (t *Transport) logOutbound(name string, msg map[string]any) {
	if !t.opts.EventLog {
		return
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	t.opts.Publish(events.ProtocolEvent{Direction: events.DirectionOutbound, Name: name, Payload: summarize(raw)})
}

func (t *Transport) logInbound(name string, raw []byte) {
	if !t.opts.EventLog {
		return
	}
	t.opts.Publish(events.ProtocolEvent{Direction: events.DirectionInbound, Name: name, Payload: summarize(raw)})
}
