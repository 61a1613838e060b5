// Package openai implements the continuous-media transport for the OpenAI
// Realtime API over WebRTC.
//
// Microphone audio flows on a live RTP track encoded with the session codec
// (PCMU, PCMA or Opus); model audio arrives on the remote track. JSON client
// and server events travel on the "oai-events" data channel. Turn detection
// is either server VAD or push-to-talk, fixed when the session connects.
package openai

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

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/AltairaLabs/mediasession/audio"
	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/events"
	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/media"
	"github.com/AltairaLabs/mediasession/transport"
)

const component = "openai"

// Session timing constants
const (
	DefaultHandshakeTimeout = 10 * time.Second
	closeWait               = 2 * time.Second
)

// errCancelNotActive is the server error for response.cancel with no response
// in flight. Interrupt is fire-and-forget, so it is not surfaced.
const errCancelNotActive = "response_cancel_not_active"

type state int

const (
	stateIdle state = iota
	stateConnecting
	stateConnected
	stateClosed
)

// Option customizes a Transport.
type Option func(*Transport)

// WithHTTPClient sets the client used for the SDP exchange.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		if c != nil {
			t.httpClient = c
		}
	}
}

// WithHandshakeTimeout bounds negotiation, from offer to data channel open.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.handshakeTimeout = d
		}
	}
}

// WithConfiguration sets the peer connection configuration (ICE servers).
func WithConfiguration(cfg webrtc.Configuration) Option {
	return func(t *Transport) {
		t.rtcConfig = cfg
	}
}

// Transport is a single-use OpenAI Realtime WebRTC session.
type Transport struct {
	opts             transport.Options
	endpoint         string
	model            string
	httpClient       *http.Client
	rtcConfig        webrtc.Configuration
	handshakeTimeout time.Duration
	log              *slog.Logger
	queue            *transport.Queue
	videoOnce        sync.Once

	mu     sync.Mutex
	state  state
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	track  *webrtc.TrackLocalStaticSample
	codec  audio.Codec
	format string

	// pending holds encoded-rate PCM not yet filling a frame. Only the
	// queue worker touches it.
	pending []byte

	closeOnce sync.Once
}

var (
	_ transport.Transport      = (*Transport)(nil)
	_ transport.TurnController = (*Transport)(nil)
)

// New creates a Transport. opts.Credential must be an ephemeral client secret.
func New(opts transport.Options, options ...Option) *Transport {
	t := &Transport{
		opts:             opts,
		endpoint:         opts.Endpoint,
		model:            opts.Model,
		handshakeTimeout: DefaultHandshakeTimeout,
		log:              logger.Component("transport.openai").With("session_id", opts.SessionID),
	}
	if t.endpoint == "" {
		t.endpoint = DefaultEndpoint
	}
	if t.model == "" {
		t.model = DefaultModel
	}
	for _, o := range options {
		o(t)
	}
	if t.httpClient == nil {
		t.httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	t.queue = transport.NewQueue(opts.QueueSize, t.writeChunk, t.onWriteError)
	return t
}

// Provider returns "openai".
func (t *Transport) Provider() string { return transport.ProviderOpenAI }

// Kind returns "webrtc".
func (t *Transport) Kind() string { return transport.KindWebRTC }

// Connected reports whether negotiation completed and the transport is open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateConnected
}

// Codec returns the negotiated codec name, or "" before Connect.
func (t *Transport) Codec() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.codec == nil {
		return ""
	}
	return t.codec.Name()
}

// Connect negotiates the peer connection, waits for the data channel and
// sends session.update. Every failure is a KindHandshakeFailed error.
func (t *Transport) Connect(ctx context.Context) error {
	if t.opts.Credential == "" {
		return mserrors.Newf(mserrors.KindCredentialMissing, component, "connect", "no ephemeral key")
	}

	codecName := t.opts.Codec
	if codecName == "" {
		codecName = audio.CodecPCMU
	}
	codec, err := audio.NewCodec(codecName)
	if err != nil {
		return mserrors.New(mserrors.KindHandshakeFailed, component, "connect", err)
	}
	params, err := rtpCodecParameters(codec)
	if err != nil {
		return mserrors.New(mserrors.KindHandshakeFailed, component, "connect", err)
	}

	t.mu.Lock()
	switch t.state {
	case stateClosed:
		t.mu.Unlock()
		return transport.ErrClosed
	case stateConnecting, stateConnected:
		t.mu.Unlock()
		return errors.New("openai transport already connected")
	}
	t.state = stateConnecting
	t.codec = codec
	t.format = AudioFormatForCodec(codec.Name())
	t.mu.Unlock()

	t.log.Debug("connecting", "endpoint", t.endpoint, "model", t.model, "codec", codec.Name(),
		"push_to_talk", t.opts.PushToTalk)

	hsCtx, cancel := context.WithTimeout(ctx, t.handshakeTimeout)
	defer cancel()

	if err := t.establish(hsCtx, params); err != nil {
		t.shutdown("handshake failed")
		return mserrors.Wrap(err, mserrors.KindHandshakeFailed, component, "connect")
	}

	t.mu.Lock()
	if t.state != stateConnecting {
		t.mu.Unlock()
		return mserrors.New(mserrors.KindHandshakeFailed, component, "connect", transport.ErrClosed)
	}
	t.state = stateConnected
	t.mu.Unlock()

	t.queue.Start()
	t.log.Info("session established", "model", t.model, "codec", codec.Name())
	t.opts.Publish(events.ConnectionOpened{Provider: t.Provider(), Transport: t.Kind()})
	return nil
}

func (t *Transport) establish(ctx context.Context, params webrtc.RTPCodecParameters) error {
	pc, err := newPeerConnection(params, t.rtcConfig)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		_ = pc.Close()
		return transport.ErrClosed
	}
	t.pc = pc
	t.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticSample(params.RTPCodecCapability, "audio", "mediasession")
	if err != nil {
		return fmt.Errorf("failed to create local audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}

	dc, err := pc.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	opened := make(chan struct{})
	var openOnce sync.Once
	dc.OnOpen(func() { openOnce.Do(func() { close(opened) }) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) { t.handleServerEvent(msg.Data) })
	dc.OnClose(func() { t.onPeerLost("data channel closed", false) })

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		t.log.Debug("remote audio track received", "codec", remote.Codec().MimeType)
		go t.readTrack(remote)
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		t.log.Debug("peer connection state changed", "state", s.String())
		switch s {
		case webrtc.PeerConnectionStateFailed:
			t.onPeerLost("peer connection failed", true)
		case webrtc.PeerConnectionStateClosed:
			t.onPeerLost("peer connection closed", false)
		}
	})

	offer, err := createOffer(ctx, pc)
	if err != nil {
		return err
	}
	answer, err := exchangeSDP(ctx, t.httpClient, t.endpoint, t.model, t.opts.Credential, offer)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	select {
	case <-opened:
	case <-ctx.Done():
		return fmt.Errorf("data channel did not open: %w", ctx.Err())
	}

	t.mu.Lock()
	t.dc = dc
	t.track = track
	codec := t.codec
	t.mu.Unlock()

	return t.writeEvent(dc, "session.update", sessionUpdate(buildSessionConfig(&t.opts, codec.Name())))
}

// Send queues an audio chunk for the RTP track. Video is not supported by
// this transport and is dropped.
func (t *Transport) Send(chunk media.Chunk) {
	if !chunk.IsAudio() {
		t.videoOnce.Do(func() {
			t.log.Info("video is not supported over WebRTC, dropping frames", "mime_type", chunk.MIMEType)
		})
		return
	}
	if !t.Connected() {
		t.queue.Drop("not connected")
		return
	}
	t.queue.Push(chunk)
}

// writeChunk resamples to the codec clock rate and writes 20 ms samples.
func (t *Transport) writeChunk(chunk media.Chunk) error {
	t.mu.Lock()
	track, codec := t.track, t.codec
	t.mu.Unlock()
	if track == nil || codec == nil {
		return transport.ErrNotConnected
	}

	rate := audio.ParseRate(chunk.MIMEType, audio.SampleRate16kHz)
	pcm, err := audio.ResamplePCM16(chunk.Data, rate, codec.ClockRate())
	if err != nil {
		return err
	}
	t.pending = append(t.pending, pcm...)

	frameBytes := codec.ClockRate() * int(frameDuration/time.Millisecond) / 1000 * audio.BytesPerSample
	off := 0
	for len(t.pending)-off >= frameBytes {
		payload, err := codec.Encode(t.pending[off : off+frameBytes])
		off += frameBytes
		if err != nil {
			return err
		}
		if err := track.WriteSample(pionmedia.Sample{Data: payload, Duration: frameDuration}); err != nil {
			return err
		}
	}
	t.pending = append(t.pending[:0], t.pending[off:]...)
	return nil
}

func (t *Transport) onWriteError(err error) {
	if errors.Is(err, transport.ErrNotConnected) {
		return
	}
	t.log.Warn("failed to write audio sample", "error", err)
}

// readTrack decodes remote RTP into AudioChunk events until the track ends.
func (t *Transport) readTrack(remote *webrtc.TrackRemote) {
	t.mu.Lock()
	codec := t.codec
	t.mu.Unlock()
	if codec == nil {
		return
	}
	rate := codec.ClockRate()
	mime := audio.PCMMIMEType(rate)

	buf := make([]byte, rtpBufferSize)
	for {
		n, _, err := remote.Read(buf)
		if err != nil {
			return
		}
		pkt := &rtp.Packet{}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			t.log.Debug("failed to unmarshal RTP packet", "error", err)
			continue
		}
		if len(pkt.Payload) == 0 || !t.Connected() {
			continue
		}
		pcm, err := codec.Decode(pkt.Payload)
		if err != nil {
			t.log.Debug("audio decode failed", "error", err)
			continue
		}
		t.opts.Publish(events.AudioChunk{Data: pcm, MIMEType: mime, SampleRate: rate})
	}
}

// SendText adds a user message and requests a response.
func (t *Transport) SendText(text string) error {
	if err := t.sendEvent("conversation.item.create", userTextItem(text)); err != nil {
		return err
	}
	return t.sendEvent("response.create", newClientEvent("response.create"))
}

// Interrupt cancels the in-flight response and discards unplayed server audio.
func (t *Transport) Interrupt() error {
	if err := t.sendEvent("response.cancel", newClientEvent("response.cancel")); err != nil {
		return err
	}
	return t.sendEvent("output_audio_buffer.clear", newClientEvent("output_audio_buffer.clear"))
}

// StartTurn clears the server input buffer.
func (t *Transport) StartTurn() error {
	if !t.opts.PushToTalk {
		return transport.ErrNotPushToTalk
	}
	return t.sendEvent("input_audio_buffer.clear", newClientEvent("input_audio_buffer.clear"))
}

// EndTurn commits the input buffer and requests a response once the audio
// queued before it has been written to the track.
func (t *Transport) EndTurn() error {
	if !t.opts.PushToTalk {
		return transport.ErrNotPushToTalk
	}
	if !t.Connected() {
		return transport.ErrNotConnected
	}
	ok := t.queue.PushFunc(func() error {
		if err := t.sendEvent("input_audio_buffer.commit", newClientEvent("input_audio_buffer.commit")); err != nil {
			return err
		}
		return t.sendEvent("response.create", newClientEvent("response.create"))
	})
	if !ok {
		return mserrors.Newf(mserrors.KindTransportError, component, "end_turn", "outbound queue full")
	}
	return nil
}

func (t *Transport) sendEvent(name string, v any) error {
	t.mu.Lock()
	dc := t.dc
	connected := t.state == stateConnected
	t.mu.Unlock()
	if !connected || dc == nil {
		return transport.ErrNotConnected
	}
	return t.writeEvent(dc, name, v)
}

func (t *Transport) writeEvent(dc *webrtc.DataChannel, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := dc.SendText(string(raw)); err != nil {
		return mserrors.New(mserrors.KindTransportError, component, name, err)
	}
	if t.opts.EventLog {
		t.opts.Publish(events.ProtocolEvent{Direction: events.DirectionOutbound, Name: name, Payload: summarize(raw)})
	}
	return nil
}

// handleServerEvent maps one data channel message to events.
func (t *Transport) handleServerEvent(raw []byte) {
	ev, err := ParseServerEvent(raw)
	if err != nil {
		t.log.Warn("failed to parse server event", "error", err)
		return
	}
	if t.opts.EventLog {
		var base ServerEvent
		_ = json.Unmarshal(raw, &base)
		t.opts.Publish(events.ProtocolEvent{Direction: events.DirectionInbound, Name: base.Type, Payload: summarize(raw)})
	}

	switch e := ev.(type) {
	case *ErrorEvent:
		t.handleError(e)
	case *SessionCreatedEvent:
		t.log.Debug("session created", "id", e.Session.ID, "model", e.Session.Model)
	case *SessionUpdatedEvent:
		t.log.Debug("session updated", "turn_detection", e.Session.TurnDetection != nil)
	case *InputAudioBufferSpeechStartedEvent:
		t.opts.Publish(events.Interrupted{})
		t.opts.Publish(events.SpeechActivity{Role: events.RoleUser, Active: true})
	case *InputAudioBufferSpeechStoppedEvent:
		t.opts.Publish(events.SpeechActivity{Role: events.RoleUser, Active: false})
	case *ConversationItemInputAudioTranscriptionCompletedEvent:
		t.opts.Publish(events.TranscriptUpdate{Role: events.RoleUser, Text: e.Transcript, IsFinal: true})
	case *ConversationItemInputAudioTranscriptionFailedEvent:
		t.log.Warn("input transcription failed", "item_id", e.ItemID, "error", e.Error.Message)
	case *ResponseDeltaEvent:
		t.handleDelta(e)
	case *ResponseAudioTranscriptDoneEvent:
		t.opts.Publish(events.TranscriptUpdate{Role: events.RoleAssistant, Text: e.Transcript, IsFinal: true})
	case *ResponseDoneEvent:
		t.opts.Publish(events.TurnComplete{})
	}
}

func (t *Transport) handleError(e *ErrorEvent) {
	if e.Error.Code == errCancelNotActive {
		t.log.Debug("cancel ignored, no active response")
		return
	}
	t.log.Error("server error", "type", e.Error.Type, "code", e.Error.Code, "message", e.Error.Message)
	msg := e.Error.Message
	if msg == "" {
		msg = "unknown error"
	}
	err := mserrors.Newf(mserrors.KindProviderError, component, "server_event", "%s", msg).
		WithDetails(map[string]any{"type": e.Error.Type, "code": e.Error.Code})
	t.opts.Publish(events.ErrorFrom(err, mserrors.KindProviderError))
}

func (t *Transport) handleDelta(e *ResponseDeltaEvent) {
	switch e.Type {
	case "response.text.delta":
		t.opts.Publish(events.ContentDelta{Text: e.Delta})
	case "response.audio_transcript.delta":
		t.opts.Publish(events.TranscriptUpdate{Role: events.RoleAssistant, Text: e.Delta})
	case "response.audio.delta":
		data, err := base64.StdEncoding.DecodeString(e.Delta)
		if err != nil {
			t.log.Warn("failed to decode audio delta", "error", err)
			return
		}
		pcm, rate := t.decodeDelta(data)
		t.opts.Publish(events.AudioChunk{Data: pcm, MIMEType: audio.PCMMIMEType(rate), SampleRate: rate})
	}
}

// decodeDelta converts audio delta bytes in the session output format to PCM16.
func (t *Transport) decodeDelta(data []byte) ([]byte, int) {
	t.mu.Lock()
	format := t.format
	t.mu.Unlock()
	switch format {
	case AudioFormatG711ULaw:
		return audio.DecodeMuLaw(data), audio.SampleRate8kHz
	case AudioFormatG711ALaw:
		return audio.DecodeALaw(data), audio.SampleRate8kHz
	default:
		return data, pcm16SampleRate
	}
}

// onPeerLost tears down after the peer or data channel goes away on its own.
func (t *Transport) onPeerLost(reason string, failed bool) {
	if !t.Connected() {
		return
	}
	if failed {
		t.log.Error("connection lost", "reason", reason)
		err := mserrors.Newf(mserrors.KindTransportError, component, "peer", "%s", reason)
		t.opts.Publish(events.ErrorFrom(err, mserrors.KindTransportError))
	}
	t.shutdown(reason)
}

// Close releases the peer connection. It is safe before Connect, idempotent,
// and bounded when called from an event listener.
func (t *Transport) Close() error {
	t.shutdown("client closed")
	return nil
}

func (t *Transport) shutdown(reason string) {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return
	}
	wasConnected := t.state == stateConnected
	t.state = stateClosed
	pc := t.pc
	t.mu.Unlock()

	t.queue.Stop()
	if pc != nil {
		done := make(chan struct{})
		go func() {
			if err := pc.Close(); err != nil {
				t.log.Debug("peer connection close", "error", err)
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeWait):
			t.log.Warn("peer connection close still in progress")
		}
	}

	if wasConnected {
		t.closeOnce.Do(func() {
			t.log.Info("session closed", "reason", reason, "dropped_chunks", t.queue.Dropped())
			t.opts.Publish(events.ConnectionClosed{Reason: reason})
		})
	}
}
