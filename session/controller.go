// Package session provides the Controller, which owns one realtime media
// session at a time: it resolves credentials, opens a provider transport,
// runs microphone capture and speaker playback, re-exposes inbound events to
// subscribers and tears everything down on Disconnect or a fatal error.
//
// Lifecycle:
//
//	Disconnected -> Connecting -> Connected -> Disconnected
//
// There is no reconnecting state. A dropped connection lands in
// Disconnected and retrying is up to the caller.
package session

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/AltairaLabs/mediasession/capture"
	"github.com/AltairaLabs/mediasession/credentials"
	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/events"
	"github.com/AltairaLabs/mediasession/logger"
	"github.com/AltairaLabs/mediasession/media"
	"github.com/AltairaLabs/mediasession/playback"
	"github.com/AltairaLabs/mediasession/transport"
	"github.com/AltairaLabs/mediasession/transport/gemini"
	"github.com/AltairaLabs/mediasession/transport/openai"
)

const component = "session"

const (
	// DefaultHandshakeTimeout bounds credential resolution plus the
	// transport handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultVolumeInterval is how often the output level is sampled.
	DefaultVolumeInterval = 50 * time.Millisecond
)

// Errors returned by the Controller.
var (
	// ErrCancelled is returned by Connect when Disconnect interrupted it.
	ErrCancelled = errors.New("connect cancelled by disconnect")
)

// TransportFactory builds a transport for a provider.
type TransportFactory func(provider string, opts transport.Options) (transport.Transport, error)

// DefaultTransportFactory builds the Gemini Live WebSocket transport or the
// OpenAI Realtime WebRTC transport.
func DefaultTransportFactory(provider string, opts transport.Options) (transport.Transport, error) {
	switch provider {
	case transport.ProviderGemini:
		return gemini.New(opts), nil
	case transport.ProviderOpenAI:
		return openai.New(opts), nil
	}
	return nil, mserrors.Newf(mserrors.KindConfigurationConflict, component, "connect",
		"unsupported provider %q", provider)
}

// Option configures a Controller.
type Option func(*Controller)

// WithTransportFactory replaces DefaultTransportFactory.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Controller) {
		c.factory = f
	}
}

// WithMicrophone sets the capture device. Defaults to capture.DefaultDevice().
func WithMicrophone(d capture.Device) Option {
	return func(c *Controller) {
		c.microphone = d
	}
}

// WithCamera enables video capture from src.
func WithCamera(src capture.FrameSource) Option {
	return func(c *Controller) {
		c.camera = src
	}
}

// WithVideoInterval overrides the camera frame interval.
func WithVideoInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.videoInterval = d
	}
}

// WithSpeaker sets the playback device. Defaults to playback.DefaultDevice().
func WithSpeaker(d playback.Device) Option {
	return func(c *Controller) {
		c.speaker = d
	}
}

// WithPlaybackClock sets the clock driving the playback timeline.
func WithPlaybackClock(clk clock.PassiveClock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithBootstrap sets the credential bootstrap endpoint. It supplies the API key
// when none is configured, and OpenAI connections exchange the key there for
// an ephemeral session key.
func WithBootstrap(b *credentials.BootstrapClient) Option {
	return func(c *Controller) {
		c.bootstrap = b
	}
}

// WithGeminiTokenSource authenticates Gemini connections with OAuth bearer
// tokens instead of the API key.
func WithGeminiTokenSource(src credentials.Source) Option {
	return func(c *Controller) {
		c.tokenSource = src
	}
}

// WithHandshakeTimeout overrides DefaultHandshakeTimeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.handshakeTimeout = d
	}
}

// WithVolumeInterval overrides DefaultVolumeInterval.
func WithVolumeInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.volumeInterval = d
	}
}

// WithBus publishes to an existing bus instead of a private one.
func WithBus(bus *events.Bus) Option {
	return func(c *Controller) {
		c.bus = bus
	}
}

// Controller manages the session lifecycle. All methods are safe for
// concurrent use and may be called from event listeners.
type Controller struct {
	bus *events.Bus
	log *slog.Logger

	factory          TransportFactory
	microphone       capture.Device
	camera           capture.FrameSource
	speaker          playback.Device
	clock            clock.PassiveClock
	bootstrap        *credentials.BootstrapClient
	tokenSource      credentials.Source
	handshakeTimeout time.Duration
	volumeInterval   time.Duration
	videoInterval    time.Duration

	mu       sync.Mutex
	status   events.Status
	pending  Config
	active   *activeSession
	gen      uint64
	muted    bool
	playback bool
	video    bool

	inputLevel  atomic.Uint64
	outputLevel atomic.Uint64
}

// NewController creates a disconnected controller with DefaultConfig.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		log:              logger.Component(component),
		factory:          DefaultTransportFactory,
		handshakeTimeout: DefaultHandshakeTimeout,
		volumeInterval:   DefaultVolumeInterval,
		status:           events.StatusDisconnected,
		pending:          DefaultConfig(),
		playback:         true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bus == nil {
		c.bus = events.NewBus()
	}
	if c.microphone == nil {
		c.microphone = capture.DefaultDevice()
	}
	if c.speaker == nil {
		c.speaker = playback.DefaultDevice()
	}
	return c
}

// Bus returns the event bus inbound events are re-exposed on.
func (c *Controller) Bus() *events.Bus {
	return c.bus
}

// Subscribe registers listener for one event type. Repeat registration of
// the same listener is a no-op.
func (c *Controller) Subscribe(eventType events.EventType, listener events.Listener) {
	c.bus.Subscribe(eventType, listener)
}

// Unsubscribe removes listener. Safe to repeat.
func (c *Controller) Unsubscribe(eventType events.EventType, listener events.Listener) {
	c.bus.Unsubscribe(eventType, listener)
}

// SubscribeAll registers listener for every event type.
func (c *Controller) SubscribeAll(listener events.Listener) {
	c.bus.SubscribeAll(listener)
}

// Status returns the current lifecycle state.
func (c *Controller) Status() events.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SessionID returns the ID of the current session, or "" when disconnected.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.id
}

// Config returns the pending configuration.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// ActiveConfig returns the configuration of the current session.
func (c *Controller) ActiveConfig() (Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Config{}, false
	}
	return c.active.cfg, true
}

// InputVolume returns the latest microphone level in [0, 1].
func (c *Controller) InputVolume() float64 {
	return math.Float64frombits(c.inputLevel.Load())
}

// OutputVolume returns the latest playback level in [0, 1].
func (c *Controller) OutputVolume() float64 {
	return math.Float64frombits(c.outputLevel.Load())
}

// AssistantSpeaking reports whether model audio is being received.
func (c *Controller) AssistantSpeaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.speaking.Load()
}

// SetConfig applies a partial update to the pending configuration. While a
// session is active, changing the codec or push-to-talk mode is rejected
// with KindConfigurationConflict and nothing is applied.
func (c *Controller) SetConfig(u ConfigUpdate) error {
	c.mu.Lock()
	next := u.apply(c.pending)
	err := next.validate()
	if err == nil && c.active != nil {
		err = conflicts(c.active.cfg, next)
	}
	if err == nil {
		c.pending = next
	}
	id := c.sessionIDLocked()
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("configuration rejected", "error", err)
		c.publish(id, events.ErrorFrom(err, mserrors.KindConfigurationConflict))
	}
	return err
}

// Connect opens a session with the pending configuration and blocks until it
// is Connected or has failed. It is a no-op while a session is active.
//
// Without a usable credential it fails fast with KindCredentialMissing and
// touches no network resource. An unset API key with a bootstrap endpoint is
// fetched as part of the handshake. Any other failure lands in Disconnected
// with one Error event.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		c.log.Debug("connect ignored, session already active")
		return nil
	}
	cfg := c.pending
	source, err := c.credentialSource(cfg)
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("connect skipped", "error", err)
		c.publish("", events.ErrorFrom(err, mserrors.KindCredentialMissing))
		return err
	}

	c.gen++
	s := newActiveSession(c, c.gen, uuid.NewString(), cfg)
	c.active = s
	change := c.setStatusLocked(events.StatusConnecting)
	c.mu.Unlock()
	c.publishStatus(s.id, change)

	c.log.Info("connecting", "session_id", s.id, "provider", cfg.Provider, "model", cfg.Model)
	if err := c.establish(ctx, s, source); err != nil {
		if errors.Is(err, ErrCancelled) || !c.teardown(s, "connect failed") {
			return ErrCancelled
		}
		c.log.Error("connect failed", "session_id", s.id, "error", err)
		c.publish(s.id, events.ErrorFrom(err, mserrors.KindHandshakeFailed))
		return err
	}
	return nil
}

// credentialSource picks how cfg authenticates. An unset key is fetched from
// the bootstrap endpoint during the handshake; a placeholder fails here.
// Callers hold mu.
func (c *Controller) credentialSource(cfg Config) (credentials.Source, error) {
	if cfg.Provider == transport.ProviderGemini && c.tokenSource != nil {
		return c.tokenSource, nil
	}

	var key credentials.Source
	switch {
	case credentials.IsUnset(cfg.APIKey) && c.bootstrap != nil:
		key = credentials.EndpointSource{Client: c.bootstrap}
	case credentials.IsUsable(cfg.APIKey):
		key = credentials.Static(cfg.APIKey)
	default:
		return nil, credentials.ErrMissing("connect")
	}

	if cfg.Provider == transport.ProviderOpenAI && c.bootstrap != nil {
		return credentials.EphemeralSource{Client: c.bootstrap, Key: key}, nil
	}
	return key, nil
}

// establish runs the handshake for s and starts its media.
func (c *Controller) establish(ctx context.Context, s *activeSession, source credentials.Source) error {
	hsCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	cred, err := source.Resolve(hsCtx)
	if err != nil {
		return c.handshakeError(s, err)
	}

	opts := s.cfg.transportOptions()
	opts.SessionID = s.id
	opts.Credential = cred.Value
	opts.BearerAuth = cred.Bearer
	opts.Publisher = s
	t, err := c.factory(s.cfg.Provider, opts)
	if err != nil {
		return err
	}

	// Playback runs before the handshake so the first model audio is not lost.
	player := playback.NewPlayer(playback.Config{Device: c.speaker, Clock: c.clock})
	if err := player.Start(); err != nil {
		c.publish(s.id, events.ErrorFrom(err, mserrors.KindDeviceUnavailable))
	}
	c.mu.Lock()
	enabled := c.playback
	c.mu.Unlock()
	player.SetEnabled(enabled)

	if !s.attach(t, player) {
		_ = t.Close()
		player.Stop()
		return ErrCancelled
	}

	if err := t.Connect(hsCtx); err != nil {
		return c.handshakeError(s, err)
	}
	return c.startMedia(s)
}

func (c *Controller) handshakeError(s *activeSession, err error) error {
	if s.ctx.Err() != nil {
		return ErrCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) && mserrors.KindOf(err) == mserrors.KindUnknown {
		return mserrors.Newf(mserrors.KindHandshakeFailed, component, "connect",
			"handshake timed out after %s", c.handshakeTimeout)
	}
	return mserrors.Wrap(err, mserrors.KindHandshakeFailed, component, "connect")
}

// startMedia opens capture and marks the session Connected.
func (c *Controller) startMedia(s *activeSession) error {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()

	mic := capture.NewAudioPipeline(capture.AudioConfig{
		Device:  c.microphone,
		OnChunk: s.send,
		OnLevel: func(level float64) { c.onInputLevel(s, level) },
		OnError: func(err error) { c.publish(s.id, events.ErrorFrom(err, mserrors.KindDeviceUnavailable)) },
	})
	mic.SetMuted(muted)

	var video *capture.VideoLoop
	if c.camera != nil {
		video = capture.NewVideoLoop(capture.VideoConfig{
			Source:   c.camera,
			Interval: c.videoInterval,
			Active:   s.connected,
			OnChunk:  s.send,
		})
	}

	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return ErrCancelled
	}
	s.mu.Lock()
	s.capture = mic
	s.video = video
	s.live.Store(true)
	s.mu.Unlock()
	// Read c.video under the same lock that publishes s.video.
	if c.video && video != nil {
		video.Start()
	}
	change := c.setStatusLocked(events.StatusConnected)
	c.mu.Unlock()
	c.publishStatus(s.id, change)

	if err := mic.Start(); err != nil {
		c.publish(s.id, events.ErrorFrom(err, mserrors.KindDeviceUnavailable))
	}
	go c.volumeLoop(s)

	c.log.Info("connected", "session_id", s.id, "provider", s.cfg.Provider)
	return nil
}

// Disconnect ends the session, if any. It is idempotent, never blocks on the
// network and always ends in Disconnected.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s == nil {
		return
	}
	c.teardown(s, "disconnect")
}

// teardown releases s if it is still the active session. It returns false
// when s had already been released.
func (c *Controller) teardown(s *activeSession, reason string) bool {
	c.mu.Lock()
	if c.active != s {
		c.mu.Unlock()
		return false
	}
	c.active = nil
	s.retire()
	change := c.setStatusLocked(events.StatusDisconnected)
	c.mu.Unlock()

	c.log.Info("tearing down session", "session_id", s.id, "reason", reason)
	if err := s.shutdown(); err != nil {
		c.log.Warn("session teardown reported an error", "session_id", s.id, "error", err)
	}
	c.inputLevel.Store(0)
	c.outputLevel.Store(0)
	if s.speaking.Swap(false) {
		c.publish(s.id, events.SpeechActivity{Role: events.RoleAssistant, Active: false})
	}
	c.publishStatus(s.id, change)
	return true
}

// SendText sends a user text turn. Without a connected session it publishes
// an Error event and returns transport.ErrNotConnected.
func (c *Controller) SendText(text string) error {
	s := c.connectedSession()
	if s == nil {
		return c.notConnected("send_text")
	}
	if err := s.transport.SendText(text); err != nil {
		c.publish(s.id, events.ErrorFrom(err, mserrors.KindTransportError))
		return err
	}
	return nil
}

// Interrupt flushes local playback and asks the provider to cancel the
// in-flight response.
func (c *Controller) Interrupt() error {
	s := c.connectedSession()
	if s == nil {
		return c.notConnected("interrupt")
	}
	s.interruptPlayback()
	return s.transport.Interrupt()
}

// StartTalking opens a push-to-talk turn. It is a no-op unless the session
// uses push-to-talk.
func (c *Controller) StartTalking() error {
	s := c.connectedSession()
	if s == nil {
		return c.notConnected("start_talking")
	}
	tc, ok := s.transport.(transport.TurnController)
	if !s.cfg.PushToTalk || !ok {
		return nil
	}
	s.interruptPlayback()
	return tc.StartTurn()
}

// StopTalking ends a push-to-talk turn and requests a response. It is a
// no-op unless the session uses push-to-talk.
func (c *Controller) StopTalking() error {
	s := c.connectedSession()
	if s == nil {
		return c.notConnected("stop_talking")
	}
	tc, ok := s.transport.(transport.TurnController)
	if !s.cfg.PushToTalk || !ok {
		return nil
	}
	return tc.EndTurn()
}

// SetMuted suppresses microphone chunks while keeping the device open. The
// setting persists across sessions.
func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	var mic *capture.AudioPipeline
	id := c.sessionIDLocked()
	if c.active != nil {
		mic = c.active.capture
	}
	c.mu.Unlock()

	if mic != nil {
		mic.SetMuted(muted)
	}
	if muted {
		c.inputLevel.Store(0)
		c.publish(id, events.Volume{Direction: events.DirectionOutbound, Level: 0})
	}
}

// Muted reports whether the microphone is muted.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// SetPlaybackEnabled toggles the speaker. Disabling flushes queued audio.
func (c *Controller) SetPlaybackEnabled(enabled bool) {
	c.mu.Lock()
	c.playback = enabled
	var player *playback.Player
	if c.active != nil {
		player = c.active.player
	}
	c.mu.Unlock()
	if player != nil {
		player.SetEnabled(enabled)
	}
}

// TogglePlayback flips the speaker state and returns the new one.
func (c *Controller) TogglePlayback() bool {
	enabled := !c.PlaybackEnabled()
	c.SetPlaybackEnabled(enabled)
	return enabled
}

// PlaybackEnabled reports whether the speaker is enabled.
func (c *Controller) PlaybackEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playback
}

// SetVideoEnabled toggles camera capture. Without a camera or a connected
// session the loop does not run; the setting applies on the next Connect.
func (c *Controller) SetVideoEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.video = enabled
	if c.active == nil || c.active.video == nil {
		return
	}
	if enabled {
		c.active.video.Start()
	} else {
		c.active.video.Stop()
	}
}

// VideoEnabled reports whether camera capture is requested.
func (c *Controller) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

func (c *Controller) connectedSession() *activeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || !c.active.live.Load() {
		return nil
	}
	return c.active
}

func (c *Controller) notConnected(op string) error {
	err := mserrors.New(mserrors.KindTransportError, component, op, transport.ErrNotConnected)
	c.log.Warn("operation requires a connected session", "operation", op)
	c.publish("", events.ErrorFrom(err, mserrors.KindTransportError))
	return transport.ErrNotConnected
}

func (c *Controller) sessionIDLocked() string {
	if c.active == nil {
		return ""
	}
	return c.active.id
}

type statusChange struct {
	from, to events.Status
}

// setStatusLocked moves to status. Callers hold mu and pass the result to
// publishStatus after unlocking.
func (c *Controller) setStatusLocked(status events.Status) *statusChange {
	if c.status == status {
		return nil
	}
	change := &statusChange{from: c.status, to: status}
	c.status = status
	return change
}

func (c *Controller) publishStatus(id string, change *statusChange) {
	if change == nil {
		return
	}
	c.log.Debug("status changed", "session_id", id, "from", change.from, "to", change.to)
	c.publish(id, events.StatusChanged{From: change.from, To: change.to})
}

func (c *Controller) publish(id string, data events.Data) {
	c.bus.Publish(events.New(id, data))
}

func (c *Controller) onInputLevel(s *activeSession, level float64) {
	if !s.live.Load() {
		return
	}
	c.inputLevel.Store(math.Float64bits(level))
	c.publish(s.id, events.Volume{Direction: events.DirectionOutbound, Level: level})
}

// volumeLoop samples the playback level until the session ends.
func (c *Controller) volumeLoop(s *activeSession) {
	ticker := time.NewTicker(c.volumeInterval)
	defer ticker.Stop()
	last := -1.0
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
		level := s.player.Level()
		if level == last {
			continue
		}
		last = level
		c.outputLevel.Store(math.Float64bits(level))
		c.publish(s.id, events.Volume{Direction: events.DirectionInbound, Level: level})
	}
}

// handle runs for every event a session's transport publishes.
func (c *Controller) handle(s *activeSession, e *events.Event) {
	if s.retired.Load() {
		// A retired session only reports its own closure.
		if e.Type == events.EventConnectionClosed {
			c.bus.Publish(e)
		}
		return
	}

	switch d := e.Data.(type) {
	case events.AudioChunk:
		if err := s.player.Enqueue(d.Data, d.SampleRate); err != nil && !errors.Is(err, playback.ErrNotStarted) {
			c.log.Warn("failed to enqueue audio", "session_id", s.id, "error", err)
		}
		if !s.speaking.Swap(true) {
			defer c.publish(s.id, events.SpeechActivity{Role: events.RoleAssistant, Active: true})
		}
	case events.Interrupted:
		s.interruptPlayback()
	case events.TurnComplete:
		if s.speaking.Swap(false) {
			defer c.publish(s.id, events.SpeechActivity{Role: events.RoleAssistant, Active: false})
		}
	}

	c.bus.Publish(e)

	switch d := e.Data.(type) {
	case events.Error:
		if d.Kind.Fatal() {
			c.teardown(s, "fatal "+d.Kind.String())
		}
	case events.ConnectionClosed:
		c.teardown(s, "connection closed")
	}
}

// activeSession is one Connecting or Connected session.
type activeSession struct {
	c   *Controller
	gen uint64
	id  string
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	transport transport.Transport
	player    *playback.Player
	capture   *capture.AudioPipeline
	video     *capture.VideoLoop

	live     atomic.Bool
	retired  atomic.Bool
	speaking atomic.Bool
}

var _ events.Publisher = (*activeSession)(nil)

func newActiveSession(c *Controller, gen uint64, id string, cfg Config) *activeSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &activeSession{c: c, gen: gen, id: id, cfg: cfg, ctx: ctx, cancel: cancel}
}

// Publish routes transport events through the controller.
func (s *activeSession) Publish(e *events.Event) {
	s.c.handle(s, e)
}

// attach records the transport and player. It fails once the session has
// been retired.
func (s *activeSession) attach(t transport.Transport, player *playback.Player) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired.Load() {
		return false
	}
	s.transport = t
	s.player = player
	return true
}

func (s *activeSession) connected() bool {
	return s.live.Load() && !s.retired.Load()
}

func (s *activeSession) send(chunk media.Chunk) {
	if !s.connected() {
		return
	}
	s.transport.Send(chunk)
}

func (s *activeSession) interruptPlayback() {
	if s.player != nil {
		s.player.Interrupt()
	}
	if s.speaking.Swap(false) {
		s.c.publish(s.id, events.SpeechActivity{Role: events.RoleAssistant, Active: false})
	}
}

// retire marks the session stale so its transport can no longer affect the
// controller.
func (s *activeSession) retire() {
	s.mu.Lock()
	s.retired.Store(true)
	s.live.Store(false)
	s.mu.Unlock()
	s.cancel()
}

// shutdown releases every resource of a retired session.
func (s *activeSession) shutdown() error {
	s.mu.Lock()
	t, player, mic, video := s.transport, s.player, s.capture, s.video
	s.mu.Unlock()

	var g errgroup.Group
	if mic != nil {
		g.Go(func() error { mic.Stop(); return nil })
	}
	if video != nil {
		g.Go(func() error { video.Stop(); return nil })
	}
	if player != nil {
		g.Go(func() error { player.Stop(); return nil })
	}
	if t != nil {
		g.Go(t.Close)
	}
	return g.Wait()
}
