package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/mediasession/capture"
	"github.com/AltairaLabs/mediasession/config"
	"github.com/AltairaLabs/mediasession/credentials"
	"github.com/AltairaLabs/mediasession/events"
	"github.com/AltairaLabs/mediasession/logger"
	promexp "github.com/AltairaLabs/mediasession/metrics/prometheus"
	"github.com/AltairaLabs/mediasession/playback"
	"github.com/AltairaLabs/mediasession/session"
	"github.com/AltairaLabs/mediasession/telemetry"
)

// Run flags. Each is also readable from MEDIASESSION_<FLAG>.
const (
	flagConfig     = "config"
	flagProvider   = "provider"
	flagModel      = "model"
	flagVoice      = "voice"
	flagCodec      = "codec"
	flagPushToTalk = "push-to-talk"
	flagVideo      = "video"
	flagEventLog   = "event-log"
	flagNoAudio    = "no-audio"
	flagGoogleADC  = "google-adc"
)

const shutdownTimeout = 5 * time.Second

var errSessionEnded = errors.New("session ended")

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and run an interactive session",
		Long: `Connect to the configured provider, stream the microphone and play the
reply. Type a line to send text; /help lists console commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := resolveSpec(bindViper(cmd.Flags()))
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), spec, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringP(flagConfig, "c", "", "SessionConfig manifest")
	f.StringP(flagProvider, "p", "", "Provider: gemini or openai")
	f.String(flagAPIKey, "", "Provider API key")
	f.String(flagBootstrapURL, "", "Credential bootstrap server")
	f.Bool(flagGoogleADC, false, "Authenticate Gemini with Application Default Credentials")
	f.String(flagModel, "", "Model name")
	f.String(flagVoice, "", "Voice name")
	f.String(flagCodec, "", "WebRTC audio codec: pcmu, pcma or opus")
	f.Bool(flagPushToTalk, false, "Disable server turn detection; use /talk and /send")
	f.Bool(flagVideo, false, "Send webcam frames")
	f.Bool(flagEventLog, false, "Print provider protocol events")
	f.Bool(flagNoAudio, false, "Run without microphone and speaker")
	return cmd
}

// resolveSpec loads the manifest named by --config, or an empty one, and
// layers flag and environment overrides on top.
func resolveSpec(v *viper.Viper) (*config.Spec, error) {
	var spec config.Spec
	if path := v.GetString(flagConfig); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		spec = cfg.Spec
	}

	override(v, flagProvider, &spec.Session.Provider)
	override(v, flagModel, &spec.Session.Model)
	override(v, flagVoice, &spec.Session.Voice)
	override(v, flagCodec, &spec.Session.Codec)
	if v.IsSet(flagAPIKey) {
		spec.Credentials.APIKey = v.GetString(flagAPIKey)
		spec.Credentials.APIKeyEnv = ""
	}
	override(v, flagBootstrapURL, &spec.Credentials.BootstrapURL)
	overrideBool(v, flagPushToTalk, &spec.Session.PushToTalk)
	overrideBool(v, flagVideo, &spec.Video.Enabled)
	overrideBool(v, flagEventLog, &spec.Session.EventLog)
	overrideBool(v, flagGoogleADC, &spec.Credentials.GoogleADC)
	if v.GetBool(flagNoAudio) {
		spec.Audio.Input = config.DeviceNone
		spec.Audio.Output = config.DeviceNull
	}
	spec.ApplyDefaults()
	return &spec, nil
}

func override(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func overrideBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

// wiring holds what a run opened and must release.
type wiring struct {
	opts     []session.Option
	exporter *promexp.Exporter
	closers  []func(context.Context) error
	video    bool
	once     sync.Once
}

// close runs the closers in reverse order, once.
func (w *wiring) close() {
	w.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for i := len(w.closers) - 1; i >= 0; i-- {
			if err := w.closers[i](ctx); err != nil {
				logger.Warn("shutdown step failed", "error", err)
			}
		}
	})
}

// buildWiring turns spec into controller options and observability wiring.
func buildWiring(ctx context.Context, spec *config.Spec, bus *events.Bus) (*wiring, error) {
	rt := &wiring{opts: []session.Option{
		session.WithBus(bus),
		session.WithHandshakeTimeout(spec.HandshakeTimeout),
	}}

	if url := spec.Credentials.BootstrapURL; url != "" {
		rt.opts = append(rt.opts, session.WithBootstrap(credentials.NewBootstrapClient(url)))
	}
	if spec.Credentials.GoogleADC {
		ts, err := credentials.NewGoogleTokenSource(ctx)
		if err != nil {
			return nil, err
		}
		rt.opts = append(rt.opts, session.WithGeminiTokenSource(ts))
	}

	if spec.Audio.Input == config.DeviceNone {
		rt.opts = append(rt.opts, session.WithMicrophone(capture.NullDevice{}))
	}
	if spec.Audio.Output == config.DeviceNull {
		rt.opts = append(rt.opts, session.WithSpeaker(playback.NullDevice{}))
	}

	if spec.Video.Enabled {
		cam, err := capture.NewWebcam(capture.WebcamConfig{
			DeviceIndex: spec.Video.DeviceIndex,
			Width:       spec.Video.Width,
			Height:      spec.Video.Height,
			FPS:         spec.Video.FPS,
		})
		if err != nil {
			logger.Warn("video disabled", "error", err)
		} else {
			rt.opts = append(rt.opts, session.WithCamera(cam), session.WithVideoInterval(spec.Video.Interval))
			rt.video = true
		}
	}

	if spec.Metrics.Enabled {
		bus.SubscribeAll(promexp.NewMetricsListener())
		rt.exporter = promexp.NewExporter(spec.Metrics.ListenAddr, spec.Metrics.Path)
		rt.closers = append(rt.closers, rt.exporter.Shutdown)
	}

	if spec.Tracing.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.ProviderOptions{
			Endpoint:    spec.Tracing.Endpoint,
			Insecure:    spec.Tracing.Insecure,
			ServiceName: spec.Tracing.ServiceName,
			SampleRatio: spec.Tracing.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create tracer provider: %w", err)
		}
		otel.SetTracerProvider(tp)
		telemetry.SetupPropagation()
		bus.SubscribeAll(telemetry.NewSessionListener(ctx, telemetry.Tracer(tp)))
		rt.closers = append(rt.closers, tp.Shutdown)
	}
	return rt, nil
}

func runSession(ctx context.Context, spec *config.Spec, in io.Reader, out io.Writer) error {
	if err := logger.Configure(spec.LoggerConfig()); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus()
	bus.SubscribeAll(&printer{out: out})
	ended := make(chan struct{})
	var endOnce sync.Once
	bus.Subscribe(events.EventStatusChanged, events.Func(func(e *events.Event) {
		if d, ok := e.Data.(events.StatusChanged); ok && d.From == events.StatusConnected &&
			d.To == events.StatusDisconnected {
			endOnce.Do(func() { close(ended) })
		}
	}))

	rt, err := buildWiring(ctx, spec, bus)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := spec.SessionConfig()
	ctrl := session.NewController(rt.opts...)
	if err := ctrl.SetConfig(cfg.Update()); err != nil {
		return err
	}
	ctrl.SetVideoEnabled(rt.video)
	defer ctrl.Disconnect()

	g, gctx := errgroup.WithContext(ctx)
	if rt.exporter != nil {
		g.Go(func() error {
			if err := rt.exporter.Start(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	if err := ctrl.Connect(gctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "connected; type /help for commands")

	con := &console{ctrl: ctrl, out: out}
	g.Go(func() error { return con.run(gctx, in) })
	g.Go(func() error {
		select {
		case <-ended:
			return errSessionEnded
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		ctrl.Disconnect()
		rt.close()
		return nil
	})

	err = g.Wait()
	switch {
	case errors.Is(err, errQuit), errors.Is(err, errSessionEnded), errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}
