package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/AltairaLabs/mediasession/media"
)

// Webcam defaults.
const (
	DefaultWebcamWidth  = 640
	DefaultWebcamHeight = 480
	DefaultWebcamFPS    = 30
	defaultFrameTimeout = 5 * time.Second
	ffmpegBinary        = "ffmpeg"
)

// WebcamConfig selects the capture device.
type WebcamConfig struct {
	DeviceIndex int
	Width       int
	Height      int
	FPS         int
}

// Webcam grabs single frames by running ffmpeg against the platform camera
// input (avfoundation, v4l2 or dshow).
type Webcam struct {
	cfg     WebcamConfig
	binary  string
	goos    string
	stopped atomic.Bool
}

// NewWebcam checks that ffmpeg is installed and returns a frame source.
func NewWebcam(cfg WebcamConfig) (*Webcam, error) {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWebcamWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultWebcamHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultWebcamFPS
	}
	path, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return nil, mserrors.New(mserrors.KindDeviceUnavailable, component, "webcam",
			fmt.Errorf("ffmpeg not found: %w", err))
	}
	return &Webcam{cfg: cfg, binary: path, goos: runtime.GOOS}, nil
}

// Frame captures one frame.
func (w *Webcam) Frame(ctx context.Context) (image.Image, error) {
	if w.stopped.Load() {
		return nil, ErrCameraStopped
	}
	ctx, cancel := context.WithTimeout(ctx, defaultFrameTimeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.binary, w.args()...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, classifyFFmpegError(err, stderr.String())
	}
	return media.DecodeFrame(out)
}

// Stop releases the camera. Subsequent Frame calls return ErrCameraStopped.
func (w *Webcam) Stop() {
	w.stopped.Store(true)
}

func (w *Webcam) args() []string {
	fps := strconv.Itoa(w.cfg.FPS)
	size := fmt.Sprintf("%dx%d", w.cfg.Width, w.cfg.Height)

	var args []string
	switch w.goos {
	case "darwin":
		args = []string{"-f", "avfoundation", "-framerate", fps, "-video_size", size,
			"-i", strconv.Itoa(w.cfg.DeviceIndex)}
	case "windows":
		args = []string{"-f", "dshow", "-framerate", fps, "-video_size", size,
			"-i", fmt.Sprintf("video=%d", w.cfg.DeviceIndex)}
	default:
		args = []string{"-f", "v4l2", "-framerate", fps, "-video_size", size,
			"-i", fmt.Sprintf("/dev/video%d", w.cfg.DeviceIndex)}
	}
	return append(args,
		"-loglevel", "error",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
}

func classifyFFmpegError(err error, stderr string) error {
	msg := strings.TrimSpace(stderr)
	cause := fmt.Errorf("failed to capture frame: %w", err)
	if msg != "" {
		cause = fmt.Errorf("failed to capture frame: %w: %s", err, msg)
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "not authorized"):
		return mserrors.New(mserrors.KindPermissionDenied, component, "frame", cause)
	default:
		return mserrors.New(mserrors.KindDeviceUnavailable, component, "frame", cause)
	}
}
