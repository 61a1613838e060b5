package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/AltairaLabs/mediasession/events"
)

// errQuit ends the run loop without reporting a failure.
var errQuit = errors.New("quit")

const consoleHelp = `commands:
  <text>       send a text turn
  /interrupt   stop the model reply
  /talk        start a push-to-talk turn
  /send        end the push-to-talk turn
  /mute        mute the microphone
  /unmute      unmute the microphone
  /playback    toggle speaker output
  /video       toggle camera frames
  /status      show session state
  /quit        disconnect and exit`

// controls is the part of session.Controller the console drives.
type controls interface {
	SendText(text string) error
	Interrupt() error
	StartTalking() error
	StopTalking() error
	SetMuted(muted bool)
	TogglePlayback() bool
	SetVideoEnabled(enabled bool)
	VideoEnabled() bool
	Status() events.Status
	SessionID() string
	InputVolume() float64
	OutputVolume() float64
}

// console executes typed lines against a session.
type console struct {
	ctrl controls
	out  io.Writer
}

// exec runs one input line. It returns errQuit for /quit.
func (c *console) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.ctrl.SendText(line)
	}
	switch strings.ToLower(line) {
	case "/quit", "/exit":
		return errQuit
	case "/interrupt":
		return c.ctrl.Interrupt()
	case "/talk":
		return c.ctrl.StartTalking()
	case "/send":
		return c.ctrl.StopTalking()
	case "/mute":
		c.ctrl.SetMuted(true)
	case "/unmute":
		c.ctrl.SetMuted(false)
	case "/playback":
		fmt.Fprintf(c.out, "* playback %s\n", onOff(c.ctrl.TogglePlayback()))
	case "/video":
		enabled := !c.ctrl.VideoEnabled()
		c.ctrl.SetVideoEnabled(enabled)
		fmt.Fprintf(c.out, "* video %s\n", onOff(enabled))
	case "/status":
		fmt.Fprintf(c.out, "* %s session=%s in=%.2f out=%.2f\n",
			c.ctrl.Status(), c.ctrl.SessionID(), c.ctrl.InputVolume(), c.ctrl.OutputVolume())
	case "/help":
		fmt.Fprintln(c.out, consoleHelp)
	default:
		fmt.Fprintf(c.out, "unknown command %q, try /help\n", line)
	}
	return nil
}

// run reads lines from in until ctx ends, in is exhausted or /quit. Command
// failures are printed and do not stop the loop.
func (c *console) run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			err := c.exec(line)
			if errors.Is(err, errQuit) {
				return err
			}
			if err != nil {
				fmt.Fprintf(c.out, "! %v\n", err)
			}
		}
	}
}

// printer renders session events as terminal lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

var _ events.Listener = (*printer)(nil)

func (p *printer) OnEvent(e *events.Event) {
	line := render(e)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func render(e *events.Event) string {
	switch d := e.Data.(type) {
	case events.StatusChanged:
		return fmt.Sprintf("* %s", d.To)
	case events.TranscriptUpdate:
		if !d.IsFinal {
			return ""
		}
		return fmt.Sprintf("[%s] %s", d.Role, d.Text)
	case events.ContentDelta:
		if d.Text == "" {
			return ""
		}
		return fmt.Sprintf("[%s] %s", events.RoleAssistant, d.Text)
	case events.SpeechActivity:
		if d.Role != events.RoleUser {
			return ""
		}
		if d.Active {
			return "* listening"
		}
		return "* heard you"
	case events.Interrupted:
		return "* interrupted"
	case events.Error:
		return fmt.Sprintf("! %s: %s", d.Kind, d.Message)
	case events.ConnectionClosed:
		return fmt.Sprintf("* connection closed (%d %s)", d.Code, d.Reason)
	case events.ProtocolEvent:
		if d.Direction == events.DirectionOutbound {
			return ">> " + d.Name
		}
		return "<< " + d.Name
	default:
		return ""
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
