// Package playback plays inbound model audio on a gap-free timeline.
//
// A Timeline does the scheduling bookkeeping: each enqueued buffer starts at
// max(next, now) and advances next by its duration, so back-to-back buffers
// never gap or overlap. A Player pairs a Timeline with an output device owned
// by the Player instance.
package playback

import (
	"math"
	"time"

	"k8s.io/utils/clock"

	"github.com/AltairaLabs/mediasession/audio"
)

const (
	// DecayHorizon is how far ahead audio must be scheduled for the output
	// level to be non-zero.
	DecayHorizon = 100 * time.Millisecond

	// levelWindow is the span of samples measured for the output level.
	levelWindow = 50 * time.Millisecond
)

// Segment is one scheduled buffer.
type Segment struct {
	Start   time.Time
	End     time.Time
	Samples []float32
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Timeline schedules segments at a fixed sample rate. It is not safe for
// concurrent use.
type Timeline struct {
	clock    clock.PassiveClock
	rate     int
	next     time.Time
	segments []Segment
}

// NewTimeline creates an empty timeline. A nil clock uses the wall clock.
func NewTimeline(rate int, c clock.PassiveClock) *Timeline {
	if c == nil {
		c = clock.RealClock{}
	}
	if rate <= 0 {
		rate = audio.SampleRate24kHz
	}
	return &Timeline{clock: c, rate: rate, next: c.Now()}
}

// SampleRate returns the timeline rate.
func (t *Timeline) SampleRate() int {
	return t.rate
}

// Schedule places samples at max(next, now) and advances next.
func (t *Timeline) Schedule(samples []float32) Segment {
	now := t.clock.Now()
	t.prune(now)

	start := t.next
	if start.Before(now) {
		start = now
	}
	d := time.Duration(len(samples)) * time.Second / time.Duration(t.rate)
	seg := Segment{Start: start, End: start.Add(d), Samples: samples}
	t.next = seg.End
	t.segments = append(t.segments, seg)
	return seg
}

// Reset drops every segment that has not finished and moves next to now.
func (t *Timeline) Reset() {
	t.segments = nil
	t.next = t.clock.Now()
}

// Next returns the time the next scheduled segment would start. It is never
// earlier than now.
func (t *Timeline) Next() time.Time {
	now := t.clock.Now()
	if t.next.Before(now) {
		return now
	}
	return t.next
}

// Pending returns how much audio is scheduled beyond now.
func (t *Timeline) Pending() time.Duration {
	if d := t.next.Sub(t.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Segments returns the segments that have not finished playing.
func (t *Timeline) Segments() []Segment {
	t.prune(t.clock.Now())
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Level returns the RMS energy, in [0, 1], of the audio at the playhead. It
// is zero once nothing is scheduled beyond now + DecayHorizon.
func (t *Timeline) Level() float64 {
	now := t.clock.Now()
	t.prune(now)
	if !t.next.After(now.Add(DecayHorizon)) {
		return 0
	}
	for _, seg := range t.segments {
		if now.Before(seg.Start) {
			return 0
		}
		if now.Before(seg.End) {
			return windowRMS(seg, now, t.rate)
		}
	}
	return 0
}

func (t *Timeline) prune(now time.Time) {
	i := 0
	for i < len(t.segments) && !t.segments[i].End.After(now) {
		i++
	}
	if i > 0 {
		t.segments = t.segments[i:]
	}
}

func windowRMS(seg Segment, at time.Time, rate int) float64 {
	offset := int(at.Sub(seg.Start) * time.Duration(rate) / time.Second)
	n := int(levelWindow * time.Duration(rate) / time.Second)
	end := min(offset+n, len(seg.Samples))
	if offset >= end {
		return 0
	}
	return audio.RMSFloat(seg.Samples[offset:end])
}

// sampleCount returns the number of samples in d at rate.
func sampleCount(d time.Duration, rate int) int {
	return int(math.Round(d.Seconds() * float64(rate)))
}
