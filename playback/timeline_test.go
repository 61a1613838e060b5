package playback

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/AltairaLabs/mediasession/audio"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func tone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp
	}
	return out
}

func TestTimeline_BackToBack(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(epoch)
	tl := NewTimeline(audio.SampleRate24kHz, clk)

	var prev Segment
	for i := 0; i < 10; i++ {
		seg := tl.Schedule(tone(2400, 0.5))
		assert.Equal(t, 100*time.Millisecond, seg.Duration())
		if i == 0 {
			assert.Equal(t, epoch, seg.Start)
		} else {
			assert.Equal(t, prev.End, seg.Start, "segment %d must start where the previous ended", i)
		}
		prev = seg
		clk.SetTime(clk.Now().Add(30 * time.Millisecond))
	}
	assert.Equal(t, epoch.Add(time.Second), tl.Next())
}

func TestTimeline_StartsAtNowWhenIdle(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(epoch)
	tl := NewTimeline(audio.SampleRate24kHz, clk)

	tl.Schedule(tone(2400, 0.5))
	clk.SetTime(epoch.Add(500 * time.Millisecond))

	assert.Equal(t, clk.Now(), tl.Next(), "next is never earlier than now")
	seg := tl.Schedule(tone(2400, 0.5))
	assert.Equal(t, clk.Now(), seg.Start)
	assert.Len(t, tl.Segments(), 1, "finished segments are pruned")
}

func TestTimeline_ResetDropsUnfinished(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(epoch)
	tl := NewTimeline(audio.SampleRate24kHz, clk)
	for i := 0; i < 5; i++ {
		tl.Schedule(tone(2400, 0.5))
	}
	clk.SetTime(epoch.Add(150 * time.Millisecond))
	require.Equal(t, 350*time.Millisecond, tl.Pending())

	tl.Reset()
	assert.Empty(t, tl.Segments())
	assert.Equal(t, clk.Now(), tl.Next())
	assert.Zero(t, tl.Pending())

	seg := tl.Schedule(tone(240, 0.5))
	assert.Equal(t, clk.Now(), seg.Start)
}

func TestTimeline_LevelDecay(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(epoch)
	tl := NewTimeline(audio.SampleRate24kHz, clk)
	assert.Zero(t, tl.Level())

	tl.Schedule(tone(4800, 0.5)) // 200 ms
	assert.InDelta(t, 0.5, tl.Level(), 1e-6)

	clk.SetTime(epoch.Add(99 * time.Millisecond))
	assert.InDelta(t, 0.5, tl.Level(), 1e-6)

	clk.SetTime(epoch.Add(100 * time.Millisecond))
	assert.Zero(t, tl.Level(), "nothing scheduled beyond now + 100ms")

	clk.SetTime(epoch.Add(time.Second))
	assert.Zero(t, tl.Level())
}

func TestTimeline_LevelTracksPlayhead(t *testing.T) {
	clk := testingclock.NewFakePassiveClock(epoch)
	tl := NewTimeline(audio.SampleRate24kHz, clk)

	tl.Schedule(tone(2400, 0.2))
	tl.Schedule(tone(2400, 0.8))
	tl.Schedule(tone(4800, 0))

	assert.InDelta(t, 0.2, tl.Level(), 1e-6)
	clk.SetTime(epoch.Add(120 * time.Millisecond))
	assert.InDelta(t, 0.8, tl.Level(), 1e-6)
}

func TestTimeline_PCMDecodeRange(t *testing.T) {
	pcm := audio.Int16ToBytes([]int16{math.MinInt16, -1, 0, 1, math.MaxInt16})
	samples := audio.PCM16ToFloat(pcm)
	require.Len(t, samples, 5)
	assert.Equal(t, float32(-1), samples[0])
	assert.InDelta(t, 1, samples[4], 1.0/32768)
}
