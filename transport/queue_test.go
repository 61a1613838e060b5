package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/mediasession/media"
)

func TestQueue_PreservesOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []byte
	)
	q := NewQueue(16, func(c media.Chunk) error {
		mu.Lock()
		got = append(got, c.Data[0])
		mu.Unlock()
		return nil
	}, nil)
	q.Start()
	defer q.Stop()

	for i := byte(0); i < 10; i++ {
		require.True(t, q.Push(media.NewAudioChunk([]byte{i})))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 10
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestQueue_PushNeverBlocks(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue(2, func(media.Chunk) error {
		<-block
		return nil
	}, nil)
	q.Start()
	defer func() {
		close(block)
		q.Stop()
	}()

	start := time.Now()
	accepted := 0
	for i := 0; i < 20; i++ {
		if q.Push(media.NewAudioChunk([]byte{1})) {
			accepted++
		}
	}

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.LessOrEqual(t, accepted, 3)
	assert.Equal(t, int64(20-accepted), q.Dropped())
}

func TestQueue_ReportsSendErrors(t *testing.T) {
	errCh := make(chan error, 1)
	q := NewQueue(4, func(media.Chunk) error {
		return errors.New("write failed")
	}, func(err error) { errCh <- err })
	q.Start()
	defer q.Stop()

	q.Push(media.NewAudioChunk([]byte{1}))

	select {
	case err := <-errCh:
		assert.EqualError(t, err, "write failed")
	case <-time.After(time.Second):
		t.Fatal("onError not called")
	}
}

func TestQueue_StopIsIdempotentAndDropsAfter(t *testing.T) {
	q := NewQueue(4, func(media.Chunk) error { return nil }, nil)
	q.Start()

	q.Stop()
	q.Stop()

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not exit")
	}
	assert.False(t, q.Push(media.NewAudioChunk([]byte{1})))
	assert.Equal(t, int64(1), q.Dropped())
}

func TestQueue_StopWithoutStart(t *testing.T) {
	q := NewQueue(0, func(media.Chunk) error { return nil }, nil)
	assert.NotPanics(t, q.Stop)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_StopFromSendPath(t *testing.T) {
	var q *Queue
	q = NewQueue(4, func(media.Chunk) error {
		q.Stop()
		return nil
	}, nil)
	q.Start()
	q.Push(media.NewAudioChunk([]byte{1}))

	select {
	case <-q.Done():
	case <-time.After(time.Second):
		t.Fatal("Stop from the send path deadlocked")
	}
}

func TestQueue_PushFuncRunsAfterQueuedChunks(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	record := func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}
	q := NewQueue(8, func(c media.Chunk) error {
		record(string(c.Data))
		return nil
	}, nil)

	require.True(t, q.Push(media.NewAudioChunk([]byte("a"))))
	require.True(t, q.Push(media.NewAudioChunk([]byte("b"))))
	require.True(t, q.PushFunc(func() error {
		record("end")
		return nil
	}))
	q.Start()
	defer q.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "end"}, got)
}
