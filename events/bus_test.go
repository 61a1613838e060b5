package events

import (
	"errors"
	"sync"
	"testing"

	mserrors "github.com/AltairaLabs/mediasession/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recorder) OnEvent(e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func TestBus_SubscribeIsIdempotent(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.Subscribe(EventAudioChunk, rec)
	bus.Subscribe(EventAudioChunk, rec)
	bus.Publish(New("s1", AudioChunk{Data: []byte{1, 2}}))

	assert.Len(t, rec.events, 1)
	assert.Equal(t, 1, bus.Count(EventAudioChunk))
}

func TestBus_SameListenerDifferentTypes(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.Subscribe(EventContentDelta, rec)
	bus.Subscribe(EventTurnComplete, rec)
	bus.Publish(New("s1", ContentDelta{Text: "hi"}))
	bus.Publish(New("s1", TurnComplete{}))

	assert.Equal(t, []EventType{EventContentDelta, EventTurnComplete}, rec.types())
}

func TestBus_FuncIdentity(t *testing.T) {
	bus := NewBus()
	calls := 0
	fn := func(*Event) { calls++ }

	a := Func(fn)
	b := Func(fn)
	bus.Subscribe(EventInterrupted, a)
	bus.Subscribe(EventInterrupted, a)
	bus.Subscribe(EventInterrupted, b)
	bus.Publish(New("s1", Interrupted{}))

	assert.Equal(t, 2, calls)
}

func TestBus_UnsubscribeIsSafeToRepeat(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}

	bus.Subscribe(EventError, rec)
	bus.Unsubscribe(EventError, rec)
	bus.Unsubscribe(EventError, rec)
	bus.Unsubscribe(EventTurnComplete, rec)
	bus.Publish(New("s1", Error{Message: "x"}))

	assert.Empty(t, rec.events)
}

func TestBus_PublishOrder(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.SubscribeAll(rec)

	bus.Publish(New("s1", AudioChunk{}))
	bus.Publish(New("s1", ContentDelta{Text: "a"}))
	bus.Publish(New("s1", TurnComplete{}))

	assert.Equal(t, []EventType{EventAudioChunk, EventContentDelta, EventTurnComplete}, rec.types())
}

func TestBus_GlobalAfterSpecific(t *testing.T) {
	bus := NewBus()
	var order []string
	bus.SubscribeAll(Func(func(*Event) { order = append(order, "global") }))
	bus.Subscribe(EventTurnComplete, Func(func(*Event) { order = append(order, "specific") }))

	bus.Publish(New("s1", TurnComplete{}))

	assert.Equal(t, []string{"specific", "global"}, order)
}

func TestBus_UnsubscribeAll(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.SubscribeAll(rec)
	bus.SubscribeAll(rec)
	bus.UnsubscribeAll(rec)
	bus.UnsubscribeAll(rec)

	bus.Publish(New("s1", TurnComplete{}))
	assert.Empty(t, rec.events)
}

func TestBus_PanickingListenerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(EventContentDelta, Func(func(*Event) { panic("boom") }))
	bus.Subscribe(EventContentDelta, rec)

	require.NotPanics(t, func() {
		bus.Publish(New("s1", ContentDelta{Text: "x"}))
	})
	assert.Len(t, rec.events, 1)
}

func TestBus_ListenerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(EventTurnComplete, Func(func(*Event) {
		bus.Subscribe(EventTurnComplete, rec)
	}))

	bus.Publish(New("s1", TurnComplete{}))
	assert.Empty(t, rec.events)

	bus.Publish(New("s1", TurnComplete{}))
	assert.Len(t, rec.events, 1)
}

func TestBus_ClearAndNil(t *testing.T) {
	bus := NewBus()
	rec := &recorder{}
	bus.Subscribe(EventTurnComplete, rec)
	bus.Clear()
	bus.Publish(New("s1", TurnComplete{}))
	bus.Publish(nil)
	assert.Empty(t, rec.events)
}

func TestNew_SetsTypeFromData(t *testing.T) {
	e := New("abc", TranscriptUpdate{Role: RoleUser, Text: "hello", IsFinal: true})

	assert.Equal(t, EventTranscriptUpdate, e.Type)
	assert.Equal(t, "abc", e.SessionID)
	assert.False(t, e.Timestamp.IsZero())
}

func TestErrorFrom(t *testing.T) {
	kinded := mserrors.New(mserrors.KindHandshakeFailed, "credentials", "FetchAPIKey", errors.New("status 500"))
	e := ErrorFrom(kinded, mserrors.KindTransportError)
	assert.Equal(t, mserrors.KindHandshakeFailed, e.Kind)
	assert.Equal(t, "status 500", e.Message)
	assert.Same(t, kinded, e.Err)

	plain := ErrorFrom(errors.New("eof"), mserrors.KindTransportError)
	assert.Equal(t, mserrors.KindTransportError, plain.Kind)
	assert.Equal(t, "eof", plain.Message)
}
