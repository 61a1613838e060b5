package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/AltairaLabs/mediasession/events"
)

// MetricsListener records session events as Prometheus metrics. Register it
// with Bus.SubscribeAll.
type MetricsListener struct {
	mu         sync.Mutex
	connecting map[string]time.Time
	connected  map[string]time.Time
}

var _ events.Listener = (*MetricsListener)(nil)

// NewMetricsListener creates a new MetricsListener.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{
		connecting: make(map[string]time.Time),
		connected:  make(map[string]time.Time),
	}
}

// OnEvent records metrics for e.
func (l *MetricsListener) OnEvent(e *events.Event) {
	eventsTotal.WithLabelValues(string(e.Type)).Inc()

	switch d := e.Data.(type) {
	case events.StatusChanged:
		l.handleStatus(e, d)
	case events.ConnectionOpened:
		connectionsOpenedTotal.WithLabelValues(d.Provider, d.Transport).Inc()
	case events.ConnectionClosed:
		connectionsClosedTotal.WithLabelValues(strconv.Itoa(d.Code)).Inc()
	case events.Error:
		errorsTotal.WithLabelValues(d.Kind.String()).Inc()
	case events.AudioChunk:
		audioOutputBytesTotal.Add(float64(len(d.Data)))
	case events.Volume:
		volumeLevel.WithLabelValues(string(d.Direction)).Set(d.Level)
	case events.ProtocolEvent:
		protocolMessagesTotal.WithLabelValues(string(d.Direction), d.Name).Inc()
	default:
		// Counted in events_total only
	}
}

func (l *MetricsListener) handleStatus(e *events.Event, d events.StatusChanged) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch d.To {
	case events.StatusConnecting:
		l.connecting[e.SessionID] = e.Timestamp
	case events.StatusConnected:
		sessionsActive.Inc()
		if start, ok := l.connecting[e.SessionID]; ok {
			handshakeDuration.Observe(e.Timestamp.Sub(start).Seconds())
			delete(l.connecting, e.SessionID)
		}
		l.connected[e.SessionID] = e.Timestamp
	case events.StatusDisconnected:
		delete(l.connecting, e.SessionID)
		if d.From == events.StatusConnected {
			sessionsActive.Dec()
		}
		if start, ok := l.connected[e.SessionID]; ok {
			sessionDuration.Observe(e.Timestamp.Sub(start).Seconds())
			delete(l.connected, e.SessionID)
		}
	}
}
