package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// wsUpgrader is the test WebSocket upgrader.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// echoServer returns a test server that echoes WebSocket messages back.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

// wsURL converts an HTTP test server URL to a WebSocket URL.
func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestConn_ConnectAndSendReceive(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	assert.True(t, c.IsConnected())

	require.NoError(t, c.Send(map[string]string{"hello": "world"}))

	data, err := c.ReadMessage(ctx)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "world", got["hello"])
}

func TestConn_HeadersSentOnHandshake(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), Headers: http.Header{"x-goog-api-key": []string{"k"}}})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.Equal(t, "k", gotKey)
}

func TestConn_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	err := c.Connect(context.Background())
	require.Error(t, err)

	assert.True(t, mserrors.IsKind(err, mserrors.KindHandshakeFailed))
	var e *mserrors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, http.StatusForbidden, e.StatusCode)
	assert.False(t, c.IsConnected())
}

func TestConn_CloseAbortsDial(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{URL: wsURL(srv), DialTimeout: 5 * time.Second})
	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background()) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return after Close")
	}
	assert.False(t, c.IsConnected())
}

func TestConn_Close_Idempotent(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
}

func TestConn_Close_WithoutConnect(t *testing.T) {
	c := New(Config{URL: "ws://localhost:0"})
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
}

func TestConn_SendBeforeConnectAndAfterClose(t *testing.T) {
	c := New(Config{URL: "ws://localhost:0"})
	assert.ErrorIs(t, c.SendRaw([]byte("x")), ErrNotConnected)

	srv := echoServer(t)
	defer srv.Close()
	c = New(Config{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Send(map[string]string{"a": "b"}), ErrNotConnected)
	_, err := c.ReadMessage(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConn_SendMarshalError(t *testing.T) {
	c := New(Config{URL: "ws://localhost:0"})
	err := c.Send(map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestConn_ReadLoop(t *testing.T) {
	srv := echoServer(t)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))

	var (
		mu   sync.Mutex
		got  []string
		done = make(chan struct{})
	)
	go func() {
		defer close(done)
		info, err := c.ReadLoop(func(b []byte) {
			mu.Lock()
			got = append(got, string(b))
			mu.Unlock()
		})
		assert.NoError(t, err)
		assert.NotNil(t, info)
	}()

	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, c.SendRaw([]byte(m)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLoop did not exit after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestConn_ReadLoop_AbnormalClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "quota exceeded")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		conn.Close()
	}))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	info, err := c.ReadLoop(func([]byte) {})
	require.Error(t, err)
	require.NotNil(t, info)
	assert.Equal(t, websocket.ClosePolicyViolation, info.Code)
	assert.Equal(t, "quota exceeded", info.Reason)
}

func TestConn_Heartbeat(t *testing.T) {
	pings := make(chan struct{}, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetPingHandler(func(string) error {
			pings <- struct{}{}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := New(Config{URL: wsURL(srv)})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.StartHeartbeat(ctx, 20*time.Millisecond)

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestConfig_Defaults(t *testing.T) {
	c := New(Config{URL: "ws://x"})

	assert.Equal(t, DefaultDialTimeout, c.cfg.DialTimeout)
	assert.Equal(t, DefaultWriteWait, c.cfg.WriteWait)
	assert.Equal(t, int64(DefaultMaxMessageSize), c.cfg.MaxMessageSize)
	assert.Equal(t, DefaultCloseGracePeriod, c.cfg.CloseGracePeriod)
	assert.NotNil(t, c.cfg.Logger)
}
