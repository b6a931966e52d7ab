package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/mineduel/internal/history"
	"github.com/lox/mineduel/internal/protocol"
	"github.com/lox/mineduel/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type testServer struct {
	*Server
	http     *httptest.Server
	recorder *history.Recorder
}

func newTestServer(t *testing.T, opts ...session.Option) *testServer {
	t.Helper()

	recorder := history.NewRecorder(testLogger(), 10, "")
	opts = append([]session.Option{session.WithMonitor(recorder)}, opts...)
	coordinator := session.NewCoordinator(testLogger(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = coordinator.Run(ctx)
	}()

	srv := NewServer(coordinator, recorder, testLogger())
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		srv.closeConnections()
		ts.Close()
		cancel()
		<-done
	})
	return &testServer{Server: srv, http: ts, recorder: recorder}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) *protocol.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	msg, err := protocol.Unmarshal(data)
	require.NoError(t, err)
	return msg
}

func expect[T any](t *testing.T, ws *websocket.Conn, want protocol.MessageType) T {
	t.Helper()
	msg := readMessage(t, ws)
	require.Equal(t, want, msg.Type)
	var v T
	require.NoError(t, msg.Decode(&v))
	return v
}

func sendMessage(t *testing.T, ws *websocket.Conn, messageType protocol.MessageType, payload any) {
	t.Helper()
	msg, err := protocol.NewMessage(messageType, payload)
	require.NoError(t, err)
	data, err := protocol.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func TestServerHealth(t *testing.T) {
	t.Parallel()
	srv := NewServer(session.NewCoordinator(testLogger()), nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestStatsUnavailableWithoutCoordinator(t *testing.T) {
	t.Parallel()
	srv := NewServer(session.NewCoordinator(testLogger()), nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMatchOverWebSocket(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t,
		session.WithSeedSource(session.NewFixedSeeds(4242)),
		session.WithMatchIDs(func() string { return "match-ws" }))

	a := ts.dial(t)
	connected := expect[protocol.PlayerConnected](t, a, protocol.TypePlayerConnected)
	assert.Equal(t, protocol.PlayerConnected{PlayerID: session.PlayerA, BoardSeed: 4242, TotalPlayers: 1}, connected)

	b := ts.dial(t)
	connected = expect[protocol.PlayerConnected](t, b, protocol.TypePlayerConnected)
	assert.Equal(t, session.PlayerB, connected.PlayerID)
	assert.Equal(t, 2, connected.TotalPlayers)

	assert.Equal(t, int64(4242), expect[protocol.GameStart](t, a, protocol.TypeGameStart).BoardSeed)
	assert.Equal(t, int64(4242), expect[protocol.GameStart](t, b, protocol.TypeGameStart).BoardSeed)

	sendMessage(t, a, protocol.TypePlayerFinished, protocol.PlayerFinished{PlayerID: session.PlayerA, GameTime: "00:00:45"})
	sendMessage(t, b, protocol.TypePlayerFinished, protocol.PlayerFinished{PlayerID: session.PlayerB, GameTime: "00:01:10"})

	for _, ws := range []*websocket.Conn{a, b} {
		over := expect[protocol.GameOver](t, ws, protocol.TypeGameOver)
		require.NotNil(t, over.Winner)
		assert.Equal(t, session.PlayerA, *over.Winner)
		assert.Equal(t, map[string]string{session.PlayerA: "00:00:45", session.PlayerB: "00:01:10"}, over.Times)
	}

	resp, err := http.Get(ts.http.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats struct {
		Connections int `json:"connections"`
		Session     struct {
			Phase   string `json:"phase"`
			MatchID string `json:"match_id"`
			Players []struct {
				ID       string `json:"id"`
				GameTime string `json:"game_time"`
			} `json:"players"`
		} `json:"session"`
		History history.Summary `json:"history"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, "finished", stats.Session.Phase)
	assert.Equal(t, "match-ws", stats.Session.MatchID)
	require.Len(t, stats.Session.Players, 2)
	assert.Equal(t, 1, stats.History.Completed)
	require.Len(t, stats.History.Recent, 1)
	assert.Equal(t, session.PlayerA, stats.History.Recent[0].Winner)
}

func TestThirdClientRejected(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	a := ts.dial(t)
	expect[protocol.PlayerConnected](t, a, protocol.TypePlayerConnected)
	b := ts.dial(t)
	expect[protocol.PlayerConnected](t, b, protocol.TypePlayerConnected)

	c := ts.dial(t)
	rejected := expect[protocol.ConnectionError](t, c, protocol.TypeConnectionError)
	assert.Equal(t, "Game is full", rejected.Message)

	// The server closes the rejected socket.
	_, _, err := c.ReadMessage()
	assert.Error(t, err)

	snap, err := ts.coordinator.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.PhaseInProgress, snap.Phase)
	assert.Len(t, snap.Players, 2)
}

func TestDisconnectAbandonsMatch(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, session.WithSeedSource(session.NewFixedSeeds(1, 2)))

	a := ts.dial(t)
	expect[protocol.PlayerConnected](t, a, protocol.TypePlayerConnected)
	b := ts.dial(t)
	expect[protocol.PlayerConnected](t, b, protocol.TypePlayerConnected)
	expect[protocol.GameStart](t, a, protocol.TypeGameStart)

	require.NoError(t, b.Close())

	over := expect[protocol.GameOver](t, a, protocol.TypeGameOver)
	assert.True(t, over.Abandoned())
	assert.Empty(t, over.Times)

	require.Eventually(t, func() bool {
		return ts.recorder.Summary().Abandoned == 1
	}, 2*time.Second, 10*time.Millisecond)

	// A new opponent starts a new match on a new seed.
	c := ts.dial(t)
	connected := expect[protocol.PlayerConnected](t, c, protocol.TypePlayerConnected)
	assert.Equal(t, int64(2), connected.BoardSeed)
	assert.Equal(t, int64(2), expect[protocol.GameStart](t, a, protocol.TypeGameStart).BoardSeed)
}

func TestMalformedFramesAnswered(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	a := ts.dial(t)
	expect[protocol.PlayerConnected](t, a, protocol.TypePlayerConnected)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "An error occurred", expect[protocol.ConnectionError](t, a, protocol.TypeConnectionError).Message)

	sendMessage(t, a, protocol.TypeGameStart, protocol.GameStart{BoardSeed: 1})
	assert.Equal(t, "An error occurred", expect[protocol.ConnectionError](t, a, protocol.TypeConnectionError).Message)

	// The connection is still usable and still holds its slot.
	b := ts.dial(t)
	expect[protocol.PlayerConnected](t, b, protocol.TypePlayerConnected)
	expect[protocol.GameStart](t, a, protocol.TypeGameStart)
}

func TestConnectionSendAfterClose(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.dial(t)

	require.Eventually(t, func() bool { return ts.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	var conn *Connection
	ts.mu.Lock()
	for c := range ts.connections {
		conn = c
	}
	ts.mu.Unlock()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "close is idempotent")

	msg, err := protocol.NewMessage(protocol.TypeGameStart, protocol.GameStart{BoardSeed: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, conn.Send(msg), ErrConnectionClosed)

	require.Eventually(t, func() bool { return ts.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeShutsDown(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(session.NewCoordinator(testLogger()), nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	wsURL := "ws://" + ln.Addr().String() + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()
	expect[protocol.PlayerConnected](t, ws, protocol.TypePlayerConnected)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, _, err = ws.ReadMessage()
	assert.Error(t, err, "open sockets are closed on shutdown")
}
