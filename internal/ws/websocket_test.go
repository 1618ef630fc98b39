package ws

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lxzan/gws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitelink/pkg/core"
)

type testServerHandler struct {
	gws.BuiltinEventHandler
	onOpen func(socket *gws.Conn)
	pongs  chan []byte
	texts  chan []byte
}

func (h *testServerHandler) OnOpen(socket *gws.Conn) {
	if h.onOpen != nil {
		h.onOpen(socket)
	}
}

func (h *testServerHandler) OnPong(socket *gws.Conn, payload []byte) {
	h.pongs <- bytes.Clone(payload)
}

func (h *testServerHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	h.texts <- bytes.Clone(message.Bytes())
}

func newTestServer(t *testing.T, onOpen func(socket *gws.Conn)) (*testServerHandler, string) {
	t.Helper()

	handler := &testServerHandler{
		onOpen: onOpen,
		pongs:  make(chan []byte, 4),
		texts:  make(chan []byte, 4),
	}
	upgrader := gws.NewUpgrader(handler, &gws.ServerOption{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		go socket.ReadLoop()
	}))
	t.Cleanup(server.Close)

	return handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func nextFrame(t *testing.T, sess Session) Frame {
	t.Helper()
	select {
	case frame, ok := <-sess.Frames():
		require.True(t, ok, "frames channel closed")
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func TestConnState_String(t *testing.T) {
	tests := []struct {
		state ConnState
		want  string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateTerminated, "terminated"},
		{ConnState(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestState_TransitionStopsAtTerminated(t *testing.T) {
	var state State

	assert.Equal(t, StateIdle, state.Load())
	assert.True(t, state.Transition(StateConnecting))
	assert.True(t, state.Transition(StateTerminated))
	assert.False(t, state.Transition(StateConnecting))
	assert.Equal(t, StateTerminated, state.Load())
}

func TestDialer_PingIsDeliveredAndPongEchoed(t *testing.T) {
	server, addr := newTestServer(t, func(socket *gws.Conn) {
		_ = socket.WritePing([]byte{1, 2, 3})
	})

	sess, err := NewDialer(DialerConfig{}).Dial(context.Background(), addr)
	require.NoError(t, err)
	defer sess.Close()

	frame := nextFrame(t, sess)
	assert.Equal(t, FramePing, frame.Kind)
	assert.Equal(t, []byte{1, 2, 3}, frame.Payload)

	require.NoError(t, sess.WritePong(frame.Payload))

	select {
	case payload := <-server.pongs:
		assert.Equal(t, []byte{1, 2, 3}, payload)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received pong")
	}
}

func TestDialer_TextAndBinaryFrames(t *testing.T) {
	_, addr := newTestServer(t, func(socket *gws.Conn) {
		_ = socket.WriteString(`{"cmd":"hello"}`)
		_ = socket.WriteMessage(gws.OpcodeBinary, []byte{0xff})
	})

	sess, err := NewDialer(DialerConfig{}).Dial(context.Background(), addr)
	require.NoError(t, err)
	defer sess.Close()

	text := nextFrame(t, sess)
	assert.Equal(t, FrameText, text.Kind)
	assert.JSONEq(t, `{"cmd":"hello"}`, string(text.Payload))

	binary := nextFrame(t, sess)
	assert.Equal(t, FrameOther, binary.Kind)
}

func TestDialer_SendJSON(t *testing.T) {
	server, addr := newTestServer(t, nil)

	sess, err := NewDialer(DialerConfig{}).Dial(context.Background(), addr)
	require.NoError(t, err)
	defer sess.Close()

	require.NoError(t, sess.SendJSON(map[string]string{"cmd": "ready"}))

	select {
	case data := <-server.texts:
		assert.JSONEq(t, `{"cmd":"ready"}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("server never received text")
	}
}

func TestDialer_PeerCloseEndsFramesWithoutError(t *testing.T) {
	_, addr := newTestServer(t, func(socket *gws.Conn) {
		socket.WriteClose(1000, []byte("bye"))
	})

	sess, err := NewDialer(DialerConfig{}).Dial(context.Background(), addr)
	require.NoError(t, err)
	defer sess.Close()

	frame := nextFrame(t, sess)
	assert.Equal(t, FrameClose, frame.Kind)

	select {
	case _, ok := <-sess.Frames():
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("frames channel never closed")
	}
	assert.NoError(t, sess.Err())
}

func TestDialer_HandshakeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "already connected", http.StatusConflict)
	}))
	defer server.Close()

	_, err := NewDialer(DialerConfig{}).Dial(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"))
	require.Error(t, err)

	var handshakeErr *HandshakeError
	require.True(t, errors.As(err, &handshakeErr))
	assert.Equal(t, http.StatusConflict, handshakeErr.StatusCode)
}

func TestDialer_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDialer(DialerConfig{}).Dial(ctx, "ws://10.255.255.1:9/ws")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	_, addr := newTestServer(t, nil)

	sess, err := NewDialer(DialerConfig{}).Dial(context.Background(), addr)
	require.NoError(t, err)

	assert.NoError(t, sess.Close())
	assert.NoError(t, sess.Close())
}

func TestConn_WritesAfterCloseReturnSessionClosed(t *testing.T) {
	_, addr := newTestServer(t, nil)

	sess, err := NewDialer(DialerConfig{}).Dial(context.Background(), addr)
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	assert.ErrorIs(t, sess.WritePong([]byte{1}), core.ErrSessionClosed)
	assert.ErrorIs(t, sess.WriteText([]byte("x")), core.ErrSessionClosed)
	assert.ErrorIs(t, sess.SendJSON(map[string]string{"cmd": "x"}), core.ErrSessionClosed)
}

func TestFrameKind_String(t *testing.T) {
	tests := []struct {
		kind FrameKind
		want string
	}{
		{FrameOther, "other"},
		{FrameClose, "close"},
		{FramePing, "ping"},
		{FrameText, "text"},
		{FrameKind(42), "unknown"},
		{FrameKind(-1), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestHandshakeError_Error(t *testing.T) {
	assert.Equal(t, "websocket handshake rejected (409): busy",
		(&HandshakeError{StatusCode: 409, Body: "busy"}).Error())
	assert.Equal(t, "websocket handshake rejected (403)",
		(&HandshakeError{StatusCode: 403}).Error())
}
