package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invitelink/internal/ws"
	"invitelink/internal/ws/wstest"
	"invitelink/pkg/core"
)

func TestNew_Defaults(t *testing.T) {
	m := New(wstest.NewDialer(), Config{})

	assert.Equal(t, 10*time.Second, m.config.ConnectTimeout)
	assert.Equal(t, 60*time.Second, m.config.IdleTimeout)
	assert.NotNil(t, m.config.Classifier)
}

func TestManager_Open_Success(t *testing.T) {
	sess := wstest.NewSession(1)
	dialer := wstest.NewDialer(wstest.Step{Session: sess})
	m := New(dialer, Config{})

	got, err := m.Open(context.Background(), "ws://localhost/ws")

	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, []string{"ws://localhost/ws"}, dialer.Addrs())
}

func TestManager_Open_ConnectTimeout(t *testing.T) {
	m := New(wstest.NewDialer(wstest.Step{Block: true}), Config{ConnectTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := m.Open(context.Background(), "ws://localhost/ws")

	require.Error(t, err)
	assert.Equal(t, core.ErrorTypeConnectTimeout, core.ErrorTypeOf(err))
	assert.True(t, errors.Is(err, core.ErrConnectTimeout))
	assert.True(t, core.IsRetryable(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestManager_Open_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := New(wstest.NewDialer(wstest.Step{Block: true}), Config{})

	_, err := m.Open(ctx, "ws://localhost/ws")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_Open_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		terminal bool
	}{
		{"conflict", http.StatusConflict, true},
		{"upgrade_required", http.StatusUpgradeRequired, true},
		{"unauthorized", http.StatusUnauthorized, true},
		{"forbidden", http.StatusForbidden, true},
		{"service_unavailable", http.StatusServiceUnavailable, false},
		{"not_found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejection := &ws.HandshakeError{StatusCode: tt.status}
			m := New(wstest.NewDialer(wstest.Step{Err: rejection}), Config{})

			_, err := m.Open(context.Background(), "ws://localhost/ws")

			require.Error(t, err)
			assert.Equal(t, core.ErrorTypeRejected, core.ErrorTypeOf(err))
			assert.Equal(t, tt.terminal, core.IsTerminal(err))
			assert.True(t, errors.As(err, &rejection))
		})
	}
}

func TestManager_Open_CustomClassifier(t *testing.T) {
	var seen int
	m := New(wstest.NewDialer(wstest.Step{Err: &ws.HandshakeError{StatusCode: 503}}), Config{
		Classifier: func(rejection *ws.HandshakeError) (string, bool) {
			seen = rejection.StatusCode
			return "maintenance", true
		},
	})

	_, err := m.Open(context.Background(), "ws://localhost/ws")

	assert.Equal(t, 503, seen)
	assert.True(t, core.IsTerminal(err))

	var connErr *core.ConnError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "maintenance", connErr.Message)
}

func TestManager_Open_TransportError(t *testing.T) {
	m := New(wstest.NewDialer(wstest.Step{Err: errors.New("connection refused")}), Config{})

	_, err := m.Open(context.Background(), "ws://localhost/ws")

	assert.Equal(t, core.ErrorTypeTransport, core.ErrorTypeOf(err))
	assert.True(t, core.IsRetryable(err))
}

func TestManager_Recv_Frame(t *testing.T) {
	m := New(wstest.NewDialer(), Config{})
	sess := wstest.NewScripted(false, ws.Frame{Kind: ws.FramePing, Payload: []byte{1}})

	frame, err := m.Recv(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, ws.FramePing, frame.Kind)
}

func TestManager_Recv_IdleTimeout(t *testing.T) {
	m := New(wstest.NewDialer(), Config{IdleTimeout: 20 * time.Millisecond})
	sess := wstest.NewSession(0)

	_, err := m.Recv(context.Background(), sess)

	require.Error(t, err)
	assert.Equal(t, core.ErrorTypeIdleTimeout, core.ErrorTypeOf(err))
	assert.True(t, errors.Is(err, core.ErrIdleTimeout))
	assert.True(t, core.IsRetryable(err))
	assert.False(t, core.IsTerminal(err))
	assert.True(t, sess.Closed())
}

func TestManager_Recv_EndedWithoutError(t *testing.T) {
	m := New(wstest.NewDialer(), Config{})
	sess := wstest.NewScripted(true)

	frame, err := m.Recv(context.Background(), sess)

	require.NoError(t, err)
	assert.Equal(t, ws.FrameClose, frame.Kind)
}

func TestManager_Recv_TransportError(t *testing.T) {
	m := New(wstest.NewDialer(), Config{})
	sess := wstest.NewSession(0)
	sess.End(errors.New("connection reset by peer"))

	_, err := m.Recv(context.Background(), sess)

	assert.Equal(t, core.ErrorTypeTransport, core.ErrorTypeOf(err))
}

func TestManager_Recv_ContextCancelled(t *testing.T) {
	m := New(wstest.NewDialer(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Recv(ctx, wstest.NewSession(0))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultClassifier_AppendsBody(t *testing.T) {
	message, terminal := DefaultClassifier(&ws.HandshakeError{StatusCode: http.StatusConflict, Body: "session 12 active"})

	assert.True(t, terminal)
	assert.Equal(t, "another client is already connected with this identity: session 12 active", message)
}
