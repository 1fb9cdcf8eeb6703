package streaming

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/player"
)

func TestCheckOriginAllowsEmptyOrigin(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, nil, player.New(), []string{"https://example.com"}, slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, h.checkOrigin(req))
}

func TestCheckOriginRejectsUnlistedOrigin(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, nil, player.New(), []string{"https://example.com"}, slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))
}

func TestCheckOriginAllowsListedOrigin(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, nil, player.New(), []string{"https://example.com"}, slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://example.com")
	assert.True(t, h.checkOrigin(req))
}

type stubTrackLookup struct{}

func (stubTrackLookup) Resolve(context.Context, string) (TrackSource, error) {
	return TrackSource{}, context.Canceled
}

func dialTestServer(t *testing.T, e *echo.Echo) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(e)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func newTestWSServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.GET("/ws", h.ServeWS)
	return e
}

func TestServeWSSendsPlayerStateImmediatelyAfterConnect(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, stubTrackLookup{}, player.New(), nil, slog.Default())
	e := newTestWSServer(h)
	conn, cleanup := dialTestServer(t, e)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, ServerPlayerState, env.Type)
}

func TestServeWSRespondsToPing(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, stubTrackLookup{}, player.New(), nil, slog.Default())
	e := newTestWSServer(h)
	conn, cleanup := dialTestServer(t, e)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var initial Envelope
	require.NoError(t, conn.ReadJSON(&initial))

	require.NoError(t, conn.WriteJSON(Envelope{Type: ClientPing}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var pong Envelope
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, ServerPong, pong.Type)
}

func TestServeWSRejectsUnknownMessageType(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, stubTrackLookup{}, player.New(), nil, slog.Default())
	e := newTestWSServer(h)
	conn, cleanup := dialTestServer(t, e)
	defer cleanup()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var initial Envelope
	require.NoError(t, conn.ReadJSON(&initial))

	require.NoError(t, conn.WriteJSON(Envelope{Type: "not_a_real_type"}))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp Envelope
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, ServerError, resp.Type)
	assert.Contains(t, string(resp.Data), "unknown_message_type")
}

func TestServeWSRejectsDisallowedOriginBeforeUpgrade(t *testing.T) {
	t.Parallel()

	h := NewHandler(nil, stubTrackLookup{}, player.New(), []string{"https://allowed.example"}, slog.Default())
	e := newTestWSServer(h)
	srv := httptest.NewServer(e)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	u.Path = "/ws"

	headers := http.Header{}
	headers.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(u.String(), headers)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
