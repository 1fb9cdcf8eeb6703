package streaming

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/auralis/auralis/internal/constants"
	"github.com/auralis/auralis/internal/player"
	"github.com/auralis/auralis/internal/processor"
)

// TrackLookup resolves a track_id (as sent by a client's play_enhanced
// message) to the file and metadata a Session needs; implemented by the
// library package in production and by a stub in tests.
type TrackLookup interface {
	Resolve(ctx context.Context, trackID string) (TrackSource, error)
}

// Handler owns the WebSocket upgrade and per-connection message loop. It
// holds no session state itself: each accepted connection gets its own
// Session, constructed fresh, matching the "one session per WebSocket
// connection at a time" contract.
type Handler struct {
	upgrader    websocket.Upgrader
	allowedOrigins map[string]bool
	proc        *processor.Processor
	lookup      TrackLookup
	player      *player.Player
	logger      *slog.Logger
}

// NewHandler builds a streaming Handler. allowedOrigins is the local,
// configured origin allowlist; an empty Origin header is permitted for
// known non-browser clients.
func NewHandler(proc *processor.Processor, lookup TrackLookup, p *player.Player, allowedOrigins []string, logger *slog.Logger) *Handler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	h := &Handler{
		allowedOrigins: origins,
		proc:           proc,
		lookup:         lookup,
		player:         p,
		logger:         logger.With("component", "streaming_handler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 65536,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.allowedOrigins[origin]
}

// ServeWS upgrades the request and runs the connection's message loop
// until disconnect.
func (h *Handler) ServeWS(c echo.Context) error {
	origin := c.Request().Header.Get("Origin")
	if origin != "" && !h.allowedOrigins[origin] {
		return c.NoContent(http.StatusForbidden)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	connID := uuid.NewString()
	logger := h.logger.With("conn_id", connID)
	sender := &wsSender{conn: conn}
	limiter := newRateLimiter()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// State-push burst immediately after accept: a reconnecting client
	// should not need a state change to refresh its view.
	snap := h.player.Snapshot()
	_ = sender.SendJSON(Envelope{Type: ServerPlayerState, Data: mustJSON(snap)})

	var activeSession *Session
	var sessionCancel context.CancelFunc
	var mu sync.Mutex

	stopActive := func() {
		mu.Lock()
		if sessionCancel != nil {
			sessionCancel()
		}
		mu.Unlock()
	}
	defer stopActive()

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if !limiter.allow() {
			_ = sender.SendJSON(Envelope{Type: ServerError, Data: mustJSON(map[string]string{"reason": "rate_limited"})})
			continue
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			_ = sender.SendJSON(Envelope{Type: ServerError, Data: mustJSON(map[string]string{"reason": "invalid_envelope"})})
			continue
		}

		if !IsValidClientType(env.Type) {
			logger.Warn("unknown client message type", "type", env.Type)
			_ = sender.SendJSON(Envelope{Type: ServerError, Data: mustJSON(map[string]string{"reason": "unknown_message_type"})})
			continue
		}

		switch env.Type {
		case ClientPing:
			_ = sender.SendJSON(Envelope{Type: ServerPong})

		case ClientPlayEnhanced, ClientPlayNormal:
			var payload PlayEnhancedPayload
			_ = json.Unmarshal(env.Data, &payload)
			preset := payload.Preset
			if env.Type == ClientPlayNormal {
				preset = "natural"
			}
			if !constants.IsValidPreset(preset) {
				_ = sender.SendJSON(Envelope{Type: ServerError, Data: mustJSON(map[string]string{"reason": "invalid_preset"})})
				continue
			}
			intensity := constants.ClampIntensity(payload.Intensity)

			track, err := h.lookup.Resolve(ctx, payload.TrackID)
			if err != nil {
				_ = sender.SendJSON(Envelope{Type: ServerError, Data: mustJSON(map[string]string{"reason": "track_not_found"})})
				continue
			}

			stopActive()
			sessCtx, cancelSess := context.WithCancel(ctx)
			sess := NewSession(connID, sender, h.proc, preset, intensity, logger)
			mu.Lock()
			activeSession = sess
			sessionCancel = cancelSess
			mu.Unlock()
			go sess.Run(sessCtx, track)

		case ClientPause:
			if activeSession != nil {
				activeSession.Post(ctrlPause, 0, "", 0)
			}
		case ClientResume:
			if activeSession != nil {
				activeSession.Post(ctrlResume, 0, "", 0)
			}
		case ClientSeek:
			var payload SeekPayload
			_ = json.Unmarshal(env.Data, &payload)
			if activeSession != nil {
				activeSession.Post(ctrlSeek, payload.PositionS, "", 0)
			}
		case ClientStop:
			stopActive()
		case ClientSetPresetIntensity:
			var payload SetPresetIntensityPayload
			_ = json.Unmarshal(env.Data, &payload)
			if !constants.IsValidPreset(payload.Preset) {
				_ = sender.SendJSON(Envelope{Type: ServerError, Data: mustJSON(map[string]string{"reason": "invalid_preset"})})
				continue
			}
			if activeSession != nil {
				activeSession.Post(ctrlUpdateSettings, 0, payload.Preset, constants.ClampIntensity(payload.Intensity))
			}
		case ClientSubscribeJobProgress, ClientABTrackLoaded:
			// Acknowledged but not load-bearing for the core mastering
			// path; no-op beyond the envelope validation above.
		}
	}
}

// wsSender adapts a gorilla/websocket connection to the Sender
// interface, serializing writes with a mutex since a Session may send
// JSON and binary frames from the same driver goroutine but the
// connection itself is not safe for concurrent writers.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsSender) SendJSON(env Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(env)
}

func (w *wsSender) SendBinary(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.BinaryMessage, frame)
}
