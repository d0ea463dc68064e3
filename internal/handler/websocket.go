package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"recipe-server/internal/auth"
	"recipe-server/internal/hub"
	"recipe-server/internal/logging"
	"recipe-server/internal/metrics"
)

const (
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 64 * 1024
)

// WebSocketHandler authenticates sockets on /ws and hands them to the Router.
type WebSocketHandler struct {
	Router    *hub.Router
	Validator *auth.Validator
	// CloseGrace is how long a rejected client gets to answer the close message.
	CloseGrace  time.Duration
	AuthTimeout time.Duration
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes writes to one socket. gorilla allows a single concurrent writer.
// Writes run on the caller, so a stalled socket holds a fan-out for at most writeWait.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		metrics.WSHandshakes.WithLabelValues("upgrade_failed").Inc()
		return
	}

	conn := hub.NewConnection(&wsWriter{conn: ws})
	conn.BeginAuth()

	ctx := c.Request.Context()
	if h.AuthTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.AuthTimeout)
		defer cancel()
	}
	claims, err := h.Validator.Validate(ctx, c.Query("token"))
	if err != nil {
		h.reject(ws, conn, err)
		return
	}

	if !conn.Open(claims.Identity(), claims.ID) {
		conn.Close()
		return
	}
	if err := h.Router.Attach(conn); err != nil {
		logging.Error().Err(err).Msg("attach websocket")
		conn.Close()
		return
	}
	metrics.WSHandshakes.WithLabelValues("ok").Inc()
	defer h.Router.Disconnect(conn)

	h.pump(ws, conn)
}

// pump reads frames until the socket fails, keeping it alive with pings.
func (h *WebSocketHandler) pump(ws *websocket.Conn, conn *hub.Connection) {
	ws.SetReadLimit(readLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					h.Router.Disconnect(conn)
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug().Err(err).Uint64("conn", conn.ID).Msg("websocket read")
			}
			return
		}
		h.Router.Dispatch(conn, data)
	}
}

// reject sends the error frame and a close message, then waits up to CloseGrace
// for the client to finish the close handshake.
func (h *WebSocketHandler) reject(ws *websocket.Conn, conn *hub.Connection, err error) {
	message := auth.ClientMessage(err)
	metrics.WSHandshakes.WithLabelValues(handshakeOutcome(err)).Inc()
	if !errors.Is(err, auth.ErrMissingToken) && !errors.Is(err, auth.ErrInvalidToken) &&
		!errors.Is(err, auth.ErrTokenRevoked) && !errors.Is(err, auth.ErrMissingClaims) {
		logging.Error().Err(err).Msg("websocket authentication")
	} else {
		logging.Debug().Err(err).Msg("websocket rejected")
	}

	if err := conn.Send(hub.ErrorFrame(message)); err == nil {
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message)
		_ = ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		_ = ws.SetReadDeadline(time.Now().Add(h.CloseGrace))
		for {
			if _, _, err := ws.NextReader(); err != nil {
				break
			}
		}
	}
	conn.Close()
}

func handshakeOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing_token"
	case errors.Is(err, auth.ErrTokenRevoked):
		return "revoked"
	case errors.Is(err, auth.ErrMissingClaims):
		return "invalid_claims"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid_token"
	default:
		return "error"
	}
}
