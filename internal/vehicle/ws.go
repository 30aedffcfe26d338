package vehicle

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/roverlink/internal/state"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stateConn pushes hub snapshots to one websocket client. The client never
// sends data; reads only service pings and detect close.
type stateConn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	done   chan struct{}
}

// StreamState godoc
// @Summary      Stream state changes
// @Description  Upgrades to a websocket that receives a state.Snapshot JSON message on every change
// @Tags         vehicle
// @Router       /state/ws [get]
func (h *Handler) StreamState(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}

	conn := &stateConn{ws: ws, logger: h.logger, done: make(chan struct{})}
	updates, cancel := h.client.Hub().Subscribe()
	defer cancel()

	h.logger.Info("state stream connected", "remote", c.RealIP())
	go conn.readPump()
	conn.writePump(c.Request().Context(), updates)
	h.logger.Info("state stream disconnected", "remote", c.RealIP())
	return nil
}

func (c *stateConn) readPump() {
	defer close(c.done)

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

func (c *stateConn) writePump(ctx context.Context, updates <-chan state.Snapshot) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case snap, ok := <-updates:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(snap); err != nil {
				c.logger.Debug("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
