package eis

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The bridge binds to loopback/container networks; the control
		// plane in front of it owns origin policy.
		return true
	},
}

// wsIntake upgrades HTTP connections and adapts each WebSocket into the
// session byte stream, so browser-side control planes can speak the same
// frame protocol as socket peers.
type wsIntake struct {
	logger *slog.Logger
}

func (wi *wsIntake) handler(ctx context.Context, mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			wi.logger.Error("WebSocket upgrade failed", "err", err)
			return
		}
		wi.logger.Info("WebSocket EIS client connected", "remote", r.RemoteAddr)
		mgr.AddConnection(ctx, &wsConn{ws: conn})
	}
}

// wsConn adapts a WebSocket to net.Conn. Reads concatenate binary messages
// into the byte stream; writes emit one binary message per call, which the
// buffered frame writer turns into one message per flush.
type wsConn struct {
	ws     *websocket.Conn
	unread []byte
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.unread) == 0 {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, net.ErrClosed
			}
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		c.unread = data
	}
	n := copy(p, c.unread)
	c.unread = c.unread[n:]
	return n, nil
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error         { return c.ws.Close() }
func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// SetDeadline covers both directions, matching net.Conn semantics.
func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}
func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
