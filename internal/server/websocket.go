package server

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maxCommandSize bounds one dashboard command; renames are the largest.
	maxCommandSize = 4096
	// writeWait is how long one level frame may take to reach a client.
	writeWait = 2 * time.Second
)

// WebSocketConn is the interface for WebSocket connection operations.
type WebSocketConn interface {
	io.Closer
	WriteJSON(v any) error
	ReadJSON(v any) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     checkOrigin,
}

// dashboardConn drops clients that stop draining the level stream.
type dashboardConn struct {
	*websocket.Conn
}

func (c dashboardConn) WriteJSON(v any) error {
	if err := c.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteJSON(v)
}

// checkOrigin reports whether the WebSocket connection origin is allowed.
// Same-origin, loopback and private network origins are accepted.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		slog.Warn("rejected WebSocket connection: invalid origin URL", "origin", origin)
		return false
	}

	if !localOrigin(u.Hostname(), r.Host) {
		slog.Warn("rejected WebSocket connection", "origin", origin, "host", u.Hostname())
		return false
	}
	return true
}

// localOrigin reports whether originHost is the meter host itself or a local network address.
func localOrigin(originHost, requestHost string) bool {
	if h, _, err := net.SplitHostPort(requestHost); err == nil {
		requestHost = h
	}
	if originHost == "localhost" || originHost == requestHost {
		return true
	}
	ip := net.ParseIP(originHost)
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}

// UpgradeConnection upgrades an HTTP connection to a dashboard WebSocket.
// Oversized commands and stalled writes end the connection.
func UpgradeConnection(w http.ResponseWriter, r *http.Request) (WebSocketConn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(maxCommandSize)
	return dashboardConn{conn}, nil
}
